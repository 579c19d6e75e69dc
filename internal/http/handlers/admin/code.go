package admin

import (
	"errors"
	"strings"

	"github.com/coupon-next/internal/http/handlers/shared"
	"github.com/coupon-next/internal/http/response"
	"github.com/coupon-next/internal/repository"
	"github.com/coupon-next/internal/service"

	"github.com/gin-gonic/gin"
)

type generateCodesRequest struct {
	Quantity int    `json:"quantity" binding:"required"`
	Prefix   string `json:"prefix"`
	Length   int    `json:"length"`
}

type uploadCodesRequest struct {
	Codes []string `json:"codes" binding:"required"`
}

func respondCodeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBookNotFound):
		response.NotFound(c, service.ErrBookNotFound.Error())
	case errors.Is(err, service.ErrBookInactive):
		response.BadRequest(c, service.ErrBookInactive.Error())
	case errors.Is(err, service.ErrInvalidCodeBatch):
		response.BadRequest(c, service.ErrInvalidCodeBatch.Error())
	default:
		shared.RespondError(c, response.CodeInternal, "coupon code operation failed", err)
	}
}

// GenerateCodes 为券册批量生成券码
func (h *Handler) GenerateCodes(c *gin.Context) {
	var req generateCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	length := req.Length
	if length <= 0 && h.Config != nil {
		length = h.Config.Coupon.DefaultCodeLength
	}
	codes, err := h.CodeService.GenerateCodes(service.GenerateCodesInput{
		BookID:   c.Param("id"),
		Quantity: req.Quantity,
		Prefix:   req.Prefix,
		Length:   length,
	})
	if err != nil {
		respondCodeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"generated": len(codes),
		"codes":     codes,
	})
}

// UploadCodes 批量导入券码
func (h *Handler) UploadCodes(c *gin.Context) {
	var req uploadCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.CodeService.UploadCodes(c.Param("id"), req.Codes)
	if err != nil {
		respondCodeError(c, err)
		return
	}
	response.Success(c, result)
}

// ListCodes 查询券册下的券码
func (h *Handler) ListCodes(c *gin.Context) {
	page, pageSize := shared.NormalizePagination(
		parseQueryInt(c, "page", 1),
		parseQueryInt(c, "page_size", 20),
	)
	codes, total, err := h.CodeService.ListByBook(c.Param("id"), repository.CouponCodeListFilter{
		Status:   strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondCodeError(c, err)
		return
	}
	response.SuccessWithPage(c, codes, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: shared.TotalPages(total, pageSize),
	})
}
