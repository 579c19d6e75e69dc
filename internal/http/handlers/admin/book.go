package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/coupon-next/internal/http/handlers/shared"
	"github.com/coupon-next/internal/http/response"
	"github.com/coupon-next/internal/repository"
	"github.com/coupon-next/internal/service"

	"github.com/gin-gonic/gin"
)

type createBookRequest struct {
	BusinessID         string     `json:"business_id" binding:"required"`
	Name               string     `json:"name" binding:"required"`
	Description        string     `json:"description"`
	MaxRedeemsPerUser  *int       `json:"max_redeems_per_user"`
	MaxCodesPerUser    *int       `json:"max_codes_per_user"`
	TotalCodesExpected *int       `json:"total_codes_expected"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

type updateBookRequest struct {
	Name              *string    `json:"name"`
	Description       *string    `json:"description"`
	Status            *string    `json:"status"`
	MaxRedeemsPerUser *int       `json:"max_redeems_per_user"`
	MaxCodesPerUser   *int       `json:"max_codes_per_user"`
	ExpiresAt         *time.Time `json:"expires_at"`
	ClearExpiresAt    bool       `json:"clear_expires_at"`
}

func respondBookError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBookNotFound):
		response.NotFound(c, service.ErrBookNotFound.Error())
	case errors.Is(err, service.ErrInvalidBookInput):
		response.BadRequest(c, service.ErrInvalidBookInput.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		response.BadRequest(c, service.ErrInvalidTransition.Error())
	case errors.Is(err, service.ErrBookInactive):
		response.BadRequest(c, service.ErrBookInactive.Error())
	case errors.Is(err, service.ErrBookHasCodes):
		response.Conflict(c, service.ErrBookHasCodes.Error(), nil)
	default:
		shared.RespondError(c, response.CodeInternal, "coupon book operation failed", err)
	}
}

// CreateBook 创建券册
func (h *Handler) CreateBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	book, err := h.BookService.CreateBook(service.CreateBookInput{
		BusinessID:         req.BusinessID,
		Name:               req.Name,
		Description:        req.Description,
		MaxRedeemsPerUser:  req.MaxRedeemsPerUser,
		MaxCodesPerUser:    req.MaxCodesPerUser,
		TotalCodesExpected: req.TotalCodesExpected,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		respondBookError(c, err)
		return
	}
	response.Success(c, book)
}

// GetBook 查询券册
func (h *Handler) GetBook(c *gin.Context) {
	book, err := h.BookService.GetBook(c.Param("id"))
	if err != nil {
		respondBookError(c, err)
		return
	}
	response.Success(c, book)
}

// ListBooks 查询券册列表
func (h *Handler) ListBooks(c *gin.Context) {
	page, pageSize := shared.NormalizePagination(
		parseQueryInt(c, "page", 1),
		parseQueryInt(c, "page_size", 20),
	)
	books, total, err := h.BookService.ListBooks(repository.CouponBookListFilter{
		BusinessID: strings.TrimSpace(c.Query("business_id")),
		Status:     strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		respondBookError(c, err)
		return
	}
	response.SuccessWithPage(c, books, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: shared.TotalPages(total, pageSize),
	})
}

// UpdateBook 更新券册
func (h *Handler) UpdateBook(c *gin.Context) {
	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	book, err := h.BookService.UpdateBook(c.Param("id"), service.UpdateBookInput{
		Name:              req.Name,
		Description:       req.Description,
		Status:            req.Status,
		MaxRedeemsPerUser: req.MaxRedeemsPerUser,
		MaxCodesPerUser:   req.MaxCodesPerUser,
		ExpiresAt:         req.ExpiresAt,
		ClearExpiresAt:    req.ClearExpiresAt,
	})
	if err != nil {
		respondBookError(c, err)
		return
	}
	response.Success(c, book)
}

// DeleteBook 删除券册
func (h *Handler) DeleteBook(c *gin.Context) {
	if err := h.BookService.DeleteBook(c.Param("id")); err != nil {
		respondBookError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// BookStatistics 查询券册统计
func (h *Handler) BookStatistics(c *gin.Context) {
	stats, err := h.BookService.Statistics(c.Param("id"))
	if err != nil {
		respondBookError(c, err)
		return
	}
	response.Success(c, stats)
}

func parseQueryInt(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
