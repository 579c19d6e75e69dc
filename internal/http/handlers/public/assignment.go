package public

import (
	"strings"

	"github.com/coupon-next/internal/http/handlers/shared"
	"github.com/coupon-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

type assignRandomRequest struct {
	UserID string `json:"user_id" binding:"required"`
	BookID string `json:"book_id" binding:"required"`
}

type assignSpecificRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// AssignRandom 随机领取一张券码
func (h *Handler) AssignRandom(c *gin.Context) {
	var req assignRandomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	assignment, err := h.AssignmentService.AssignRandom(req.UserID, req.BookID, shared.ActorFromContext(c))
	if err != nil {
		respondAssignError(c, err)
		return
	}
	response.Success(c, assignment)
}

// AssignSpecific 领取指定券码
func (h *Handler) AssignSpecific(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "coupon code is required")
		return
	}
	var req assignSpecificRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	assignment, err := h.AssignmentService.AssignSpecific(code, req.UserID, shared.ActorFromContext(c))
	if err != nil {
		respondAssignError(c, err)
		return
	}
	response.Success(c, assignment)
}

// GetAssignment 查询指定券码的领取记录
func (h *Handler) GetAssignment(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "coupon code is required")
		return
	}

	assignment, err := h.AssignmentService.GetAssignmentByCode(code)
	if err != nil {
		respondLookupError(c, err)
		return
	}
	response.Success(c, assignment)
}

// ListUserAssignments 查询用户的领取列表
func (h *Handler) ListUserAssignments(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		response.BadRequest(c, "user id is required")
		return
	}
	page, pageSize := shared.NormalizePagination(
		queryInt(c, "page", 1),
		queryInt(c, "page_size", 20),
	)

	assignments, total, err := h.AssignmentService.ListUserAssignments(userID, page, pageSize)
	if err != nil {
		respondLookupError(c, err)
		return
	}
	response.SuccessWithPage(c, assignments, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: shared.TotalPages(total, pageSize),
	})
}
