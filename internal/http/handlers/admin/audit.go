package admin

import (
	"strings"

	"github.com/coupon-next/internal/http/handlers/shared"
	"github.com/coupon-next/internal/http/response"
	"github.com/coupon-next/internal/models"

	"github.com/gin-gonic/gin"
)

// ListAudits 查询审计记录，按券码或用户过滤
func (h *Handler) ListAudits(c *gin.Context) {
	page, pageSize := shared.NormalizePagination(
		parseQueryInt(c, "page", 1),
		parseQueryInt(c, "page_size", 20),
	)

	codeID := strings.TrimSpace(c.Query("code_id"))
	userID := strings.TrimSpace(c.Query("user_id"))

	var (
		audits []models.RedemptionAudit
		total  int64
		err    error
	)
	switch {
	case codeID != "":
		audits, total, err = h.AuditRecorder.ListByCode(codeID, page, pageSize)
	case userID != "":
		audits, total, err = h.AuditRecorder.ListByUser(userID, page, pageSize)
	default:
		response.BadRequest(c, "code_id or user_id filter is required")
		return
	}
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "audit query failed", err)
		return
	}

	response.SuccessWithPage(c, audits, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: shared.TotalPages(total, pageSize),
	})
}
