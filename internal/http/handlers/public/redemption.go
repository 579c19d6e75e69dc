package public

import (
	"strings"

	"github.com/coupon-next/internal/http/handlers/shared"
	"github.com/coupon-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

type transitionRequest struct {
	UserID   string                 `json:"user_id" binding:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

func bindTransitionRequest(c *gin.Context) (string, *transitionRequest, bool) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "coupon code is required")
		return "", nil, false
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return "", nil, false
	}
	return code, &req, true
}

// LockCoupon 锁定券码
func (h *Handler) LockCoupon(c *gin.Context) {
	code, req, ok := bindTransitionRequest(c)
	if !ok {
		return
	}

	result, err := h.RedemptionService.Lock(c.Request.Context(), code, req.UserID, req.Metadata, shared.ActorFromContext(c))
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	response.Success(c, result)
}

// UnlockCoupon 解锁券码
func (h *Handler) UnlockCoupon(c *gin.Context) {
	code, req, ok := bindTransitionRequest(c)
	if !ok {
		return
	}

	result, err := h.RedemptionService.Unlock(c.Request.Context(), code, req.UserID, req.Metadata, shared.ActorFromContext(c))
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	response.Success(c, result)
}

// RedeemCoupon 核销券码
func (h *Handler) RedeemCoupon(c *gin.Context) {
	code, req, ok := bindTransitionRequest(c)
	if !ok {
		return
	}

	result, err := h.RedemptionService.Redeem(c.Request.Context(), code, req.UserID, req.Metadata, shared.ActorFromContext(c))
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	response.Success(c, result)
}
