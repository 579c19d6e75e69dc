package public

import (
	"errors"

	"github.com/coupon-next/internal/http/handlers/shared"
	"github.com/coupon-next/internal/http/response"
	"github.com/coupon-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	// 冲突类错误携带结构化重试信息，优先处理
	var lockConflict *service.LockConflictError
	if errors.As(err, &lockConflict) {
		response.Conflict(c, service.ErrCodeAlreadyLocked.Error(), gin.H{
			"locked_until":        lockConflict.LockedUntil,
			"retry_after_seconds": lockConflict.RetryAfterSeconds,
		})
		return
	}
	var redeemedConflict *service.RedeemedConflictError
	if errors.As(err, &redeemedConflict) {
		response.Conflict(c, service.ErrCodeAlreadyRedeemed.Error(), gin.H{
			"redeemed_at":  redeemedConflict.RedeemedAt,
			"redeem_count": redeemedConflict.RedeemCount,
		})
		return
	}
	var limitConflict *service.RedeemLimitError
	if errors.As(err, &limitConflict) {
		response.Conflict(c, service.ErrRedeemLimitReached.Error(), gin.H{
			"redeem_count": limitConflict.Current,
			"max_redeems":  limitConflict.Max,
		})
		return
	}

	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			shared.RespondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	shared.RespondError(c, fallbackCode, fallbackMsg, err)
}

var couponLookupErrorRules = []mappedHandlerError{
	{target: service.ErrCodeNotFound, code: response.CodeNotFound, msg: service.ErrCodeNotFound.Error()},
	{target: service.ErrBookNotFound, code: response.CodeNotFound, msg: service.ErrBookNotFound.Error()},
	{target: service.ErrAssignmentNotFound, code: response.CodeNotFound, msg: service.ErrAssignmentNotFound.Error()},
}

var assignErrorRules = []mappedHandlerError{
	{target: service.ErrCodeNotFound, code: response.CodeNotFound, msg: service.ErrCodeNotFound.Error()},
	{target: service.ErrBookNotFound, code: response.CodeNotFound, msg: service.ErrBookNotFound.Error()},
	{target: service.ErrBookInactive, code: response.CodeBadRequest, msg: service.ErrBookInactive.Error()},
	{target: service.ErrBookExpired, code: response.CodeBadRequest, msg: service.ErrBookExpired.Error()},
	{target: service.ErrCodeNotAvailable, code: response.CodeBadRequest, msg: service.ErrCodeNotAvailable.Error()},
	{target: service.ErrCodePoolExhausted, code: response.CodeBadRequest, msg: service.ErrCodePoolExhausted.Error()},
	{target: service.ErrCodeNoLongerAvailable, code: response.CodeBadRequest, msg: service.ErrCodeNoLongerAvailable.Error()},
	{target: service.ErrCodeQuotaExceeded, code: response.CodeBadRequest, msg: service.ErrCodeQuotaExceeded.Error()},
	{target: service.ErrInvalidBookInput, code: response.CodeBadRequest, msg: service.ErrInvalidBookInput.Error()},
}

var transitionErrorRules = []mappedHandlerError{
	{target: service.ErrCodeNotFound, code: response.CodeNotFound, msg: service.ErrCodeNotFound.Error()},
	{target: service.ErrBookNotFound, code: response.CodeNotFound, msg: service.ErrBookNotFound.Error()},
	{target: service.ErrBookInactive, code: response.CodeBadRequest, msg: service.ErrBookInactive.Error()},
	{target: service.ErrBookExpired, code: response.CodeBadRequest, msg: service.ErrBookExpired.Error()},
	{target: service.ErrCodeNotAssigned, code: response.CodeBadRequest, msg: service.ErrCodeNotAssigned.Error()},
	{target: service.ErrCodeExpiredStatus, code: response.CodeBadRequest, msg: service.ErrCodeExpiredStatus.Error()},
	{target: service.ErrCodeNoLongerAvailable, code: response.CodeBadRequest, msg: service.ErrCodeNoLongerAvailable.Error()},
	{target: service.ErrInvalidTransition, code: response.CodeBadRequest, msg: service.ErrInvalidTransition.Error()},
	{target: service.ErrNotCodeHolder, code: response.CodeForbidden, msg: service.ErrNotCodeHolder.Error()},
}

func respondAssignError(c *gin.Context, err error) {
	respondWithMappedError(c, err, assignErrorRules, response.CodeInternal, "assign coupon code failed")
}

func respondTransitionError(c *gin.Context, err error) {
	respondWithMappedError(c, err, transitionErrorRules, response.CodeInternal, "coupon state transition failed")
}

func respondLookupError(c *gin.Context, err error) {
	respondWithMappedError(c, err, couponLookupErrorRules, response.CodeInternal, "coupon lookup failed")
}
