package shared

import (
	"github.com/coupon-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ActorFromContext 提取调用方上下文用于审计。
func ActorFromContext(c *gin.Context) service.ActorContext {
	if c == nil {
		return service.ActorContext{}
	}
	userAgent := ""
	if c.Request != nil {
		userAgent = c.Request.UserAgent()
	}
	return service.ActorContext{
		IP:        c.ClientIP(),
		UserAgent: userAgent,
	}
}
