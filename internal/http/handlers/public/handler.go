package public

import "github.com/coupon-next/internal/provider"

// Handler 公开接口处理器入口
// 说明：该处理器用于发券、锁定与核销等面向业务方的 API。
type Handler struct {
	*provider.Container
}

// New 创建公开接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
