package public

import (
	"strconv"
	"strings"

	"github.com/coupon-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// Ping 健康检查
func (h *Handler) Ping(c *gin.Context) {
	response.Success(c, gin.H{"message": "pong"})
}

func queryInt(c *gin.Context, key string, fallback int) int {
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
