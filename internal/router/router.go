package router

import (
	"fmt"
	"strings"

	"github.com/coupon-next/internal/cache"
	"github.com/coupon-next/internal/config"
	adminhandlers "github.com/coupon-next/internal/http/handlers/admin"
	publichandlers "github.com/coupon-next/internal/http/handlers/public"
	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "cpn"
	}
	redisClient := cache.Client()
	redemptionRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:redemption", redisPrefix),
		WindowSeconds: cfg.Security.RedemptionRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.RedemptionRateLimit.MaxRequests,
	}
	redemptionLimiter := RateLimitMiddleware(redisClient, redemptionRule, KeyByIP)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/ping", publicHandler.Ping)

		// 发券接口
		assignments := apiV1.Group("/assignments")
		{
			assignments.POST("/random", publicHandler.AssignRandom)
			assignments.POST("/:code", publicHandler.AssignSpecific)
			assignments.GET("/user/:user_id", publicHandler.ListUserAssignments)
			assignments.GET("/:code", publicHandler.GetAssignment)
		}

		// 核销接口（限流）
		coupons := apiV1.Group("/coupons")
		{
			coupons.POST("/:code/lock", redemptionLimiter, publicHandler.LockCoupon)
			coupons.POST("/:code/unlock", redemptionLimiter, publicHandler.UnlockCoupon)
			coupons.POST("/:code/redeem", redemptionLimiter, publicHandler.RedeemCoupon)
		}

		// 管理端接口（需鉴权）
		admin := apiV1.Group("/admin")
		admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey))
		{
			books := admin.Group("/coupon-books")
			{
				books.POST("", adminHandler.CreateBook)
				books.GET("", adminHandler.ListBooks)
				books.GET("/:id", adminHandler.GetBook)
				books.PATCH("/:id", adminHandler.UpdateBook)
				books.DELETE("/:id", adminHandler.DeleteBook)
				books.GET("/:id/statistics", adminHandler.BookStatistics)
				books.POST("/:id/codes/generate", adminHandler.GenerateCodes)
				books.POST("/:id/codes/upload", adminHandler.UploadCodes)
				books.GET("/:id/codes", adminHandler.ListCodes)
			}
			admin.GET("/audits", adminHandler.ListAudits)
		}
	}

	return r
}
