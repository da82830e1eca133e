package router

import (
	"fmt"
	"strings"

	"github.com/csform-next/internal/cache"
	"github.com/csform-next/internal/config"
	publichandlers "github.com/csform-next/internal/http/handlers/public"
	"github.com/csform-next/internal/logger"
	"github.com/csform-next/internal/provider"

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

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "csf"
	}
	redisClient := cache.Client()
	otpSendRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:otp_send", redisPrefix),
		WindowSeconds: cfg.Checkout.RateLimit.WindowSeconds,
		MaxRequests:   cfg.Checkout.RateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 站点与目录
		apiV1.GET("/config", publicHandler.GetSiteConfig)
		apiV1.GET("/catalog", publicHandler.GetCatalog)
		apiV1.GET("/locations", publicHandler.SearchLocations)

		// 结算会话
		checkout := apiV1.Group("/checkout")
		{
			checkout.POST("/sessions", publicHandler.CreateSession)
			checkout.GET("/sessions/:id", publicHandler.GetSession)
			checkout.POST("/sessions/:id/form", publicHandler.UpdateForm)
			checkout.POST("/sessions/:id/quantity", publicHandler.AdjustQuantity)
			checkout.POST("/sessions/:id/location", publicHandler.SelectLocation)
			checkout.POST("/sessions/:id/submit-form", publicHandler.SubmitForm)
			checkout.POST("/sessions/:id/submit", publicHandler.FinalizeSubmission)
			checkout.POST("/sessions/:id/upsell", publicHandler.SubmitUpsell)
			checkout.POST("/sessions/:id/upsell/decline", publicHandler.DeclineUpsell)

			otp := checkout.Group("/sessions/:id/otp")
			{
				otp.POST("/send",
					RateLimitMiddleware(redisClient, otpSendRule, KeyBySessionParam),
					publicHandler.SendOTP,
				)
				otp.POST("/input", publicHandler.OTPInput)
				otp.POST("/verify", publicHandler.VerifyOTP)
			}
		}
	}

	return r
}
