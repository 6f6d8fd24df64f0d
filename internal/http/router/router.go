package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/otp-chat-gateway/internal/config"
	"github.com/ignatzorin/otp-chat-gateway/internal/http/handlers"
	"github.com/ignatzorin/otp-chat-gateway/internal/http/middleware"
)

func SetupRouter(
	cfg *config.Config,
	chatHandler *handlers.ChatHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.GET("/policy", chatHandler.Policy)

	// Выдачу кодов намеренно не ограничиваем: повторная выдача только заменяет код.
	r.POST("/generate-otp", chatHandler.GenerateOTP)
	r.POST("/ask", middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod), chatHandler.Ask)

	r.NoRoute(middleware.NotFound())

	return r
}
