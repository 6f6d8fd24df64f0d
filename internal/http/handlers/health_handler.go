package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/otp-chat-gateway/internal/dto"
)

// HealthHandler предоставляет endpoint для проверки здоровья сервиса.
type HealthHandler struct{}

// NewHealthHandler создаёт новый health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health обрабатывает GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}
