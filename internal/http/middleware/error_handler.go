package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/otp-chat-gateway/internal/dto"
	"github.com/ignatzorin/otp-chat-gateway/internal/logger"
	"github.com/ignatzorin/otp-chat-gateway/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно.
// AppError отдаётся со своим статусом и сообщением, всё остальное маскируется как 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()

		logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request error")

		appErr, ok := apperror.As(err.Err)
		if !ok {
			appErr = apperror.ErrInternal
		}
		c.JSON(appErr.HTTPStatus, dto.ErrorResponse{Error: appErr.Message})
	}
}

// Recovery перехватывает panic и возвращает 500 без деталей.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Log.WithFields(logrus.Fields{
			"panic":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Server error")
		c.AbortWithStatusJSON(apperror.ErrInternal.HTTPStatus, dto.ErrorResponse{Error: apperror.ErrInternal.Message})
	})
}

// NotFound ответ на неизвестный маршрут.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Endpoint not found"})
	}
}
