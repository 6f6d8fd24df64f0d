package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/otp-chat-gateway/internal/dto"
	"github.com/ignatzorin/otp-chat-gateway/internal/logger"
	"github.com/ignatzorin/otp-chat-gateway/internal/pkg/apperror"
)

// RateLimitMiddleware ограничивает количество вопросов к модели с одного IP.
// limit <= 0 отключает ограничение.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if period <= 0 {
		period = 1 * time.Minute
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}
	instance := limiter.New(memory.NewStore(), rate)

	return func(c *gin.Context) {
		key := c.ClientIP()
		lctx, err := instance.Get(c, key)
		if err != nil {
			logger.Log.WithError(err).Error("middleware: ошибка rate limiter")
			c.AbortWithStatusJSON(apperror.ErrInternal.HTTPStatus, dto.ErrorResponse{Error: apperror.ErrInternal.Message})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		// Лимит проверяется до кода, поэтому код не тратится: клиент повторяет с тем же кодом.
		if lctx.Reached {
			if wait := time.Until(time.Unix(lctx.Reset, 0)); wait > 0 {
				c.Header("Retry-After", strconv.FormatInt(int64(wait.Seconds())+1, 10))
			}
			renew := false
			c.AbortWithStatusJSON(apperror.ErrRateLimited.HTTPStatus, dto.AnswerResponse{
				Answer:         apperror.ErrRateLimited.Message,
				RenewChallenge: &renew,
				Code:           string(apperror.ErrRateLimited.Code),
			})
			return
		}

		c.Next()
	}
}
