package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/otp-chat-gateway/internal/dto"
	"github.com/ignatzorin/otp-chat-gateway/internal/logger"
	"github.com/ignatzorin/otp-chat-gateway/internal/pkg/apperror"
	"github.com/ignatzorin/otp-chat-gateway/internal/service"
)

// ChatHandler обслуживает выдачу кодов и вопросы к модели.
type ChatHandler struct {
	gating *service.GatingService
}

// NewChatHandler создаёт handler.
func NewChatHandler(gating *service.GatingService) *ChatHandler {
	return &ChatHandler{gating: gating}
}

// GenerateOTP POST /generate-otp
func (h *ChatHandler) GenerateOTP(c *gin.Context) {
	var req dto.GenerateOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.WithError(err).Debug("handlers: некорректное тело generate-otp")
	}

	receipt, err := h.gating.RequestChallenge(c.Request.Context(), req.Email)
	if err != nil {
		if appErr, ok := apperror.As(err); ok {
			c.JSON(appErr.HTTPStatus, dto.ErrorResponse{Error: appErr.Message})
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.GenerateOTPResponse{
		Message:   receipt.Message,
		ExpiresIn: receipt.ExpiresIn.Milliseconds(),
	})
}

// Ask POST /ask
func (h *ChatHandler) Ask(c *gin.Context) {
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Некорректное тело обрабатывается как запрос без полей.
		logger.Log.WithError(err).Debug("handlers: некорректное тело ask")
		req = dto.AskRequest{}
	}

	answer, err := h.gating.SubmitQuestion(c.Request.Context(), req.Email, req.Question, req.OTP)
	if err != nil {
		respondPolicyError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AnswerResponse{
		Answer:         answer.Text,
		JavaRestricted: answer.Restricted,
	})
}

// Policy GET /policy
func (h *ChatHandler) Policy(c *gin.Context) {
	policy := h.gating.Policy()
	c.JSON(http.StatusOK, dto.PolicyResponse{
		Denylist: policy.Terms(),
		Refusal:  policy.Refusal(),
	})
}

// respondPolicyError переводит AppError в тело ответа. Остальные ошибки уходят в ErrorHandler.
func respondPolicyError(c *gin.Context, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		_ = c.Error(err)
		return
	}

	resp := dto.AnswerResponse{
		Answer:      appErr.Message,
		OTPRequired: appErr.OTPRequired,
		Code:        string(appErr.Code),
	}
	if apperror.IsChallengeError(appErr) {
		renew := appErr.RenewChallenge
		resp.RenewChallenge = &renew
	}
	c.JSON(appErr.HTTPStatus, resp)
}
