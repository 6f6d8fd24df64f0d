package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeInvalidIdentifier   ErrorCode = "INVALID_IDENTIFIER"
	ErrCodeMissingFields       ErrorCode = "MISSING_FIELDS"
	ErrCodeChallengeNotFound   ErrorCode = "CHALLENGE_NOT_FOUND"
	ErrCodeChallengeExpired    ErrorCode = "CHALLENGE_EXPIRED"
	ErrCodeChallengeMismatch   ErrorCode = "CHALLENGE_MISMATCH"
	ErrCodeNoAnswer            ErrorCode = "NO_ANSWER"
	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// AppError ошибка политики доступа с сообщением для пользователя.
// OTPRequired говорит клиенту, что нужен код, RenewChallenge что нужен новый код.
type AppError struct {
	Code           ErrorCode
	Message        string
	HTTPStatus     int
	OTPRequired    bool
	RenewChallenge bool
	Cause          error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с обёрнутыми копиями.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(code ErrorCode, message string) *AppError {
	otpRequired, renew := codeFlags(code)
	return &AppError{
		Code:           code,
		Message:        message,
		HTTPStatus:     codeToHTTPStatus(code),
		OTPRequired:    otpRequired,
		RenewChallenge: renew,
	}
}

// WithCause возвращает копию ошибки с указанной причиной.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Cause = err
	return &cp
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeChallengeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeInvalidIdentifier, ErrCodeMissingFields, ErrCodeChallengeExpired, ErrCodeChallengeMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func codeFlags(code ErrorCode) (otpRequired, renewChallenge bool) {
	switch code {
	case ErrCodeMissingFields:
		return true, false
	case ErrCodeChallengeNotFound, ErrCodeChallengeExpired:
		return true, true
	case ErrCodeChallengeMismatch:
		return true, false
	default:
		return false, false
	}
}

// As извлекает AppError из цепочки ошибок.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsChallengeError(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case ErrCodeChallengeNotFound, ErrCodeChallengeExpired, ErrCodeChallengeMismatch:
		return true
	}
	return false
}

var (
	ErrInvalidIdentifier   = New(ErrCodeInvalidIdentifier, "Please enter a valid email address")
	ErrMissingFields       = New(ErrCodeMissingFields, "Question, email and OTP are all required")
	ErrChallengeNotFound   = New(ErrCodeChallengeNotFound, "OTP not found. Please generate a new one.")
	ErrChallengeExpired    = New(ErrCodeChallengeExpired, "OTP expired. Please generate a new one.")
	ErrChallengeMismatch   = New(ErrCodeChallengeMismatch, "Invalid OTP. Please try again.")
	ErrNoAnswer            = New(ErrCodeNoAnswer, "Sorry, I couldn't generate an answer.")
	ErrProviderUnavailable = New(ErrCodeProviderUnavailable, "Oops! Something went wrong with the AI service.")
	ErrRateLimited         = New(ErrCodeRateLimited, "Too many questions, please try again later.")
	ErrInternal            = New(ErrCodeInternal, "Internal server error")
)
