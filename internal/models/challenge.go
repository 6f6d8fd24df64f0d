package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// ChallengeCodeLength количество цифр в одноразовом коде.
	ChallengeCodeLength = 6
	// DefaultChallengeTTL окно действия кода.
	DefaultChallengeTTL = 60 * time.Second
)

// Challenge описывает выданный одноразовый код для email.
type Challenge struct {
	ID         uuid.UUID `json:"id"`
	Identifier string    `json:"identifier"`
	Code       string    `json:"-"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ExpiredAt сообщает, истёк ли код к моменту now.
func (c Challenge) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// VerifyResult результат проверки кода.
type VerifyResult int

const (
	VerifyNotFound VerifyResult = iota
	VerifyExpired
	VerifyMismatch
	VerifyValid
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyNotFound:
		return "not_found"
	case VerifyExpired:
		return "expired"
	case VerifyMismatch:
		return "mismatch"
	case VerifyValid:
		return "valid"
	default:
		return "unknown"
	}
}
