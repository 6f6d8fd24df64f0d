package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/otp-chat-gateway/internal/ai"
	"github.com/ignatzorin/otp-chat-gateway/internal/goroutine"
	"github.com/ignatzorin/otp-chat-gateway/internal/logger"
	"github.com/ignatzorin/otp-chat-gateway/internal/models"
	"github.com/ignatzorin/otp-chat-gateway/internal/pkg/apperror"
	"github.com/ignatzorin/otp-chat-gateway/internal/validation"
)

const (
	defaultProviderTimeout = 10 * time.Second
	defaultNotifyTimeout   = 15 * time.Second

	receiptMessage = "OTP sent successfully"
)

// ChallengeStore хранилище одноразовых кодов.
type ChallengeStore interface {
	Issue(identifier string) models.Challenge
	Verify(identifier, submittedCode string) (models.VerifyResult, models.Challenge)
	Refund(challenge models.Challenge) bool
	TTL() time.Duration
}

// CompletionProvider внешняя языковая модель.
type CompletionProvider interface {
	Answer(ctx context.Context, systemPrompt, question string) (string, error)
}

// Notifier канал доставки кода пользователю.
type Notifier interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
}

// ChallengeReceipt подтверждение выдачи кода. Сам код не содержит.
type ChallengeReceipt struct {
	Message   string
	ExpiresIn time.Duration
}

// Answer ответ на вопрос. Restricted означает отказ по тематике.
type Answer struct {
	Text       string
	Restricted bool
}

// GatingOptions настройки GatingService.
type GatingOptions struct {
	ProviderTimeout time.Duration
	NotifyTimeout   time.Duration
	SystemPrompt    string
	// RefundOnProviderFailure возвращает использованный код, если провайдер не ответил.
	RefundOnProviderFailure bool
}

// GatingService выдаёт коды и пропускает к модели только вопросы с верным кодом.
type GatingService struct {
	store    ChallengeStore
	provider CompletionProvider
	notifier Notifier
	policy   *validation.TopicPolicy
	opts     GatingOptions
	dispatch func(name string, fn func())
}

// NewGatingService создаёт сервис.
func NewGatingService(store ChallengeStore, provider CompletionProvider, notifier Notifier, policy *validation.TopicPolicy, opts GatingOptions) *GatingService {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = defaultProviderTimeout
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	if policy == nil {
		policy = validation.NewTopicPolicy(nil, "")
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = systemPromptFor(policy)
	}
	return &GatingService{
		store:    store,
		provider: provider,
		notifier: notifier,
		policy:   policy,
		opts:     opts,
		dispatch: goroutine.SafeGo,
	}
}

// systemPromptFor строит системную инструкцию из списка запрещённых тем,
// чтобы ограничение модели совпадало с политикой сервера.
func systemPromptFor(policy *validation.TopicPolicy) string {
	terms := policy.Terms()
	if len(terms) == 1 && terms[0] == "java" {
		return ai.SystemInstruction
	}
	return "You are a helpful programming assistant that refuses to answer questions about: " + strings.Join(terms, ", ") + "."
}

// SystemPrompt системная инструкция, отправляемая модели.
func (s *GatingService) SystemPrompt() string {
	return s.opts.SystemPrompt
}

// Policy тематическая политика, общая для сервера и клиента.
func (s *GatingService) Policy() *validation.TopicPolicy {
	return s.policy
}

// RequestChallenge выдаёт новый код для email и отправляет его в фоне.
func (s *GatingService) RequestChallenge(ctx context.Context, identifier string) (*ChallengeReceipt, error) {
	if err := validation.ValidateEmail(identifier); err != nil {
		return nil, apperror.ErrInvalidIdentifier.WithCause(err)
	}

	challenge := s.store.Issue(identifier)
	ttl := s.store.TTL()

	logger.Log.WithFields(logrus.Fields{
		"challenge_id": challenge.ID,
		"email":        identifier,
		"expires_at":   challenge.ExpiresAt,
	}).Info("gating: код выдан")

	s.notify(challenge, ttl)

	return &ChallengeReceipt{
		Message:   receiptMessage,
		ExpiresIn: ttl,
	}, nil
}

// notify отправляет код вне запроса: ошибки доставки только логируются.
func (s *GatingService) notify(challenge models.Challenge, ttl time.Duration) {
	if s.notifier == nil {
		return
	}
	s.dispatch("send-otp", func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.NotifyTimeout)
		defer cancel()
		if err := s.notifier.SendOTP(ctx, challenge.Identifier, challenge.Code, ttl); err != nil {
			logger.Log.WithFields(logrus.Fields{
				"challenge_id": challenge.ID,
				"email":        challenge.Identifier,
				"error":        err.Error(),
			}).Error("gating: не удалось отправить код")
		}
	})
}

// SubmitQuestion проверяет вопрос и код, затем обращается к модели.
// Порядок проверок: обязательные поля, тематика, код, провайдер.
func (s *GatingService) SubmitQuestion(ctx context.Context, identifier, question, submittedCode string) (*Answer, error) {
	// Вопрос из одних пробелов не считается пустым.
	if question == "" || identifier == "" || submittedCode == "" {
		return nil, apperror.ErrMissingFields
	}

	// Отказ по тематике не тратит код.
	if term, matched := s.policy.Match(question); matched {
		logger.Log.WithFields(logrus.Fields{
			"email": identifier,
			"term":  term,
		}).Info("gating: вопрос отклонён по тематике")
		return &Answer{Text: s.policy.Refusal(), Restricted: true}, nil
	}

	result, challenge := s.store.Verify(identifier, submittedCode)
	fields := logrus.Fields{
		"email":  identifier,
		"result": result.String(),
	}
	if result != models.VerifyNotFound {
		fields["challenge_id"] = challenge.ID
	}
	logger.Log.WithFields(fields).Info("gating: проверка кода")

	switch result {
	case models.VerifyNotFound:
		return nil, apperror.ErrChallengeNotFound
	case models.VerifyExpired:
		return nil, apperror.ErrChallengeExpired
	case models.VerifyMismatch:
		return nil, apperror.ErrChallengeMismatch
	}

	text, err := s.complete(ctx, question)
	if err != nil {
		s.handleProviderFailure(challenge, err)
		return nil, err
	}

	return &Answer{Text: text}, nil
}

// complete вызывает провайдера с ограничением по времени и переводит ошибки в AppError.
func (s *GatingService) complete(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()

	text, err := s.provider.Answer(ctx, s.opts.SystemPrompt, question)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyAnswer) {
			return "", apperror.ErrNoAnswer.WithCause(err)
		}
		return "", apperror.ErrProviderUnavailable.WithCause(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", apperror.ErrNoAnswer
	}
	return text, nil
}

func (s *GatingService) handleProviderFailure(challenge models.Challenge, err error) {
	fields := logrus.Fields{
		"challenge_id": challenge.ID,
		"email":        challenge.Identifier,
		"error":        err.Error(),
	}

	if s.opts.RefundOnProviderFailure {
		fields["refunded"] = s.store.Refund(challenge)
	}

	logger.Log.WithFields(fields).Error("gating: провайдер не вернул ответ")
}
