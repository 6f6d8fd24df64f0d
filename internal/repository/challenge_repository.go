package repository

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/otp-chat-gateway/internal/models"
)

const (
	codeMin   = 100000
	codeRange = 900000
)

// ChallengeRepository хранит по одному активному коду на email в памяти процесса.
// Все операции над таблицей выполняются под одной блокировкой, поэтому
// проверка и удаление кода атомарны.
type ChallengeRepository struct {
	mu         sync.Mutex
	challenges map[string]models.Challenge
	// latest ID последнего выпущенного кода по email; нужен Refund,
	// чтобы не вернуть код, который уже был заменён.
	latest map[string]uuid.UUID
	ttl        time.Duration
	now        func() time.Time
}

// NewChallengeRepository создаёт хранилище с заданным окном действия кода.
func NewChallengeRepository(ttl time.Duration) *ChallengeRepository {
	if ttl <= 0 {
		ttl = models.DefaultChallengeTTL
	}
	return &ChallengeRepository{
		challenges: make(map[string]models.Challenge),
		latest:     make(map[string]uuid.UUID),
		ttl:        ttl,
		now:        time.Now,
	}
}

// SetClock подменяет источник времени (для тестов).
func (r *ChallengeRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// TTL возвращает окно действия кода.
func (r *ChallengeRepository) TTL() time.Duration {
	return r.ttl
}

// Issue выпускает новый код и заменяет предыдущий для того же email.
func (r *ChallengeRepository) Issue(identifier string) models.Challenge {
	code := generateChallengeCode()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	challenge := models.Challenge{
		ID:         uuid.New(),
		Identifier: identifier,
		Code:       code,
		IssuedAt:   now,
		ExpiresAt:  now.Add(r.ttl),
	}
	r.challenges[identifier] = challenge
	r.latest[identifier] = challenge.ID
	return challenge
}

// Verify проверяет код в порядке: наличие, срок, совпадение.
// Истёкший или успешно использованный код удаляется, несовпадение оставляет код активным.
func (r *ChallengeRepository) Verify(identifier, submittedCode string) (models.VerifyResult, models.Challenge) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.challenges[identifier]
	if !ok {
		return models.VerifyNotFound, models.Challenge{}
	}

	if challenge.ExpiredAt(r.now()) {
		delete(r.challenges, identifier)
		delete(r.latest, identifier)
		return models.VerifyExpired, challenge
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(submittedCode)) != 1 {
		return models.VerifyMismatch, challenge
	}

	delete(r.challenges, identifier)
	return models.VerifyValid, challenge
}

// Lookup возвращает активный код без его использования. Истёкшие записи не возвращаются.
func (r *ChallengeRepository) Lookup(identifier string) (models.Challenge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.challenges[identifier]
	if !ok || challenge.ExpiredAt(r.now()) {
		return models.Challenge{}, false
	}
	return challenge, true
}

// Refund возвращает использованный код, если он всё ещё последний выпущенный
// для этого email и окно действия ещё не закончилось.
func (r *ChallengeRepository) Refund(challenge models.Challenge) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.latest[challenge.Identifier] != challenge.ID {
		return false
	}
	if _, exists := r.challenges[challenge.Identifier]; exists {
		return false
	}
	if challenge.ExpiredAt(r.now()) {
		delete(r.latest, challenge.Identifier)
		return false
	}
	r.challenges[challenge.Identifier] = challenge
	return true
}

// Len количество записей в таблице, включая ещё не удалённые истёкшие.
func (r *ChallengeRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.challenges)
}

// generateChallengeCode возвращает равномерно распределённый код из [100000, 999999].
func generateChallengeCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		// Без криптостойкого источника выдавать коды нельзя.
		panic("repository: генератор случайных чисел недоступен: " + err.Error())
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10)
}
