package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/otp-chat-gateway/internal/ai"
	"github.com/ignatzorin/otp-chat-gateway/internal/models"
	"github.com/ignatzorin/otp-chat-gateway/internal/pkg/apperror"
	"github.com/ignatzorin/otp-chat-gateway/internal/repository"
	"github.com/ignatzorin/otp-chat-gateway/internal/validation"
)

// mockProvider реализует CompletionProvider для тестов.
type mockProvider struct {
	mu        sync.Mutex
	answer    string
	err       error
	block     bool
	calls     int
	questions []string
	prompts   []string
}

func (m *mockProvider) Answer(ctx context.Context, systemPrompt, question string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.questions = append(m.questions, question)
	m.prompts = append(m.prompts, systemPrompt)
	answer, err, block := m.answer, m.err, m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return answer, err
}

func (m *mockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockNotifier запоминает отправленные коды.
type mockNotifier struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{codes: make(map[string]string)}
}

func (m *mockNotifier) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return m.err
}

func (m *mockNotifier) Code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type gatingFixture struct {
	svc      *GatingService
	store    *repository.ChallengeRepository
	provider *mockProvider
	notifier *mockNotifier
	now      time.Time
}

func newGatingFixture(t *testing.T, opts GatingOptions) *gatingFixture {
	t.Helper()

	f := &gatingFixture{
		store:    repository.NewChallengeRepository(time.Minute),
		provider: &mockProvider{answer: "Closures capture variables from the enclosing scope."},
		notifier: newMockNotifier(),
		now:      time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(func() time.Time { return f.now })
	f.svc = NewGatingService(f.store, f.provider, f.notifier, validation.NewTopicPolicy(nil, ""), opts)
	// Доставка синхронная, чтобы код был доступен сразу.
	f.svc.dispatch = func(_ string, fn func()) { fn() }
	return f
}

func (f *gatingFixture) issue(t *testing.T, email string) string {
	t.Helper()
	_, err := f.svc.RequestChallenge(context.Background(), email)
	require.NoError(t, err)
	code := f.notifier.Code(email)
	require.NotEmpty(t, code)
	return code
}

func assertAppError(t *testing.T, err error, code apperror.ErrorCode) *apperror.AppError {
	t.Helper()
	appErr, ok := apperror.As(err)
	require.True(t, ok, "ожидалась AppError, получено %v", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestGatingService_RequestChallenge(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})

	receipt, err := f.svc.RequestChallenge(context.Background(), "u@x.com")
	require.NoError(t, err)
	assert.Equal(t, "OTP sent successfully", receipt.Message)
	assert.Equal(t, time.Minute, receipt.ExpiresIn)

	ch, ok := f.store.Lookup("u@x.com")
	require.True(t, ok)
	assert.Equal(t, ch.Code, f.notifier.Code("u@x.com"))
}

func TestGatingService_RequestChallenge_InvalidEmail(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})

	for _, email := range []string{"", "not-an-email", "u@x", "@x.com"} {
		_, err := f.svc.RequestChallenge(context.Background(), email)
		appErr := assertAppError(t, err, apperror.ErrCodeInvalidIdentifier)
		assert.Equal(t, 400, appErr.HTTPStatus)
	}
	assert.Equal(t, 0, f.store.Len())
}

func TestGatingService_RequestChallenge_NotifierFailureIsNotSurfaced(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})
	f.notifier.err = errors.New("smtp down")

	receipt, err := f.svc.RequestChallenge(context.Background(), "u@x.com")
	require.NoError(t, err)
	assert.NotNil(t, receipt)
}

func TestGatingService_EndToEnd(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})
	code := f.issue(t, "u@x.com")

	f.now = f.now.Add(59 * time.Second)
	answer, err := f.svc.SubmitQuestion(context.Background(), "u@x.com", "How do closures work?", code)
	require.NoError(t, err)
	assert.Equal(t, "Closures capture variables from the enclosing scope.", answer.Text)
	assert.False(t, answer.Restricted)
	assert.Equal(t, []string{"How do closures work?"}, f.provider.questions)
	assert.Equal(t, []string{ai.SystemInstruction}, f.provider.prompts)

	result, _ := f.store.Verify("u@x.com", code)
	assert.Equal(t, models.VerifyNotFound, result)
}

func TestGatingService_MissingFields(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})

	cases := [][3]string{
		{"", "question", "123456"},
		{"u@x.com", "", "123456"},
		{"u@x.com", "question", ""},
	}
	for _, c := range cases {
		_, err := f.svc.SubmitQuestion(context.Background(), c[0], c[1], c[2])
		appErr := assertAppError(t, err, apperror.ErrCodeMissingFields)
		assert.True(t, appErr.OTPRequired)
	}
	assert.Equal(t, 0, f.provider.Calls())
}

func TestGatingService_DenylistDoesNotTouchCode(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})

	answer, err := f.svc.SubmitQuestion(context.Background(), "a@b.com", "What is Java?", "000000")
	require.NoError(t, err)
	assert.True(t, answer.Restricted)
	assert.Equal(t, validation.DefaultRefusal, answer.Text)

	// Действующий код не тратится отказом по тематике.
	code := f.issue(t, "u@x.com")
	answer, err = f.svc.SubmitQuestion(context.Background(), "u@x.com", "explain JAVA generics", code)
	require.NoError(t, err)
	assert.True(t, answer.Restricted)

	_, ok := f.store.Lookup("u@x.com")
	assert.True(t, ok)
	assert.Equal(t, 0, f.provider.Calls())
}

func TestGatingService_ChallengeErrors(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})

	_, err := f.svc.SubmitQuestion(context.Background(), "u@x.com", "How do goroutines work?", "123456")
	appErr := assertAppError(t, err, apperror.ErrCodeChallengeNotFound)
	assert.Equal(t, 404, appErr.HTTPStatus)
	assert.True(t, appErr.RenewChallenge)

	code := f.issue(t, "u@x.com")
	wrong := "100000"
	if code == wrong {
		wrong = "100001"
	}
	_, err = f.svc.SubmitQuestion(context.Background(), "u@x.com", "How do goroutines work?", wrong)
	appErr = assertAppError(t, err, apperror.ErrCodeChallengeMismatch)
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.False(t, appErr.RenewChallenge)

	f.now = f.now.Add(time.Minute)
	_, err = f.svc.SubmitQuestion(context.Background(), "u@x.com", "How do goroutines work?", code)
	appErr = assertAppError(t, err, apperror.ErrCodeChallengeExpired)
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.True(t, appErr.RenewChallenge)

	assert.Equal(t, 0, f.provider.Calls())
}

func TestGatingService_ProviderEmptyAnswer(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})
	f.provider.answer = "   "
	code := f.issue(t, "u@x.com")

	_, err := f.svc.SubmitQuestion(context.Background(), "u@x.com", "What is a channel?", code)
	appErr := assertAppError(t, err, apperror.ErrCodeNoAnswer)
	assert.Equal(t, 500, appErr.HTTPStatus)

	f.provider.answer = ""
	f.provider.err = ai.ErrEmptyAnswer
	code = f.issue(t, "u@x.com")
	_, err = f.svc.SubmitQuestion(context.Background(), "u@x.com", "What is a channel?", code)
	assertAppError(t, err, apperror.ErrCodeNoAnswer)
}

func TestGatingService_ProviderFailureConsumesCode(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})
	f.provider.err = &ai.StatusError{StatusCode: 502}
	code := f.issue(t, "u@x.com")

	_, err := f.svc.SubmitQuestion(context.Background(), "u@x.com", "What is a channel?", code)
	appErr := assertAppError(t, err, apperror.ErrCodeProviderUnavailable)
	assert.Equal(t, 500, appErr.HTTPStatus)

	var statusErr *ai.StatusError
	assert.True(t, errors.As(err, &statusErr))

	_, ok := f.store.Lookup("u@x.com")
	assert.False(t, ok)
}

func TestGatingService_ProviderFailureRefund(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{RefundOnProviderFailure: true})
	f.provider.err = errors.New("connection reset")
	code := f.issue(t, "u@x.com")

	_, err := f.svc.SubmitQuestion(context.Background(), "u@x.com", "What is a channel?", code)
	assertAppError(t, err, apperror.ErrCodeProviderUnavailable)

	f.provider.mu.Lock()
	f.provider.err = nil
	f.provider.mu.Unlock()

	answer, err := f.svc.SubmitQuestion(context.Background(), "u@x.com", "What is a channel?", code)
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
}

func TestGatingService_ProviderTimeout(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{ProviderTimeout: 20 * time.Millisecond})
	f.provider.block = true
	code := f.issue(t, "u@x.com")

	start := time.Now()
	_, err := f.svc.SubmitQuestion(context.Background(), "u@x.com", "What is a channel?", code)
	assertAppError(t, err, apperror.ErrCodeProviderUnavailable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGatingService_ConcurrentSubmitSingleSuccess(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})
	code := f.issue(t, "u@x.com")

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.SubmitQuestion(context.Background(), "u@x.com", "How do closures work?", code)
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assertAppError(t, err, apperror.ErrCodeChallengeNotFound)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, f.provider.Calls())
}

func TestGatingService_ReissueInvalidatesFirstCode(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})
	first := f.issue(t, "u@x.com")
	second := f.issue(t, "u@x.com")

	if first != second {
		_, err := f.svc.SubmitQuestion(context.Background(), "u@x.com", "What is a slice?", first)
		assertAppError(t, err, apperror.ErrCodeChallengeMismatch)
	}

	_, err := f.svc.SubmitQuestion(context.Background(), "u@x.com", "What is a slice?", second)
	require.NoError(t, err)
}

func TestGatingService_WhitespaceQuestionReachesCodeCheck(t *testing.T) {
	f := newGatingFixture(t, GatingOptions{})

	_, err := f.svc.SubmitQuestion(context.Background(), "u@x.com", "   ", "123456")
	assertAppError(t, err, apperror.ErrCodeChallengeNotFound)
}

func TestGatingService_SystemPromptFollowsDenylist(t *testing.T) {
	store := repository.NewChallengeRepository(time.Minute)

	svc := NewGatingService(store, &mockProvider{}, nil, validation.NewTopicPolicy(nil, ""), GatingOptions{})
	assert.Equal(t, ai.SystemInstruction, svc.SystemPrompt())

	svc = NewGatingService(store, &mockProvider{}, nil, validation.NewTopicPolicy([]string{"cobol", "perl"}, ""), GatingOptions{})
	assert.Contains(t, svc.SystemPrompt(), "cobol, perl")
	assert.NotContains(t, strings.ToLower(svc.SystemPrompt()), "java")

	svc = NewGatingService(store, &mockProvider{}, nil, nil, GatingOptions{SystemPrompt: "custom"})
	assert.Equal(t, "custom", svc.SystemPrompt())
}

func TestGatingService_CustomDenylistPromptReachesProvider(t *testing.T) {
	store := repository.NewChallengeRepository(time.Minute)
	provider := &mockProvider{answer: "ok"}
	svc := NewGatingService(store, provider, nil, validation.NewTopicPolicy([]string{"cobol"}, ""), GatingOptions{})

	ch := store.Issue("u@x.com")
	_, err := svc.SubmitQuestion(context.Background(), "u@x.com", "What is a slice?", ch.Code)
	require.NoError(t, err)
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "cobol")
}
