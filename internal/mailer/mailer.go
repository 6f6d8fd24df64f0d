// Package mailer доставляет одноразовые коды на email.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/otp-chat-gateway/internal/logger"
)

const (
	defaultTimeout = 15 * time.Second
	defaultSubject = "Your one-time code"
)

// HTTPMailer отправляет письмо через HTTP API почтового сервиса с bearer токеном.
type HTTPMailer struct {
	url        string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewHTTPMailer создаёт клиент почтового API.
func NewHTTPMailer(url, apiKey, from string) *HTTPMailer {
	return &HTTPMailer{
		url:    url,
		apiKey: apiKey,
		from:   from,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type message struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// SendOTP отправляет код. Сам код в лог не пишется.
func (m *HTTPMailer) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	if m.url == "" {
		return fmt.Errorf("mailer: url не задан")
	}

	raw, err := json.Marshal(message{
		From:    m.from,
		To:      to,
		Subject: defaultSubject,
		Text:    renderBody(code, ttl),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: запрос не выполнен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mailer: код ответа %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// LogMailer пишет код в лог вместо отправки. Только для development.
type LogMailer struct{}

// SendOTP логирует код.
func (LogMailer) SendOTP(_ context.Context, to, code string, ttl time.Duration) error {
	logger.Log.WithFields(logrus.Fields{
		"email": to,
		"otp":   code,
		"ttl":   ttl.String(),
	}).Warn("mailer: почтовый API не настроен, код выведен в лог")
	return nil
}

func renderBody(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your one-time code is %s. It expires in %d seconds.", code, int(ttl.Seconds()))
}
