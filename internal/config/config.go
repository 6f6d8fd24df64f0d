package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все параметры запуска приложения.
type Config struct {
	Env      string
	HTTPPort string
	LogLevel string

	OTPTTL                  time.Duration
	RefundOnProviderFailure bool
	TopicDenylist           []string

	AIBaseURL string
	AIModel   string
	AIAPIKey  string
	AITimeout time.Duration
	AIReferer string
	AITitle   string

	MailAPIURL string
	MailAPIKey string
	MailFrom   string

	AllowedOrigins  []string
	RateLimitLimit  int64
	RateLimitPeriod time.Duration
}

// Load читает переменные окружения и возвращает готовую конфигурацию.
func Load() (*Config, error) {
	// Загружаем .env только если он существует, иначе используем системные переменные.
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("config: .env не найден, используем переменные окружения: %v", err)
	}

	env := getEnv("APP_ENV", "development")

	defaultLevel := "info"
	if env == "development" {
		defaultLevel = "debug"
	}

	cfg := &Config{
		Env:        env,
		HTTPPort:   getEnv("HTTP_PORT", "5000"),
		LogLevel:   getEnv("LOG_LEVEL", defaultLevel),
		AIBaseURL:  getEnv("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:    getEnv("AI_MODEL", "openai/gpt-3.5-turbo"),
		AIAPIKey:   getEnv("AI_API_KEY", ""),
		AIReferer:  getEnv("AI_REFERER", "http://localhost:3000"),
		AITitle:    getEnv("AI_TITLE", "Programming Chatbot"),
		MailAPIURL: getEnv("MAIL_API_URL", ""),
		MailAPIKey: getEnv("MAIL_API_KEY", ""),
		MailFrom:   getEnv("MAIL_FROM", ""),
	}

	var err error
	if cfg.OTPTTL, err = parseDuration("OTP_TTL", "60s"); err != nil {
		return nil, err
	}
	if cfg.AITimeout, err = parseDuration("AI_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RateLimitPeriod, err = parseDuration("RATE_LIMIT_PERIOD", "1m"); err != nil {
		return nil, err
	}
	if cfg.RateLimitLimit, err = parseInt64("RATE_LIMIT_LIMIT", "30"); err != nil {
		return nil, err
	}
	if cfg.RefundOnProviderFailure, err = parseBool("OTP_REFUND_ON_PROVIDER_FAILURE", "false"); err != nil {
		return nil, err
	}

	cfg.TopicDenylist = splitList(getEnv("TOPIC_DENYLIST", "java"))

	if env == "production" && cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("config: AI_API_KEY обязателен в production")
	}
	if cfg.AIAPIKey == "" {
		log.Printf("config: WARNING - AI_API_KEY не задан, запросы к модели будут отклонены провайдером")
	}

	// CORS allowed origins
	originsStr := getEnv("CORS_ALLOWED_ORIGINS", "")
	if originsStr == "" {
		if env == "production" {
			return nil, fmt.Errorf("config: CORS_ALLOWED_ORIGINS обязателен в production")
		}
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	} else {
		cfg.AllowedOrigins = splitList(originsStr)
	}

	return cfg, nil
}

// getEnv возвращает значение переменной окружения или дефолт.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// splitList разбивает список через запятую и убирает пробелы.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, fallback string) (time.Duration, error) {
	v := getEnv(key, fallback)
	dur, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: не удалось распарсить %s=%q: %w", key, v, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("config: %s должен быть положительным, получено %q", key, v)
	}
	return dur, nil
}

func parseInt64(key, fallback string) (int64, error) {
	v := getEnv(key, fallback)
	num, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: не удалось распарсить %s=%q: %w", key, v, err)
	}
	return num, nil
}

func parseBool(key, fallback string) (bool, error) {
	v := getEnv(key, fallback)
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: не удалось распарсить %s=%q: %w", key, v, err)
	}
	return b, nil
}
