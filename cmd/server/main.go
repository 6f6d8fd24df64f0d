package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignatzorin/otp-chat-gateway/internal/ai"
	"github.com/ignatzorin/otp-chat-gateway/internal/config"
	httpHandlers "github.com/ignatzorin/otp-chat-gateway/internal/http/handlers"
	httpRouter "github.com/ignatzorin/otp-chat-gateway/internal/http/router"
	"github.com/ignatzorin/otp-chat-gateway/internal/logger"
	"github.com/ignatzorin/otp-chat-gateway/internal/mailer"
	"github.com/ignatzorin/otp-chat-gateway/internal/repository"
	"github.com/ignatzorin/otp-chat-gateway/internal/service"
	"github.com/ignatzorin/otp-chat-gateway/internal/validation"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Хранилище кодов живёт только в памяти процесса.
	challenges := repository.NewChallengeRepository(cfg.OTPTTL)

	provider := ai.NewClient(ai.Options{
		BaseURL: cfg.AIBaseURL,
		APIKey:  cfg.AIAPIKey,
		Model:   cfg.AIModel,
		Referer: cfg.AIReferer,
		Title:   cfg.AITitle,
		Timeout: cfg.AITimeout,
	})

	var notifier service.Notifier
	if cfg.MailAPIURL != "" {
		notifier = mailer.NewHTTPMailer(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
	} else {
		notifier = mailer.LogMailer{}
	}

	gating := service.NewGatingService(
		challenges,
		provider,
		notifier,
		validation.NewTopicPolicy(cfg.TopicDenylist, ""),
		service.GatingOptions{
			ProviderTimeout:         cfg.AITimeout,
			RefundOnProviderFailure: cfg.RefundOnProviderFailure,
		},
	)

	// HTTP хэндлеры.
	chatHandler := httpHandlers.NewChatHandler(gating)
	healthHandler := httpHandlers.NewHealthHandler()

	engine := httpRouter.SetupRouter(cfg, chatHandler, healthHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s (модель %s)", cfg.HTTPPort, provider.Model())

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}
