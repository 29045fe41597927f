package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"carteira/internal/advice"
	"carteira/internal/aggregate"
	"carteira/internal/amqp"
	"carteira/internal/cache"
	"carteira/internal/cli"
	"carteira/internal/entitlement"
	apphttp "carteira/internal/http"
	"carteira/internal/log"
	"carteira/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store := cli.InitStore(ctx, logger, cfg)

	// Ledger events are optional on the API side; without a broker the
	// export worker simply never hears about commits.
	var publisher services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		amqpClient, publisher = c, c
		logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	var advisor advice.Advisor
	if cfg.GeminiAPIKey != "" {
		a, err := advice.NewGeminiAdvisor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("Failed to initialize Gemini advisor", "error", err)
			os.Exit(1)
		}
		advisor = a
		logger.Info("AI analysis enabled", "model", cfg.GeminiModel)
	} else {
		logger.Info("AI analysis disabled - no GEMINI_API_KEY provided")
	}

	summaries := cache.NewLRUCache[aggregate.Summary](1000, cfg.SummaryCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(summaries)
	caches.StartCleanup(ctx, time.Minute)

	var checkout *apphttp.TokenVerifier
	if cfg.CheckoutWebhookSecret != "" {
		checkout = apphttp.NewTokenVerifier(cfg.CheckoutWebhookSecret, "")
	} else {
		logger.Info("Checkout confirmation disabled - no CHECKOUT_WEBHOOK_SECRET provided")
	}

	resolver := entitlement.NewResolver(store.Store, logger)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Tokens:             apphttp.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Checkout:           checkout,
		Ledger:             services.NewLedgerService(store.Store, resolver, publisher, summaries, logger),
		Analysis:           services.NewAnalysisService(store.Store, resolver, advisor, summaries, logger),
		Accounts:           services.NewAccountService(resolver, store.Store, publisher, logger),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              store.Ping,
		Logger:             logger,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := store.Store.Close(); err != nil {
			logger.Error("Store close error", "error", err)
		}
	})

	logger.Info("Starting carteira server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
