package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"budgetly/internal/amqp"
	"budgetly/internal/auth"
	"budgetly/internal/cache"
	"budgetly/internal/cli"
	"budgetly/internal/config"
	"budgetly/internal/core"
	apphttp "budgetly/internal/http"
	"budgetly/internal/log"
	"budgetly/internal/mail"
	"budgetly/internal/middleware/metrics"
	"budgetly/internal/middleware/ratelimit"
	"budgetly/internal/ports"
	"budgetly/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open store", err)
	}
	defer store.Close()

	// The AMQP client is optional: without it expense activity is not
	// exported and reset mail cannot use the queue transport.
	var queue *amqp.Client
	if cfg.AMQPURL != "" {
		queue, err = amqp.NewClient(amqp.Config{
			URL:           cfg.AMQPURL,
			Exchange:      cfg.AMQPExchange,
			MailQueue:     cfg.AMQPMailQueue,
			ActivityQueue: cfg.AMQPActivityQueue,
		}, logger)
		if err != nil {
			cli.Fatal(logger, "Failed to connect to AMQP", err)
		}
		defer queue.Close()
	}

	mailer, err := newMailer(cfg, queue, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to configure mail transport", err)
	}

	var summaryCache cache.Cache[core.MonthlySummary]
	if cfg.SummaryCacheEnabled() {
		lru := cache.NewLRUCache[core.MonthlySummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
		cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
		cacheManager.Register(lru)
		cacheManager.StartCleanup(time.Minute)
		defer cacheManager.Stop()
		summaryCache = lru
	} else {
		logger.Info("Summary cache disabled", "backend", cfg.DataBackend)
	}

	hasher := auth.NewHasher(0)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	var publisher ports.ActivityPublisher
	if queue != nil {
		publisher = queue
	}
	summaries := services.NewSummaryService(store.Expenses(), cfg.Location(), summaryCache, logger)
	svc := apphttp.Services{
		Accounts:  services.NewAccountService(store.Users(), hasher, tokens, logger),
		Resets:    services.NewResetService(store.Users(), mailer, hasher, services.ResetConfig{CodeTTL: cfg.ResetCodeTTL, MailTimeout: cfg.MailTimeout}, logger),
		Expenses:  services.NewExpenseService(store.Expenses(), summaries, publisher, time.Now, logger),
		Budgets:   services.NewBudgetService(store.Budgets(), summaries, logger),
		Summaries: summaries,
	}

	limiter := newLimiter(ctx, cfg, logger)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:          ":" + cfg.Port,
		Services:      svc,
		Tokens:        tokens,
		Store:         store,
		Limiter:       limiter,
		RateLimit:     cfg.RateLimitPerMinute,
		AuthRateLimit: cfg.AuthRateLimitPerMinute,
		ClientURL:     cfg.ClientURL,
		Metrics:       metrics.New("budgetly"),
		Logger:        logger,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting budgetly server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldTransport, cfg.MailTransport,
		"timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}
	logger.Info("Server stopped gracefully")
}

func newMailer(cfg *config.Config, queue *amqp.Client, logger *log.Logger) (ports.Mailer, error) {
	switch cfg.MailTransport {
	case config.MailTransportBrevo:
		m, err := mail.NewBrevoMailer(mail.BrevoConfig{
			APIKey:    cfg.BrevoAPIKey,
			URL:       cfg.BrevoAPIURL,
			FromEmail: cfg.MailFrom,
			FromName:  cfg.MailFromName,
		}, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.MailTransportAMQP:
		if queue == nil {
			return nil, errors.New("MAIL_TRANSPORT=amqp needs AMQP_URL")
		}
		return mail.NewQueueMailer(queue, time.Now), nil
	default:
		return mail.NewLogMailer(logger), nil
	}
}

// newLimiter prefers Redis so limits hold across replicas, and falls back
// to the in-process limiter when Redis is absent or unreachable.
func newLimiter(ctx context.Context, cfg *config.Config, logger *log.Logger) ratelimit.Limiter {
	if cfg.RedisURL != "" {
		rl, err := ratelimit.NewRedisLimiter(ctx, cfg.RedisURL, logger)
		if err == nil {
			return rl
		}
		logger.Warn("Redis unavailable, using in-memory rate limiter", log.FieldError, err)
	}
	return ratelimit.NewMemoryLimiter(time.Minute)
}
