package main

import (
	"context"
	"sync"

	"budgetly/internal/amqp"
	"budgetly/internal/cli"
	"budgetly/internal/config"
	"budgetly/internal/log"
	"budgetly/internal/mail"
	"budgetly/internal/ports"
	gsheet "budgetly/internal/sheets/google"
	"budgetly/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadWorkerConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)
	logger.Info("Starting budgetly-worker")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	client, err := amqp.NewClient(amqp.Config{
		URL:           cfg.AMQPURL,
		Exchange:      cfg.AMQPExchange,
		MailQueue:     cfg.AMQPMailQueue,
		ActivityQueue: cfg.AMQPActivityQueue,
	}, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer client.Close()

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to configure mail delivery", err)
	}
	mailWorker := worker.NewMailWorker(mailer, cfg.MailTimeout, logger).WithMaxAge(cfg.ResetCodeTTL)

	supervisor := worker.NewSupervisor(logger)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		supervisor.Run(ctx, cfg.AMQPMailQueue, func(ctx context.Context) error {
			return client.ConsumeResetMail(ctx, mailWorker.HandleResetMail)
		})
	}()

	// Activity export is optional; without a spreadsheet the queue simply
	// accumulates until a worker with one is started.
	if cfg.GoogleSpreadsheetID != "" {
		sheetsCfg := gsheet.ConfigFromEnv()
		sheetsCfg.SpreadsheetID = cfg.GoogleSpreadsheetID
		sheetsCfg.SheetName = cfg.GoogleSheetName
		sheetsClient, err := gsheet.New(ctx, sheetsCfg, logger)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		syncWorker := worker.NewSyncWorker(sheetsClient, logger)
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)

		wg.Add(1)
		go func() {
			defer wg.Done()
			supervisor.Run(ctx, cfg.AMQPActivityQueue, func(ctx context.Context) error {
				return client.ConsumeExpenseActivity(ctx, syncWorker.HandleActivityMessage)
			})
		}()
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	wg.Wait()
	logger.Info("Worker stopped gracefully")
}

// newMailer delivers through Brevo when a key is configured and logs the
// message otherwise.
func newMailer(cfg *config.Config, logger *log.Logger) (ports.Mailer, error) {
	if cfg.BrevoAPIKey == "" {
		logger.Warn("BREVO_API_KEY not set, reset mail will only be logged")
		return mail.NewLogMailer(logger), nil
	}
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
}
