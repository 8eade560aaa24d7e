// Package mail provides the ports.Mailer transports: Brevo's transactional
// e-mail API, an AMQP hand-off to the worker and a log-only sink.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"budgetly/internal/log"
	"budgetly/internal/ports"
)

const (
	DefaultBrevoURL     = "https://api.brevo.com/v3/smtp/email"
	DefaultSenderName   = "Expense Tracker"
	defaultBrevoTimeout = 10 * time.Second
	maxErrorBodySize    = 4096
)

// ErrRejected reports a 4xx answer from the mail provider; retrying will not help.
var ErrRejected = errors.New("mail rejected by provider")

type BrevoConfig struct {
	APIKey     string
	URL        string
	FromEmail  string
	FromName   string
	HTTPClient *http.Client
}

// BrevoMailer sends plain-text mail through the Brevo SMTP API.
type BrevoMailer struct {
	apiKey string
	url    string
	sender brevoContact
	client *http.Client
	logger *log.Logger
}

var _ ports.Mailer = (*BrevoMailer)(nil)

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoPayload struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	TextContent string         `json:"textContent"`
}

func NewBrevoMailer(cfg BrevoConfig, logger *log.Logger) (*BrevoMailer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("brevo api key required")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errors.New("brevo sender address required")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultBrevoURL
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultSenderName
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultBrevoTimeout}
	} else if client.Timeout == 0 {
		client.Timeout = defaultBrevoTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &BrevoMailer{
		apiKey: cfg.APIKey,
		url:    cfg.URL,
		sender: brevoContact{Email: cfg.FromEmail, Name: cfg.FromName},
		client: client,
		logger: logger.WithComponent(log.ComponentMail),
	}, nil
}

func (b *BrevoMailer) Send(ctx context.Context, m ports.MailMessage) error {
	body, err := json.Marshal(brevoPayload{
		Sender:      b.sender,
		To:          []brevoContact{{Email: m.To}},
		Subject:     m.Subject,
		TextContent: m.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal brevo payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorForStatus(resp)
	}
	b.logger.InfoContext(ctx, "Mail sent", log.FieldTransport, "brevo")
	return nil
}

func errorForStatus(resp *http.Response) error {
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	summary := strings.TrimSpace(string(buf))
	if summary == "" {
		summary = resp.Status
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, summary)
	}
	return fmt.Errorf("brevo request failed: %d %s", resp.StatusCode, summary)
}
