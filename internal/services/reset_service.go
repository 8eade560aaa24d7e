package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"
)

const resetSubject = "Your Password Reset OTP"

// PasswordHasher hashes and checks password credentials.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) (bool, error)
}

type ResetConfig struct {
	// CodeTTL is how long an issued code stays valid (default: 15m)
	CodeTTL time.Duration

	// MailTimeout bounds a single dispatch attempt (default: 10s)
	MailTimeout time.Duration

	// Random is the entropy source for codes (default: crypto/rand)
	Random io.Reader

	// Now is the clock (default: time.Now)
	Now func() time.Time
}

func DefaultResetConfig() ResetConfig {
	return ResetConfig{
		CodeTTL:     core.DefaultResetTTL,
		MailTimeout: 10 * time.Second,
		Now:         time.Now,
	}
}

// ResetService runs the one-time-code password reset flow.
type ResetService struct {
	users  ports.UserStore
	mailer ports.Mailer
	hasher PasswordHasher
	config ResetConfig
	logger *log.Logger
}

func NewResetService(users ports.UserStore, mailer ports.Mailer, hasher PasswordHasher, config ResetConfig, logger *log.Logger) *ResetService {
	defaults := DefaultResetConfig()
	if config.CodeTTL <= 0 {
		config.CodeTTL = defaults.CodeTTL
	}
	if config.MailTimeout <= 0 {
		config.MailTimeout = defaults.MailTimeout
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ResetService{
		users:  users,
		mailer: mailer,
		hasher: hasher,
		config: config,
		logger: logger.WithComponent(log.ComponentReset),
	}
}

// RequestPasswordReset issues a fresh code for a registered email and mails
// it. ack is called exactly once, after the code is stored and before the
// message is sent, for registered and unknown emails alike. Only a missing
// email fails, and it fails before ack.
//
// Delivery is attempted once with a bounded timeout on a context that
// survives client cancellation. Failures are logged and never returned.
func (s *ResetService) RequestPasswordReset(ctx context.Context, email string, ack func()) error {
	email = core.NormalizeEmail(email)
	if email == "" {
		return core.NewValidationError("email", "email is required")
	}

	var once sync.Once
	acknowledge := func() {
		once.Do(func() {
			if ack != nil {
				ack()
			}
		})
	}
	defer acknowledge()

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.DebugContext(ctx, "Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Password reset lookup failed", log.FieldError, err)
		return nil
	}

	pending, err := core.NewPendingReset(s.config.Random, s.config.Now(), s.config.CodeTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "Reset code generation failed", log.FieldUserID, user.ID, log.FieldError, err)
		return nil
	}
	if err := s.users.SetPendingReset(ctx, user.ID, pending); err != nil {
		s.logger.ErrorContext(ctx, "Reset code could not be stored", log.FieldUserID, user.ID, log.FieldError, err)
		return nil
	}

	acknowledge()
	s.dispatch(ctx, user, pending)
	return nil
}

func (s *ResetService) dispatch(ctx context.Context, user core.User, pending core.PendingReset) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.MailTimeout)
	defer cancel()

	msg := ports.MailMessage{
		To:      user.Email,
		Subject: resetSubject,
		Body:    resetBody(pending.Code, s.config.CodeTTL),
	}
	if err := s.mailer.Send(dctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Reset code dispatch failed",
			log.FieldUserID, user.ID,
			log.FieldOperation, log.OpDispatch,
			log.FieldError, err)
		return
	}
	s.logger.InfoContext(ctx, "Reset code dispatched", log.FieldUserID, user.ID)
}

func resetBody(code string, ttl time.Duration) string {
	minutes := int(math.Ceil(ttl.Minutes()))
	return fmt.Sprintf("Your OTP is %s. It expires in %d minutes.", code, minutes)
}

// VerifyResetCode checks code without consuming it.
func (s *ResetService) VerifyResetCode(ctx context.Context, email, code string) error {
	_, _, err := s.check(ctx, email, code)
	return err
}

// ResetPassword re-checks code, then replaces the credential and clears the
// pending code in one store operation. A code superseded or consumed in the
// meantime fails with core.ErrInvalidOrExpired.
func (s *ResetService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := core.ValidatePassword(newPassword); err != nil {
		return err
	}
	user, pending, err := s.check(ctx, email, code)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.CompleteReset(ctx, user.ID, pending.Code, hash); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrInvalidOrExpired
		}
		return fmt.Errorf("complete reset: %w", err)
	}

	s.logger.InfoContext(ctx, "Password reset completed", log.FieldUserID, user.ID)
	return nil
}

func (s *ResetService) check(ctx context.Context, email, code string) (core.User, core.PendingReset, error) {
	user, err := s.users.FindByEmail(ctx, core.NormalizeEmail(email))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.PendingReset{}, core.ErrInvalidOrExpired
	}
	if err != nil {
		return core.User{}, core.PendingReset{}, fmt.Errorf("find user: %w", err)
	}
	pending, err := core.CheckResetCode(user.Reset, code, s.config.Now())
	if err != nil {
		return core.User{}, core.PendingReset{}, err
	}
	return user, pending, nil
}
