package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Generate(user core.User) (string, error)
}

// AccountService handles signup, login and profile maintenance.
type AccountService struct {
	users  ports.UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	logger *log.Logger
}

func NewAccountService(users ports.UserStore, hasher PasswordHasher, tokens TokenIssuer, logger *log.Logger) *AccountService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AccountService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentAccount),
	}
}

// Signup registers a new user. core.ErrConflict when the email is taken.
func (s *AccountService) Signup(ctx context.Context, name, email, password string) (core.User, error) {
	name = strings.TrimSpace(name)
	email = core.NormalizeEmail(email)
	if name == "" {
		return core.User{}, core.NewValidationError("name", "name is required")
	}
	if err := core.ValidateEmail(email); err != nil {
		return core.User{}, err
	}
	if err := core.ValidatePassword(password); err != nil {
		return core.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.Create(ctx, core.User{Name: name, Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.User{}, err
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "User signed up", log.FieldUserID, user.ID)
	return user, nil
}

// Login checks credentials and issues a token. Unknown email and wrong
// password both yield core.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, core.User, error) {
	user, err := s.users.FindByEmail(ctx, core.NormalizeEmail(email))
	if errors.Is(err, core.ErrNotFound) {
		return "", core.User{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return "", core.User{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return "", core.User{}, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return "", core.User{}, core.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return "", core.User{}, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}

func (s *AccountService) Profile(ctx context.Context, userID int64) (core.User, error) {
	return s.users.FindByID(ctx, userID)
}

// UpdateProfile changes name and/or email. Empty values keep the current ones.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, name, email string) (core.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return core.User{}, err
	}
	if n := strings.TrimSpace(name); n != "" {
		user.Name = n
	}
	if e := core.NormalizeEmail(email); e != "" && e != user.Email {
		if err := core.ValidateEmail(e); err != nil {
			return core.User{}, err
		}
		user.Email = e
	}
	updated, err := s.users.UpdateProfile(ctx, userID, user.Name, user.Email)
	if err != nil {
		if errors.Is(err, core.ErrConflict) || errors.Is(err, core.ErrNotFound) {
			return core.User{}, err
		}
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

// ChangePassword replaces the credential after checking the current one.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Compare(user.PasswordHash, current)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return core.NewValidationError("currentPassword", "current password is incorrect")
	}
	if err := core.ValidatePassword(next); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdateCredential(ctx, userID, hash); err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	s.logger.InfoContext(ctx, "Password changed", log.FieldUserID, userID)
	return nil
}
