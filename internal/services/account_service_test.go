package services

import (
	"context"
	"errors"
	"testing"

	"budgetly/internal/core"
	"budgetly/internal/storage/memory"
)

func newAccount() (*AccountService, *memory.Store) {
	store := memory.New()
	return NewAccountService(store.Users(), plainHasher{}, staticToken{}, nil), store
}

func TestSignup(t *testing.T) {
	svc, _ := newAccount()
	ctx := context.Background()

	u, err := svc.Signup(ctx, " Ada ", "Ada@Example.com", "password1")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.Name != "Ada" || u.Email != "ada@example.com" || u.PasswordHash != "hashed:password1" {
		t.Fatalf("unexpected user %+v", u)
	}

	if _, err := svc.Signup(ctx, "Other", "ada@example.com", "password2"); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	invalid := [][3]string{
		{"", "b@example.com", "password1"},
		{"Bob", "", "password1"},
		{"Bob", "not-an-email", "password1"},
		{"Bob", "b@example.com", "short"},
	}
	for _, in := range invalid {
		if _, err := svc.Signup(ctx, in[0], in[1], in[2]); !core.IsValidation(err) {
			t.Fatalf("%v: expected validation error, got %v", in, err)
		}
	}
}

func TestLoginIsGeneric(t *testing.T) {
	svc, _ := newAccount()
	ctx := context.Background()
	if _, err := svc.Signup(ctx, "Ada", "ada@example.com", "password1"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	token, u, err := svc.Login(ctx, "ADA@example.com", "password1")
	if err != nil || token != "token" || u.Email != "ada@example.com" {
		t.Fatalf("unexpected login result %q %+v %v", token, u, err)
	}

	_, _, errWrong := svc.Login(ctx, "ada@example.com", "wrong-pass")
	_, _, errUnknown := svc.Login(ctx, "nobody@example.com", "password1")
	if !errors.Is(errWrong, core.ErrInvalidCredentials) || !errors.Is(errUnknown, core.ErrInvalidCredentials) {
		t.Fatalf("expected generic credential errors, got %v and %v", errWrong, errUnknown)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newAccount()
	ctx := context.Background()
	ada, _ := svc.Signup(ctx, "Ada", "ada@example.com", "password1")
	if _, err := svc.Signup(ctx, "Bob", "bob@example.com", "password1"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	u, err := svc.UpdateProfile(ctx, ada.ID, "Ada L.", "")
	if err != nil || u.Name != "Ada L." || u.Email != "ada@example.com" {
		t.Fatalf("unexpected update %+v (err=%v)", u, err)
	}
	if _, err := svc.UpdateProfile(ctx, ada.ID, "", "BOB@example.com"); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, ada.ID, "", "broken"); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	u, err = svc.UpdateProfile(ctx, ada.ID, "", "ada@new.example.com")
	if err != nil || u.Email != "ada@new.example.com" {
		t.Fatalf("unexpected update %+v (err=%v)", u, err)
	}
	if _, err := svc.UpdateProfile(ctx, 999, "x", ""); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newAccount()
	ctx := context.Background()
	ada, _ := svc.Signup(ctx, "Ada", "ada@example.com", "password1")

	if err := svc.ChangePassword(ctx, ada.ID, "wrong", "password2"); !core.IsValidation(err) {
		t.Fatalf("expected validation error for wrong current password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, ada.ID, "password1", "short"); !core.IsValidation(err) {
		t.Fatalf("expected weak password rejection, got %v", err)
	}
	if err := svc.ChangePassword(ctx, ada.ID, "password1", "password2"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "ada@example.com", "password2"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}
