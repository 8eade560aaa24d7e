package core

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"
)

const (
	ResetCodeLength = 6
	DefaultResetTTL = 15 * time.Minute
)

var resetCodeSpace = big.NewInt(1_000_000)

// ResetState is the password-reset state of a user: NoPendingReset or PendingReset.
type ResetState interface {
	isResetState()
}

// NoPendingReset means no code is outstanding.
type NoPendingReset struct{}

// PendingReset holds the only valid code and its absolute expiry.
type PendingReset struct {
	Code      string
	ExpiresAt time.Time
}

func (NoPendingReset) isResetState() {}
func (PendingReset) isResetState()   {}

// NewPendingReset draws a uniform 6-digit code from r (crypto/rand when nil).
func NewPendingReset(r io.Reader, now time.Time, ttl time.Duration) (PendingReset, error) {
	if r == nil {
		r = rand.Reader
	}
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	n, err := rand.Int(r, resetCodeSpace)
	if err != nil {
		return PendingReset{}, fmt.Errorf("generate reset code: %w", err)
	}
	return PendingReset{
		Code:      fmt.Sprintf("%0*d", ResetCodeLength, n.Int64()),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// CheckResetCode validates code against state at now. Any failure, including
// the absence of a pending code, is ErrInvalidOrExpired.
func CheckResetCode(state ResetState, code string, now time.Time) (PendingReset, error) {
	pending, ok := state.(PendingReset)
	if !ok {
		return PendingReset{}, ErrInvalidOrExpired
	}
	if now.After(pending.ExpiresAt) {
		return PendingReset{}, ErrInvalidOrExpired
	}
	if pending.Code != code {
		return PendingReset{}, ErrInvalidOrExpired
	}
	return pending, nil
}
