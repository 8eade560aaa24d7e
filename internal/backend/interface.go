// Package backend builds the record store selected by configuration.
package backend

import (
	"context"

	"budgetly/internal/ports"
)

// Factory creates stores based on configuration
type Factory interface {
	CreateStore(ctx context.Context, config Config) (ports.Store, error)
}

// Config holds configuration for store creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
