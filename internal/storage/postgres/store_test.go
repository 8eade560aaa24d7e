package postgres

import (
	"context"
	"os"
	"testing"

	"budgetly/internal/ports"
	"budgetly/internal/storage/storetest"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Runs only when TEST_DATABASE_URL points at a disposable database.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	s := &storetest.StoreSuite{}
	s.Open = func(t *testing.T) ports.Store {
		ctx := context.Background()
		store, err := NewStore(ctx, url)
		require.NoError(t, err)
		_, err = store.pool.Exec(ctx, `TRUNCATE budgets, expenses, users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		return store
	}
	suite.Run(t, s)
}
