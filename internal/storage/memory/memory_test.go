package memory

import (
	"testing"

	"budgetly/internal/ports"
	"budgetly/internal/storage/storetest"

	"github.com/stretchr/testify/suite"
)

func TestMemoryStore(t *testing.T) {
	s := &storetest.StoreSuite{}
	s.Open = func(*testing.T) ports.Store { return New() }
	suite.Run(t, s)
}
