// Package storetest holds the behaviour every ports.Store backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// StoreSuite runs against the store returned by Open, which is called
// before every test with that test's T.
type StoreSuite struct {
	suite.Suite
	Open  func(t *testing.T) ports.Store
	store ports.Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.Open(s.T())
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *StoreSuite) newUser(email string) core.User {
	u, err := s.store.Users().Create(s.ctx, core.User{Email: email, Name: "Test", PasswordHash: "hash"})
	s.Require().NoError(err)
	return u
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) TestUserCreateAndFind() {
	u := s.newUser("ada@example.com")
	s.NotZero(u.ID)
	s.IsType(core.NoPendingReset{}, u.Reset)

	byEmail, err := s.store.Users().FindByEmail(s.ctx, "ada@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)

	byID, err := s.store.Users().FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("ada@example.com", byID.Email)

	_, err = s.store.Users().FindByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *StoreSuite) TestUserEmailIsUnique() {
	s.newUser("ada@example.com")
	_, err := s.store.Users().Create(s.ctx, core.User{Email: "ada@example.com", Name: "Other", PasswordHash: "x"})
	s.ErrorIs(err, core.ErrConflict)

	other := s.newUser("bob@example.com")
	_, err = s.store.Users().UpdateProfile(s.ctx, other.ID, "Bob", "ada@example.com")
	s.ErrorIs(err, core.ErrConflict)

	updated, err := s.store.Users().UpdateProfile(s.ctx, other.ID, "Robert", "robert@example.com")
	s.Require().NoError(err)
	s.Equal("Robert", updated.Name)
	s.Equal("robert@example.com", updated.Email)
}

func (s *StoreSuite) TestPendingResetLifecycle() {
	u := s.newUser("ada@example.com")
	expires := time.Date(2024, 3, 1, 12, 15, 0, 0, time.UTC)

	s.Require().NoError(s.store.Users().SetPendingReset(s.ctx, u.ID, core.PendingReset{Code: "111111", ExpiresAt: expires}))
	s.Require().NoError(s.store.Users().SetPendingReset(s.ctx, u.ID, core.PendingReset{Code: "222222", ExpiresAt: expires}))

	got, err := s.store.Users().FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	pending, ok := got.Reset.(core.PendingReset)
	s.Require().True(ok, "expected a pending reset, got %T", got.Reset)
	s.Equal("222222", pending.Code)
	s.True(pending.ExpiresAt.Equal(expires))

	// The superseded code no longer matches.
	err = s.store.Users().CompleteReset(s.ctx, u.ID, "111111", "new-hash")
	s.ErrorIs(err, core.ErrNotFound)

	s.Require().NoError(s.store.Users().CompleteReset(s.ctx, u.ID, "222222", "new-hash"))
	got, err = s.store.Users().FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("new-hash", got.PasswordHash)
	s.IsType(core.NoPendingReset{}, got.Reset)

	// Consumed.
	s.ErrorIs(s.store.Users().CompleteReset(s.ctx, u.ID, "222222", "again"), core.ErrNotFound)
}

func (s *StoreSuite) TestUpdateCredential() {
	u := s.newUser("ada@example.com")
	s.Require().NoError(s.store.Users().UpdateCredential(s.ctx, u.ID, "other"))
	got, err := s.store.Users().FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("other", got.PasswordHash)
	s.ErrorIs(s.store.Users().UpdateCredential(s.ctx, u.ID+1000, "x"), core.ErrNotFound)
}

func (s *StoreSuite) createExpense(userID int64, title string, cents int64, c core.Category, date time.Time) core.Expense {
	e, err := s.store.Expenses().Create(s.ctx, core.Expense{
		UserID: userID, Title: title, Amount: core.Cents(cents), Category: c, Date: date,
	})
	s.Require().NoError(err)
	return e
}

func (s *StoreSuite) TestExpenseCRUDIsOwnerScoped() {
	ada := s.newUser("ada@example.com")
	bob := s.newUser("bob@example.com")
	e := s.createExpense(ada.ID, "Lunch", 1250, core.CategoryFood, day(2024, 3, 10))

	got, err := s.store.Expenses().Get(s.ctx, ada.ID, e.ID)
	s.Require().NoError(err)
	s.Equal("Lunch", got.Title)
	s.Equal(int64(1250), got.Amount.Cents)
	s.True(got.Date.Equal(day(2024, 3, 10)))

	_, err = s.store.Expenses().Get(s.ctx, bob.ID, e.ID)
	s.ErrorIs(err, core.ErrNotFound)

	stolen := got
	stolen.UserID = bob.ID
	_, err = s.store.Expenses().Update(s.ctx, stolen)
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.store.Expenses().Delete(s.ctx, bob.ID, e.ID), core.ErrNotFound)

	got.Title = "Dinner"
	got.Amount = core.Cents(3000)
	updated, err := s.store.Expenses().Update(s.ctx, got)
	s.Require().NoError(err)
	s.Equal("Dinner", updated.Title)
	s.Equal(int64(3000), updated.Amount.Cents)

	s.Require().NoError(s.store.Expenses().Delete(s.ctx, ada.ID, e.ID))
	_, err = s.store.Expenses().Get(s.ctx, ada.ID, e.ID)
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *StoreSuite) TestExpenseListFiltersAndOrder() {
	ada := s.newUser("ada@example.com")
	bob := s.newUser("bob@example.com")
	s.createExpense(ada.ID, "Groceries", 4000, core.CategoryFood, day(2024, 3, 1))
	s.createExpense(ada.ID, "Train", 2500, core.CategoryTravel, day(2024, 3, 5))
	s.createExpense(ada.ID, "Pizza", 1800, core.CategoryFood, day(2024, 3, 9))
	s.createExpense(bob.ID, "Bob's", 100, core.CategoryFood, day(2024, 3, 9))

	all, err := s.store.Expenses().List(s.ctx, ada.ID, core.ExpenseFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("Pizza", all[0].Title, "newest first")
	s.Equal("Groceries", all[2].Title)

	food, err := s.store.Expenses().List(s.ctx, ada.ID, core.ExpenseFilter{Category: core.CategoryFood})
	s.Require().NoError(err)
	s.Len(food, 2)

	ranged, err := s.store.Expenses().List(s.ctx, ada.ID, core.ExpenseFilter{From: day(2024, 3, 5), To: day(2024, 3, 9)})
	s.Require().NoError(err)
	s.Len(ranged, 2, "from and to are inclusive")
}

func (s *StoreSuite) TestExpenseListRangeIsHalfOpen() {
	ada := s.newUser("ada@example.com")
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	s.createExpense(ada.ID, "first instant", 100, core.CategoryFood, start)
	s.createExpense(ada.ID, "last millisecond", 200, core.CategoryFood, end.Add(-time.Millisecond))
	s.createExpense(ada.ID, "next month", 400, core.CategoryFood, end)
	s.createExpense(ada.ID, "previous month", 800, core.CategoryFood, start.Add(-time.Millisecond))

	got, err := s.store.Expenses().ListRange(s.ctx, ada.ID, start, end)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("first instant", got[0].Title)
	s.Equal("last millisecond", got[1].Title)
}

func (s *StoreSuite) TestBudgetUpsertKeepsIdentity() {
	ada := s.newUser("ada@example.com")

	_, err := s.store.Budgets().Get(s.ctx, ada.ID, "2024-03")
	s.ErrorIs(err, core.ErrNotFound)

	first, err := s.store.Budgets().Upsert(s.ctx, ada.ID, "2024-03", core.Cents(50000))
	s.Require().NoError(err)
	s.NotZero(first.ID)

	second, err := s.store.Budgets().Upsert(s.ctx, ada.ID, "2024-03", core.Cents(60000))
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(int64(60000), second.Amount.Cents)

	again, err := s.store.Budgets().Upsert(s.ctx, ada.ID, "2024-03", core.Cents(60000))
	s.Require().NoError(err)
	s.Equal(second.ID, again.ID)
	s.Equal(second.Amount, again.Amount)

	other, err := s.store.Budgets().Upsert(s.ctx, ada.ID, "2024-04", core.Cents(0))
	s.Require().NoError(err)
	s.NotEqual(first.ID, other.ID)

	got, err := s.store.Budgets().Get(s.ctx, ada.ID, "2024-03")
	s.Require().NoError(err)
	assert.Equal(s.T(), int64(60000), got.Amount.Cents)
	require.Equal(s.T(), core.MonthKey("2024-03"), got.Month)
}
