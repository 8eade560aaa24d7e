package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	CategoryFood     Category = "food"
	CategoryTravel   Category = "travel"
	CategoryShopping Category = "shopping"
	CategoryBills    Category = "bills"
	CategoryOther    Category = "other"
)

const (
	maxTitleLength = 200
	maxNotesLength = 1000
	minPasswordLen = 8
)

type (
	Category string

	User struct {
		ID           int64
		Email        string
		Name         string
		PasswordHash string
		Reset        ResetState
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	Expense struct {
		ID        int64
		UserID    int64
		Title     string
		Amount    Money
		Category  Category
		Date      time.Time
		Notes     string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// ExpenseFilter narrows a user's expense listing. Zero values mean "no filter".
	ExpenseFilter struct {
		Category Category
		From     time.Time
		To       time.Time
	}

	// ExpensePatch carries a partial update; nil fields are left untouched.
	ExpensePatch struct {
		Title    *string
		Amount   *Money
		Category *Category
		Date     *time.Time
		Notes    *string
	}
)

// Categories returns the fixed set of expense categories.
func Categories() []Category {
	return []Category{CategoryFood, CategoryTravel, CategoryShopping, CategoryBills, CategoryOther}
}

// ParseCategory maps user input to a Category. Empty input means CategoryOther.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryOther, nil
	}
	c := Category(s)
	if !c.Valid() {
		return "", NewValidationError("category", "must be one of food, travel, shopping, bills, other")
	}
	return c, nil
}

func (c Category) Valid() bool {
	switch c {
	case CategoryFood, CategoryTravel, CategoryShopping, CategoryBills, CategoryOther:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

func (e Expense) Validate() error {
	if e.UserID <= 0 {
		return NewValidationError("user_id", "owner is required")
	}
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return NewValidationError("title", "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return NewValidationError("title", "title too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return NewValidationError("category", "must be one of food, travel, shopping, bills, other")
	}
	if e.Date.IsZero() {
		return NewValidationError("date", "date cannot be zero")
	}
	if utf8.RuneCountInString(e.Notes) > maxNotesLength {
		return NewValidationError("notes", "notes too long (max 1000 characters)")
	}
	return nil
}

// Apply returns a copy of e with the patch applied. Owner and ID never change.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	return e
}

// Matches reports whether the expense passes the filter. From and To are inclusive.
func (f ExpenseFilter) Matches(e Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}
	return true
}

// NormalizeEmail trims and lower-cases an address for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail performs a minimal shape check on an already normalized address.
func ValidateEmail(email string) error {
	if email == "" {
		return NewValidationError("email", "email is required")
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return NewValidationError("email", "email is not valid")
	}
	return nil
}

// ValidatePassword enforces the password policy for new credentials.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(strings.TrimSpace(password)) < minPasswordLen {
		return NewValidationError("password", "password must be at least 8 characters")
	}
	return nil
}
