package amqp

import (
	"encoding/json"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/ports"
)

// ResetMailMessage carries a prepared password-reset e-mail to the worker.
type ResetMailMessage struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

func NewResetMailMessage(m ports.MailMessage, now time.Time) *ResetMailMessage {
	return &ResetMailMessage{To: m.To, Subject: m.Subject, Body: m.Body, Timestamp: now}
}

func (m *ResetMailMessage) Mail() ports.MailMessage {
	return ports.MailMessage{To: m.To, Subject: m.Subject, Body: m.Body}
}

func (m *ResetMailMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ResetMailMessageFromJSON(data []byte) (*ResetMailMessage, error) {
	var msg ResetMailMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ExpenseActivityMessage is a self-contained snapshot of one expense mutation.
type ExpenseActivityMessage struct {
	Kind        ports.ActivityKind `json:"kind"`
	ExpenseID   int64              `json:"expense_id"`
	UserID      int64              `json:"user_id"`
	Title       string             `json:"title"`
	AmountCents int64              `json:"amount_cents"`
	Category    string             `json:"category"`
	Date        time.Time          `json:"date"`
	Timestamp   time.Time          `json:"timestamp"`
}

func NewExpenseActivityMessage(a ports.Activity) *ExpenseActivityMessage {
	return &ExpenseActivityMessage{
		Kind:        a.Kind,
		ExpenseID:   a.Expense.ID,
		UserID:      a.Expense.UserID,
		Title:       a.Expense.Title,
		AmountCents: a.Expense.Amount.Cents,
		Category:    string(a.Expense.Category),
		Date:        a.Expense.Date,
		Timestamp:   a.At,
	}
}

// Amount returns the expense amount as Money.
func (m *ExpenseActivityMessage) Amount() core.Money {
	return core.Cents(m.AmountCents)
}

func (m *ExpenseActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseActivityMessageFromJSON(data []byte) (*ExpenseActivityMessage, error) {
	var msg ExpenseActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
