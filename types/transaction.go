package types

import (
	"encoding/json"
	"time"
)

// Kind discriminates income records from expense records.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// LabelField is the wire name of the label: "source" for income, "category" for expense.
func (k Kind) LabelField() string {
	if k == KindIncome {
		return "source"
	}
	return "category"
}

// Transaction is a single income or expense record owned by one user.
type Transaction struct {
	// ID is the opaque identifier of the record.
	ID string `db:"id"`

	// UserID is the owning-user reference.
	UserID string `db:"user_id"`

	// Kind tells whether this is an income or an expense.
	Kind Kind `db:"-"`

	// Label is the income source or the expense category.
	Label string `db:"label"`

	// Icon is an optional emoji or icon reference chosen in the UI.
	Icon string `db:"icon"`

	// Amount is the non-negative value in the user's currency.
	Amount float64 `db:"amount"`

	// Date is when the money moved.
	Date time.Time `db:"date"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// MarshalJSON writes the label under "source" or "category" depending on the
// kind and always includes the "type" discriminant.
func (t Transaction) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":                t.ID,
		"userId":            t.UserID,
		"type":              t.Kind,
		t.Kind.LabelField(): t.Label,
		"icon":              t.Icon,
		"amount":            t.Amount,
		"date":              t.Date,
		"createdAt":         t.CreatedAt,
		"updatedAt":         t.UpdatedAt,
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		Type      Kind      `json:"type"`
		Source    string    `json:"source"`
		Category  string    `json:"category"`
		Icon      string    `json:"icon"`
		Amount    float64   `json:"amount"`
		Date      time.Time `json:"date"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Transaction{
		ID:        raw.ID,
		UserID:    raw.UserID,
		Kind:      raw.Type,
		Label:     raw.Source,
		Icon:      raw.Icon,
		Amount:    raw.Amount,
		Date:      raw.Date,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if raw.Type == KindExpense {
		t.Label = raw.Category
	}
	return nil
}
