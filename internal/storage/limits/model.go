package limits

import (
	"context"
	"time"
)

const tableName = "limits"

// Limits is the remote copy of a user's spending limits.
type Limits struct {
	UserID      string    `db:"user_id"`
	Frequency   string    `db:"frequency"`
	ByExpense   bool      `db:"by_expense"`
	ByQuantity  bool      `db:"by_quantity"`
	Expenses    string    `db:"expenses"`
	TotalAmount string    `db:"total_amount"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type IReader interface {
	// FindByUserID returns nil without error when the user has no stored limits.
	FindByUserID(ctx context.Context, userID string) (*Limits, error)
}

type IWriter interface {
	Upsert(ctx context.Context, limits *Limits) error
}
