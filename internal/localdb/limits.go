package localdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/sqlite"
	"github.com/stephenafamo/bob/dialect/sqlite/im"
	"github.com/stephenafamo/bob/dialect/sqlite/sm"
	"github.com/stephenafamo/scan"
)

const limitsTable = "limits"

// Expense is one per-category spending cap.
type Expense struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// Limits are a user's spending limits as last saved on this host.
type Limits struct {
	UserID      string
	Frequency   string
	ByExpense   bool
	ByQuantity  bool
	Expenses    []Expense
	TotalAmount string
	UpdatedAt   time.Time
}

type limitsRow struct {
	UserID      string    `db:"user_id"`
	Frequency   string    `db:"frequency"`
	ByExpense   bool      `db:"by_expense"`
	ByQuantity  bool      `db:"by_quantity"`
	Expenses    string    `db:"expenses"`
	TotalAmount string    `db:"total_amount"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type LimitsStore struct {
	db bob.DB
}

// Save replaces the stored limits for the user.
func (s *LimitsStore) Save(ctx context.Context, limits Limits) error {
	expenses := limits.Expenses
	if expenses == nil {
		expenses = []Expense{}
	}
	encoded, err := json.Marshal(expenses)
	if err != nil {
		return fmt.Errorf("encode expenses: %w", err)
	}
	updatedAt := limits.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	q := sqlite.Insert(
		im.Into(limitsTable, "user_id", "frequency", "by_expense", "by_quantity", "expenses", "total_amount", "updated_at"),
		im.Values(
			sqlite.Arg(limits.UserID),
			sqlite.Arg(limits.Frequency),
			sqlite.Arg(limits.ByExpense),
			sqlite.Arg(limits.ByQuantity),
			sqlite.Arg(string(encoded)),
			sqlite.Arg(limits.TotalAmount),
			sqlite.Arg(updatedAt.UTC()),
		),
		im.OnConflict("user_id").DoUpdate(
			im.SetExcluded("frequency", "by_expense", "by_quantity", "expenses", "total_amount", "updated_at"),
		),
	)
	_, err = bob.Exec(ctx, s.db, q)
	return err
}

// Get returns nil without error when nothing is stored for the user.
func (s *LimitsStore) Get(ctx context.Context, userID string) (*Limits, error) {
	q := sqlite.Select(
		sm.Columns("user_id", "frequency", "by_expense", "by_quantity", "expenses", "total_amount", "updated_at"),
		sm.From(limitsTable),
		sm.Where(sqlite.Quote("user_id").EQ(sqlite.Arg(userID))),
	)
	row, err := bob.One(ctx, s.db, q, scan.StructMapper[limitsRow]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var expenses []Expense
	if err := json.Unmarshal([]byte(row.Expenses), &expenses); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	return &Limits{
		UserID:      row.UserID,
		Frequency:   row.Frequency,
		ByExpense:   row.ByExpense,
		ByQuantity:  row.ByQuantity,
		Expenses:    expenses,
		TotalAmount: row.TotalAmount,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// EncodedExpenses renders the expenses as the JSON document stored remotely.
func (l *Limits) EncodedExpenses() (string, error) {
	expenses := l.Expenses
	if expenses == nil {
		expenses = []Expense{}
	}
	encoded, err := json.Marshal(expenses)
	return string(encoded), err
}
