package transaction

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
)

const tableName = "transactions"

var columns = []any{
	"id", "account_id", "transaction_name", "amount", "transaction_type", "date_time",
	"latitude", "longitude", "amount_anomaly", "location_anomaly", "automatic", "created_at",
}

// Type is the persisted transactionType; the amount sign is implied by it.
type Type string

const (
	TypeIncome  Type = "Income"
	TypeExpense Type = "Expense"
)

// SignedAmount returns the balance delta that a transaction of this type applies.
func (t Type) SignedAmount(amount int64) int64 {
	if t == TypeExpense {
		return -amount
	}
	return amount
}

func (t Type) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

type Location struct {
	Latitude  float64
	Longitude float64
}

// Transaction represents a transaction record.
type Transaction struct {
	ID              uuid.UUID `db:"id"`
	AccountID       uuid.UUID `db:"account_id"`
	Name            string    `db:"transaction_name"`
	Amount          int64     `db:"amount"`
	Type            Type      `db:"transaction_type"`
	OccurredAt      time.Time `db:"date_time"`
	Latitude        *float64  `db:"latitude"`
	Longitude       *float64  `db:"longitude"`
	AmountAnomaly   bool      `db:"amount_anomaly"`
	LocationAnomaly bool      `db:"location_anomaly"`
	Automatic       bool      `db:"automatic"`
	CreatedAt       time.Time `db:"created_at"`
}

// Location returns the recorded coordinates, if any.
func (t *Transaction) Location() *Location {
	if t.Latitude == nil || t.Longitude == nil {
		return nil
	}
	return &Location{Latitude: *t.Latitude, Longitude: *t.Longitude}
}

// TransactionCreate is the input for creating a new transaction.
type TransactionCreate struct {
	AccountID  uuid.UUID
	Name       string
	Amount     int64
	Type       Type
	OccurredAt time.Time
	Location   *Location
	Automatic  bool
}

// SimilarFilter selects transactions that would be an equivalent of a new event.
// From and To are inclusive.
type SimilarFilter struct {
	AccountID uuid.UUID
	Name      string
	Amount    int64
	Type      Type
	From      time.Time
	To        time.Time
}

// ListFilter pages through an account's transactions, newest first.
type ListFilter struct {
	AccountID uuid.UUID
	Limit     int
	Offset    int
}

// ListCursor points at the next page.
type ListCursor struct {
	Position int
	Limit    int
}

type ListResult struct {
	Transactions []*Transaction
	NextCursor   *ListCursor
}

// IReader defines the read side of the transactions table.
type IReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ExistsSimilar(ctx context.Context, filter *SimilarFilter) (bool, error)
	SumSignedAmounts(ctx context.Context, accountID uuid.UUID) (int64, error)
	List(ctx context.Context, filter *ListFilter) (*ListResult, error)
}

// IWriter defines the transaction operations available inside a write transaction.
type IWriter interface {
	Insert(ctx context.Context, create *TransactionCreate) (uuid.UUID, error)
	// ExistsSimilar sees the transaction's own writes and everything committed before the
	// account row lock was taken.
	ExistsSimilar(ctx context.Context, filter *SimilarFilter) (bool, error)
}
