package account

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

const tableName = "accounts"

var columns = []any{"id", "owner_id", "name", "balance", "created_at"}

var ErrAccountNotFound = errors.New("account not found")

// Account is the owner of a running balance. (OwnerID, Name) is its natural key.
type Account struct {
	ID        uuid.UUID `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Name      string    `db:"name"`
	Balance   int64     `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
}

// IReader defines the read side of the accounts table.
//
//go:generate mockery --name IReader --output mock_IReader.go
type IReader interface {
	// FindByOwnerAndName returns nil without error when no account matches.
	FindByOwnerAndName(ctx context.Context, ownerID, name string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Account, error)
}

// IWriter defines the accounts operations available inside a write transaction.
type IWriter interface {
	IReader
	// FindOrCreateForUpdate returns the locked account for (ownerID, name), creating it with
	// a zero balance first when it does not exist.
	FindOrCreateForUpdate(ctx context.Context, ownerID, name string) (*Account, bool, error)
	// ApplyDelta adds delta to the stored balance and returns the resulting balance.
	ApplyDelta(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
}
