package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

type Writer struct {
	tx bob.Tx
	Reader
}

var _ IWriter = (*Writer)(nil)

func NewWriter(tx bob.Tx) *Writer {
	return &Writer{
		tx: tx,
		Reader: Reader{
			exec: tx,
		},
	}
}

// ExistsSimilar runs the lookup under a savepoint so a failed lookup leaves the surrounding
// transaction usable.
func (w *Writer) ExistsSimilar(ctx context.Context, filter *SimilarFilter) (bool, error) {
	if _, err := w.tx.ExecContext(ctx, "SAVEPOINT similar_check"); err != nil {
		return false, err
	}
	found, err := w.Reader.ExistsSimilar(ctx, filter)
	if err != nil {
		if _, rollbackErr := w.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT similar_check"); rollbackErr != nil {
			return false, errors.Join(err, rollbackErr)
		}
		return false, err
	}
	if _, err := w.tx.ExecContext(ctx, "RELEASE SAVEPOINT similar_check"); err != nil {
		return false, err
	}
	return found, nil
}

// Insert creates a new transaction and returns its generated ID.
func (w *Writer) Insert(ctx context.Context, create *TransactionCreate) (uuid.UUID, error) {
	if create.Amount <= 0 || !create.Type.Valid() {
		return uuid.Nil, ErrInvalidTransaction
	}

	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}

	occurredAt := create.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	var latitude, longitude *float64
	if create.Location != nil {
		latitude = &create.Location.Latitude
		longitude = &create.Location.Longitude
	}

	q := psql.Insert(
		im.Into(tableName,
			"id", "account_id", "transaction_name", "amount", "transaction_type",
			"date_time", "latitude", "longitude", "automatic",
		),
		im.Values(
			psql.Arg(id),
			psql.Arg(create.AccountID),
			psql.Arg(create.Name),
			psql.Arg(create.Amount),
			psql.Arg(string(create.Type)),
			psql.Arg(occurredAt),
			psql.Arg(latitude),
			psql.Arg(longitude),
			psql.Arg(create.Automatic),
		),
	)
	if _, err := bob.Exec(ctx, w.tx, q); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
