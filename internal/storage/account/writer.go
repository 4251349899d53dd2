package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"
)

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

func (w *Writer) FindOrCreateForUpdate(ctx context.Context, ownerID, name string) (*Account, bool, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, false, err
	}

	// The unique (owner_id, name) index makes concurrent creators converge on one row.
	insert := psql.Insert(
		im.Into(tableName, "id", "owner_id", "name", "balance"),
		im.Values(psql.Arg(id), psql.Arg(ownerID), psql.Arg(name), psql.Arg(int64(0))),
		im.OnConflict("owner_id", "name").DoNothing(),
	)
	result, err := bob.Exec(ctx, w.tx, insert)
	if err != nil {
		return nil, false, fmt.Errorf("insert account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	row, err := findByOwnerAndName(ctx, w.tx, ownerID, name, true)
	if err != nil {
		return nil, false, fmt.Errorf("lock account: %w", err)
	}
	if row == nil {
		return nil, false, ErrAccountNotFound
	}
	return row, affected == 1, nil
}

func (w *Writer) ApplyDelta(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	q := psql.Update(
		um.Table(tableName),
		um.SetCol("balance").To(psql.Raw("balance + ?", delta)),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
		um.Returning("balance"),
	)
	balance, err := bob.One(ctx, w.tx, q, scan.SingleColumnMapper[int64])
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}
