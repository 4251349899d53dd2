package limits

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"
)

type Reader struct {
	exec bob.Executor
}

var _ IReader = (*Reader)(nil)

func NewReader(exec bob.Executor) *Reader {
	return &Reader{exec: exec}
}

func (r *Reader) FindByUserID(ctx context.Context, userID string) (*Limits, error) {
	q := psql.Select(
		sm.Columns("user_id", "frequency", "by_expense", "by_quantity", psql.Raw("expenses::text AS expenses"), "total_amount", "updated_at"),
		sm.From(tableName),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
	)
	row, err := bob.One(ctx, r.exec, q, scan.StructMapper[Limits]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
