package limits

import (
	"context"
	"time"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
)

type Writer struct {
	tx bob.Tx
}

var _ IWriter = (*Writer)(nil)

func NewWriter(tx bob.Tx) *Writer {
	return &Writer{tx: tx}
}

// Upsert replaces the stored limits document for the user.
func (w *Writer) Upsert(ctx context.Context, limits *Limits) error {
	updatedAt := limits.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	expenses := limits.Expenses
	if expenses == "" {
		expenses = "[]"
	}

	q := psql.Insert(
		im.Into(tableName, "user_id", "frequency", "by_expense", "by_quantity", "expenses", "total_amount", "updated_at"),
		im.Values(
			psql.Arg(limits.UserID),
			psql.Arg(limits.Frequency),
			psql.Arg(limits.ByExpense),
			psql.Arg(limits.ByQuantity),
			psql.Raw("?::jsonb", expenses),
			psql.Arg(limits.TotalAmount),
			psql.Arg(updatedAt),
		),
		im.OnConflict("user_id").DoUpdate(
			im.SetExcluded("frequency", "by_expense", "by_quantity", "expenses", "total_amount", "updated_at"),
		),
	)
	_, err := bob.Exec(ctx, w.tx, q)
	return err
}
