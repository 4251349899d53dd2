package transaction

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"
)

var ErrTransactionNotFound = errors.New("transaction not found")

type Reader struct {
	exec bob.Executor
}

var _ IReader = (*Reader)(nil)

func NewReader(exec bob.Executor) *Reader {
	return &Reader{exec: exec}
}

func (r *Reader) FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	row, err := bob.One(ctx, r.exec, q, scan.StructMapper[Transaction]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Reader) ExistsSimilar(ctx context.Context, filter *SimilarFilter) (bool, error) {
	q := psql.Select(
		sm.Columns(psql.Raw("count(*)")),
		sm.From(tableName),
		sm.Where(psql.Quote("account_id").EQ(psql.Arg(filter.AccountID))),
		sm.Where(psql.Quote("transaction_name").EQ(psql.Arg(filter.Name))),
		sm.Where(psql.Quote("amount").EQ(psql.Arg(filter.Amount))),
		sm.Where(psql.Quote("transaction_type").EQ(psql.Arg(string(filter.Type)))),
		sm.Where(psql.Quote("date_time").GTE(psql.Arg(filter.From))),
		sm.Where(psql.Quote("date_time").LTE(psql.Arg(filter.To))),
	)
	count, err := bob.One(ctx, r.exec, q, scan.SingleColumnMapper[int64])
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumSignedAmounts recomputes the balance an account should hold from its ledger.
func (r *Reader) SumSignedAmounts(ctx context.Context, accountID uuid.UUID) (int64, error) {
	q := psql.Select(
		sm.Columns(psql.Raw("coalesce(sum(CASE WHEN transaction_type = 'Expense' THEN -amount ELSE amount END), 0)::bigint")),
		sm.From(tableName),
		sm.Where(psql.Quote("account_id").EQ(psql.Arg(accountID))),
	)
	return bob.One(ctx, r.exec, q, scan.SingleColumnMapper[int64])
}

// List returns one page of the account's transactions. One extra row is read to tell
// whether another page follows.
func (r *Reader) List(ctx context.Context, filter *ListFilter) (*ListResult, error) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("account_id").EQ(psql.Arg(filter.AccountID))),
		sm.OrderBy(psql.Quote("date_time")).Desc(),
		sm.OrderBy(psql.Quote("id")),
		sm.Limit(filter.Limit+1),
		sm.Offset(filter.Offset),
	)
	rows, err := bob.All(ctx, r.exec, q, scan.StructMapper[*Transaction]())
	if err != nil {
		return nil, err
	}
	return page(rows, filter), nil
}

func page(rows []*Transaction, filter *ListFilter) *ListResult {
	result := &ListResult{Transactions: rows}
	if len(rows) > filter.Limit {
		result.Transactions = rows[:filter.Limit]
		result.NextCursor = &ListCursor{
			Position: filter.Offset + filter.Limit,
			Limit:    filter.Limit,
		}
	}
	return result
}

