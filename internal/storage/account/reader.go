package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
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

func (r *Reader) FindByOwnerAndName(ctx context.Context, ownerID, name string) (*Account, error) {
	return findByOwnerAndName(ctx, r.exec, ownerID, name, false)
}

func (r *Reader) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	row, err := bob.One(ctx, r.exec, q, scan.StructMapper[Account]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByOwner returns the owner's accounts ordered by creation.
func (r *Reader) ListByOwner(ctx context.Context, ownerID string) ([]*Account, error) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("owner_id").EQ(psql.Arg(ownerID))),
		sm.OrderBy(psql.Quote("created_at")),
		sm.OrderBy(psql.Quote("id")),
	)
	rows, err := bob.All(ctx, r.exec, q, scan.StructMapper[*Account]())
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func findByOwnerAndName(ctx context.Context, exec bob.Executor, ownerID, name string, forUpdate bool) (*Account, error) {
	queryMods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("owner_id").EQ(psql.Arg(ownerID))),
		sm.Where(psql.Quote("name").EQ(psql.Arg(name))),
	}
	if forUpdate {
		queryMods = append(queryMods, sm.ForUpdate())
	}

	row, err := bob.One(ctx, exec, psql.Select(queryMods...), scan.StructMapper[Account]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
