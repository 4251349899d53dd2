package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"github.com/stephenafamo/bob"
)

const (
	connectAttempts = 30
	connectDelay    = 2 * time.Second
)

type Storage struct {
	DB     *sql.DB
	exec   bob.DB
	Reader *Reader
}

// NewStorage opens the ledger database, waiting for it to accept connections.
func NewStorage(ctx context.Context, databaseURL string, logger *logrus.Logger) (*Storage, error) {
	config, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	var db *sql.DB
	for attempt := 1; ; attempt++ {
		db = stdlib.OpenDB(*config)
		err = db.PingContext(ctx)
		if err == nil {
			break
		}
		_ = db.Close()
		if attempt == connectAttempts {
			return nil, fmt.Errorf("connect after %d attempts: %w", connectAttempts, err)
		}
		logger.WithError(err).WithField("attempt", attempt).Warn("Storage.NewStorage.database not ready")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectDelay):
		}
	}

	return FromDB(db), nil
}

// FromDB wraps an already opened ledger database.
func FromDB(db *sql.DB) *Storage {
	exec := bob.NewDB(db)
	return &Storage{
		DB:     db,
		exec:   exec,
		Reader: NewReader(exec),
	}
}

// Write begins a transaction; the caller must Commit or Rollback the returned Writer.
func (s *Storage) Write(ctx context.Context) (*Writer, error) {
	tx, err := s.exec.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return NewWriter(tx), nil
}

// Ping reports whether the ledger database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.DB.Close()
}
