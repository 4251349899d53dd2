// Package localdb is the process-local durable store. It holds the offer catalog cache and
// limits waiting to be synced, and is usable without any network.
package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/sqlite"
	"github.com/stephenafamo/bob/dialect/sqlite/sm"
	"github.com/stephenafamo/scan"
	_ "modernc.org/sqlite"

	"github.com/carson-networks/spendiq-server/internal/localdb/migrations"
	ledgermigrations "github.com/carson-networks/spendiq-server/internal/storage/migrations"
)

type DB struct {
	sqlDB  *sql.DB
	exec   bob.DB
	Offers *OfferStore
	Limits *LimitsStore
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// Open opens the database file at path and migrates it to the latest schema version.
func Open(ctx context.Context, path string, logger *logrus.Logger) (*DB, error) {
	pre, post, err := migrateUp(path)
	if err != nil {
		return nil, fmt.Errorf("migrate local db: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"path":                 path,
		"preMigrationVersion":  pre,
		"postMigrationVersion": post,
	}).Info("LocalDB.Open.migrated")

	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection keeps writers from tripping over each other.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	exec := bob.NewDB(sqlDB)
	return &DB{
		sqlDB:  sqlDB,
		exec:   exec,
		Offers: &OfferStore{db: exec},
		Limits: &LimitsStore{db: exec},
	}, nil
}

// migrateUp runs on its own handle since closing the migrator closes the database.
func migrateUp(path string) (uint, uint, error) {
	m, err := newMigrator(path)
	if err != nil {
		return 0, 0, err
	}
	defer m.Close()

	return ledgermigrations.Run(m)
}

// newMigrator owns a fresh handle on path; closing the migrator closes it.
func newMigrator(path string) (*migrate.Migrate, error) {
	migrationDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}

	driver, err := sqlitemigrate.WithInstance(migrationDB, &sqlitemigrate.Config{})
	if err != nil {
		_ = migrationDB.Close()
		return nil, err
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = migrationDB.Close()
		return nil, err
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		_ = migrationDB.Close()
		return nil, err
	}
	return m, nil
}

// Version reports the applied schema version.
func (d *DB) Version(ctx context.Context) (int64, error) {
	q := sqlite.Select(
		sm.Columns("version"),
		sm.From("schema_migrations"),
		sm.Limit(1),
	)
	version, err := bob.One(ctx, d.exec, q, scan.SingleColumnMapper[int64])
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

func (d *DB) Ping(ctx context.Context) error {
	return d.sqlDB.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.sqlDB.Close()
}
