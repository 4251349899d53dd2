package migrations

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed *.sql
var files embed.FS

// Source exposes the embedded ledger migrations to golang-migrate.
func Source() (source.Driver, error) {
	return iofs.New(files, ".")
}

// Up migrates the database at databaseURL to the latest version and returns the versions
// before and after. The connection is opened and closed here.
func Up(databaseURL string) (uint, uint, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return 0, 0, err
	}

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		_ = db.Close()
		return 0, 0, err
	}

	src, err := Source()
	if err != nil {
		_ = db.Close()
		return 0, 0, err
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		_ = db.Close()
		return 0, 0, err
	}
	defer m.Close()

	return Run(m)
}

// Run applies pending migrations on m and reports the versions before and after.
func Run(m *migrate.Migrate) (uint, uint, error) {
	preMigrationVersion, _, err := m.Version()
	if err != nil && errors.Is(err, migrate.ErrNilVersion) {
		preMigrationVersion = 0
	} else if err != nil {
		return 0, 0, err
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return preMigrationVersion, 0, err
	}

	postMigrationVersion, _, err := m.Version()
	if err != nil {
		return preMigrationVersion, 0, err
	}
	return preMigrationVersion, postMigrationVersion, nil
}
