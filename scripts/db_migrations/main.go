package main

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	server_config "github.com/carson-networks/spendiq-server/internal/config"
	"github.com/carson-networks/spendiq-server/internal/logging"
	"github.com/carson-networks/spendiq-server/internal/storage/migrations"
)

func main() {
	logger := logging.SetupLogging()

	env, err := server_config.ProcessEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Fatal("ProcessEnvironmentVariables")
		return
	}

	db, err := sql.Open("postgres", env.PostgresURL())
	if err != nil {
		logger.WithError(err).Fatal("sql.Open")
		return
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.WithError(err).Fatal("postgres.WithInstance")
		return
	}

	src, err := migrations.Source()
	if err != nil {
		logger.WithError(err).Fatal("migrations.Source")
		return
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		logger.WithError(err).Fatal("migrate.NewWithInstance")
		return
	}
	defer m.Close()

	preMigrationVersion, postMigrationVersion, err := migrations.Run(m)
	if err != nil {
		logger.WithError(err).WithField("preMigrationVersion", preMigrationVersion).Fatal("migrations.Run")
		return
	}

	logger.WithFields(logrus.Fields{
		"preMigrationVersion":  preMigrationVersion,
		"postMigrationVersion": postMigrationVersion,
	}).Info("Migration status")
}
