package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/api"
	"github.com/carson-networks/spendiq-server/internal/anomaly"
	"github.com/carson-networks/spendiq-server/internal/catalog"
	"github.com/carson-networks/spendiq-server/internal/config"
	"github.com/carson-networks/spendiq-server/internal/handlers/v1/status"
	"github.com/carson-networks/spendiq-server/internal/ingest"
	"github.com/carson-networks/spendiq-server/internal/limitsync"
	"github.com/carson-networks/spendiq-server/internal/localdb"
	"github.com/carson-networks/spendiq-server/internal/location"
	"github.com/carson-networks/spendiq-server/internal/logging"
	"github.com/carson-networks/spendiq-server/internal/notify"
	"github.com/carson-networks/spendiq-server/internal/operator"
	"github.com/carson-networks/spendiq-server/internal/proximity"
	"github.com/carson-networks/spendiq-server/internal/scheduler"
	"github.com/carson-networks/spendiq-server/internal/service"
	"github.com/carson-networks/spendiq-server/internal/storage"
	"github.com/carson-networks/spendiq-server/internal/storage/migrations"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := logging.SetupLogging()
	logger.Info("spendiq-server starting")

	envConfig, err := config.ProcessEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Fatal("config.ProcessEnvironmentVariables")
		return
	}
	logging.SetLevel(logger, envConfig.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbStorage, err := storage.NewStorage(ctx, envConfig.PostgresURL(), logger)
	if err != nil {
		logger.WithError(err).Fatal("storage.NewStorage")
		return
	}
	defer dbStorage.Close()

	preMigrationVersion, postMigrationVersion, err := migrations.Up(envConfig.PostgresURL())
	if err != nil {
		logger.WithError(err).Fatal("migrations.Up")
		return
	}
	logger.WithFields(logrus.Fields{
		"preMigrationVersion":  preMigrationVersion,
		"postMigrationVersion": postMigrationVersion,
	}).Info("Migration status")

	local, err := localdb.Open(ctx, envConfig.LocalDBPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("localdb.Open")
		return
	}
	defer local.Close()

	delegator := operator.NewOperatorDelegator(dbStorage, envConfig.OperatorWorkers, logger)
	delegator.Start()

	svc, err := service.NewService(dbStorage.Reader, service.DedupConfig{
		AccountName: envConfig.IngestAccountName,
		Window:      envConfig.DedupWindow,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("service.NewService")
		return
	}
	defer svc.Dedup.Close()

	trigger := anomaly.NewTrigger(anomaly.NewClient(envConfig.AnomalyBaseURL, envConfig.AnomalyTimeout), envConfig.AnomalyTimeout, logger)
	tracker := location.NewTracker(envConfig.LocationWaitTimeout, logger)
	outbox := notify.NewOutbox(0, logger)

	manager := scheduler.NewWorkManager(scheduler.DialProbe{Addr: envConfig.ConnectivityProbeAddr}, logger)

	matcher := proximity.NewMatcher(local.Offers, outbox, envConfig.ProximityRadiusMeters, logger)
	proximityService := proximity.NewService(manager, tracker, matcher, proximity.Schedule{
		Interval: envConfig.ProximityInterval,
		Flex:     envConfig.ProximityFlex,
	}, logger)

	refresher := catalog.NewRefresher(
		catalog.NewClient(envConfig.CatalogBaseURL, envConfig.CatalogTimeout, logger),
		local.Offers,
		envConfig.CatalogRefreshInterval,
		logger,
	)
	if err := refresher.Schedule(manager); err != nil {
		logger.WithError(err).Fatal("catalog.Refresher.Schedule")
		return
	}

	syncer := limitsync.NewSyncer(local.Limits, delegator, manager, logger)
	ingestor := ingest.NewIngestor(svc.Dedup, delegator, tracker, trigger, logger)

	httpRest := api.Rest{
		Logger:     logger,
		Port:       envConfig.Port,
		Reader:     dbStorage.Reader,
		Ingestor:   ingestor,
		Locations:  tracker,
		Proximity:  proximityService,
		Outbox:     outbox,
		Limits:     local.Limits,
		LimitsSync: syncer,
		Checks: []status.Check{
			{Name: "ledger", Ping: dbStorage.Ping},
			{Name: "localdb", Ping: local.Ping},
		},
	}
	if err := httpRest.Serve(ctx); err != nil {
		logger.WithError(err).Error("HttpServer.Serve")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := ingestor.Close(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Ingestor.Close")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("WorkManager.Shutdown")
	}
	delegator.Stop()
	trigger.Wait()

	logger.Info("spendiq-server stopped")
}
