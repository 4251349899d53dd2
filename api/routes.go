package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/internal/handlers/v1/account"
	"github.com/carson-networks/spendiq-server/internal/handlers/v1/limits"
	"github.com/carson-networks/spendiq-server/internal/handlers/v1/location"
	"github.com/carson-networks/spendiq-server/internal/handlers/v1/notification"
	"github.com/carson-networks/spendiq-server/internal/handlers/v1/proximity"
	"github.com/carson-networks/spendiq-server/internal/handlers/v1/status"
	"github.com/carson-networks/spendiq-server/internal/handlers/v1/transaction"
	"github.com/carson-networks/spendiq-server/internal/ingest"
	"github.com/carson-networks/spendiq-server/internal/limitsync"
	"github.com/carson-networks/spendiq-server/internal/localdb"
	"github.com/carson-networks/spendiq-server/internal/logging"
	tracking "github.com/carson-networks/spendiq-server/internal/location"
	"github.com/carson-networks/spendiq-server/internal/notify"
	monitoring "github.com/carson-networks/spendiq-server/internal/proximity"
	"github.com/carson-networks/spendiq-server/internal/storage"
)

const shutdownTimeout = 15 * time.Second

type Rest struct {
	Logger *logrus.Logger
	Port   string

	Reader     *storage.Reader
	Ingestor   *ingest.Ingestor
	Locations  *tracking.Tracker
	Proximity  *monitoring.Service
	Outbox     *notify.Outbox
	Limits     *localdb.LimitsStore
	LimitsSync *limitsync.Syncer

	Checks []status.Check
}

// Router builds the HTTP handler serving every endpoint.
func (r *Rest) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	statusHandler := status.NewHandler(r.Checks...)
	router.Get("/status", logging.LoggingWrapper("Status", r.Logger, statusHandler.Handler))

	router.Group(func(v1 chi.Router) {
		v1.Use(logging.RequestLogger(r.Logger))

		api := humachi.New(v1, huma.DefaultConfig("SpendiQ API", "1.0.0"))
		notification.NewPostNotificationHandler(r.Ingestor).Register(api)
		location.NewPostLocationHandler(r.Locations).Register(api)
		proximity.NewHandler(r.Proximity, r.Outbox).Register(api)
		limits.NewHandler(r.Limits, r.LimitsSync).Register(api)
		account.NewListAccountsHandler(r.Reader.Accounts, r.Reader.Transactions).Register(api)
		transaction.NewListTransactionsHandler(r.Reader.Transactions).Register(api)
	})

	return router
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (r *Rest) Serve(ctx context.Context) error {
	server := http.Server{
		Addr:              ":" + r.Port,
		Handler:           r.Router(),
		ReadTimeout:       time.Duration(30) * time.Second,
		WriteTimeout:      time.Duration(30) * time.Second,
		IdleTimeout:       time.Duration(10) * time.Second,
		ReadHeaderTimeout: time.Duration(10) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.Logger.WithField("port", r.Port).Info("HttpServer.Serve.listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.WithError(err).Error("HttpServer.Serve.listen error")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	r.Logger.Info("HttpServer.Serve.shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
