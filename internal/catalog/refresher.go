package catalog

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/internal/localdb"
	"github.com/carson-networks/spendiq-server/internal/scheduler"
)

const refreshWorkName = "offerCatalogRefresh"

type Fetcher interface {
	FetchOffers(ctx context.Context) ([]localdb.Offer, error)
}

type Cache interface {
	ReplaceAll(ctx context.Context, offers []localdb.Offer) error
}

type Scheduler interface {
	EnqueueUniquePeriodic(req scheduler.PeriodicRequest) error
}

// Refresher keeps the local offer cache in step with the remote catalog. A failed refresh
// leaves the previous cache in place.
type Refresher struct {
	fetcher  Fetcher
	cache    Cache
	interval time.Duration
	logger   *logrus.Logger
}

func NewRefresher(fetcher Fetcher, cache Cache, interval time.Duration, logger *logrus.Logger) *Refresher {
	return &Refresher{
		fetcher:  fetcher,
		cache:    cache,
		interval: interval,
		logger:   logger,
	}
}

// Schedule registers the periodic refresh. It only runs while the network is up.
func (r *Refresher) Schedule(sched Scheduler) error {
	return sched.EnqueueUniquePeriodic(scheduler.PeriodicRequest{
		Name:        refreshWorkName,
		Interval:    r.interval,
		Flex:        r.interval / 4,
		Constraints: scheduler.Constraints{RequiresNetwork: true},
		Policy:      scheduler.Keep,
		Job:         r.Refresh,
	})
}

func (r *Refresher) Refresh(ctx context.Context) error {
	offers, err := r.fetcher.FetchOffers(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("CatalogRefresher.Refresh.fetch failed, keeping cache")
		return err
	}
	if err := r.cache.ReplaceAll(ctx, offers); err != nil {
		r.logger.WithError(err).Error("CatalogRefresher.Refresh.store failed")
		return err
	}
	r.logger.WithField("offers", len(offers)).Info("CatalogRefresher.Refresh.complete")
	return nil
}
