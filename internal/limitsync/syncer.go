package limitsync

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/internal/localdb"
	"github.com/carson-networks/spendiq-server/internal/operator/actions"
	"github.com/carson-networks/spendiq-server/internal/scheduler"
	"github.com/carson-networks/spendiq-server/internal/storage/limits"
)

type LocalLimits interface {
	Get(ctx context.Context, userID string) (*localdb.Limits, error)
}

type Processor interface {
	Process(ctx context.Context, action actions.IAction) error
}

type Scheduler interface {
	EnqueueUniqueOnce(req scheduler.OnceRequest) error
}

// Syncer pushes locally saved limits to the ledger as one-time work retried until it lands.
type Syncer struct {
	local     LocalLimits
	processor Processor
	scheduler Scheduler
	logger    *logrus.Logger
}

func NewSyncer(local LocalLimits, processor Processor, sched Scheduler, logger *logrus.Logger) *Syncer {
	return &Syncer{
		local:     local,
		processor: processor,
		scheduler: sched,
		logger:    logger,
	}
}

func WorkName(userID string) string {
	return "syncLimitsWork:" + userID
}

// Schedule enqueues the sync for userID, replacing a pending one.
func (s *Syncer) Schedule(userID string) error {
	return s.scheduler.EnqueueUniqueOnce(scheduler.OnceRequest{
		Name:        WorkName(userID),
		Tags:        []string{"limits"},
		Constraints: scheduler.Constraints{RequiresNetwork: true},
		Policy:      scheduler.Replace,
		Job: func(ctx context.Context) error {
			return s.Sync(ctx, userID)
		},
	})
}

// Sync copies the local limits of userID to the ledger. Nothing stored locally is a success.
func (s *Syncer) Sync(ctx context.Context, userID string) error {
	log := s.logger.WithField("userId", userID)

	local, err := s.local.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("read local limits: %w", err)
	}
	if local == nil {
		log.Debug("LimitsSyncer.Sync.nothing to sync")
		return nil
	}

	expenses, err := local.EncodedExpenses()
	if err != nil {
		return err
	}

	err = s.processor.Process(ctx, &actions.UpsertLimits{
		Limits: limits.Limits{
			UserID:      local.UserID,
			Frequency:   local.Frequency,
			ByExpense:   local.ByExpense,
			ByQuantity:  local.ByQuantity,
			Expenses:    expenses,
			TotalAmount: local.TotalAmount,
			UpdatedAt:   local.UpdatedAt,
		},
	})
	if err != nil {
		return fmt.Errorf("upsert remote limits: %w", err)
	}

	log.Info("LimitsSyncer.Sync.complete")
	return nil
}
