package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/internal/location"
	"github.com/carson-networks/spendiq-server/internal/operator/actions"
	"github.com/carson-networks/spendiq-server/internal/service"
	"github.com/carson-networks/spendiq-server/internal/storage/transaction"
)

var ErrIngestorClosed = errors.New("ingestor closed")

// Notification is a notification posted on the user's device.
type Notification struct {
	UserID   string
	Title    string
	Text     string
	PostedAt time.Time
}

type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRecorded  Outcome = "recorded"
)

type Result struct {
	Outcome       Outcome
	Event         Event
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	Balance       int64
}

type Deduplicator interface {
	IsDuplicate(ctx context.Context, c service.Candidate) bool
	Remember(ownerID string, accountID uuid.UUID)
	AccountName() string
	Window() time.Duration
}

type Processor interface {
	Process(ctx context.Context, action actions.IAction) error
}

type Locator interface {
	Cached(userID string) *location.Fix
}

type AnomalyTrigger interface {
	Fire(userID, transactionID string)
}

// Ingestor turns device notifications into ledger transactions.
type Ingestor struct {
	dedup     Deduplicator
	processor Processor
	locations Locator
	anomaly   AnomalyTrigger
	logger    *logrus.Logger
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewIngestor(dedup Deduplicator, processor Processor, locations Locator, anomaly AnomalyTrigger, logger *logrus.Logger) *Ingestor {
	return &Ingestor{
		dedup:     dedup,
		processor: processor,
		locations: locations,
		anomaly:   anomaly,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest runs one notification through parse, dedup, record and anomaly trigger. Parse
// misses and duplicates are outcomes, not errors. The gate check is repeated under the
// account lock while recording, which catches redeliveries racing each other.
func (i *Ingestor) Ingest(ctx context.Context, n Notification) (Result, error) {
	log := i.logger.WithField("userId", n.UserID)

	event, ok := Parse(n.Title, n.Text)
	if !ok {
		if i.logger.IsLevelEnabled(logrus.DebugLevel) {
			log.WithField("notification", spew.Sdump(n)).Debug("Ingestor.Ingest.ignored")
		}
		return Result{Outcome: OutcomeIgnored}, nil
	}

	observedAt := n.PostedAt
	if observedAt.IsZero() {
		observedAt = i.now()
	}

	log = log.WithFields(logrus.Fields{
		"name":   event.Name,
		"amount": event.Amount,
		"type":   event.Type,
	})

	if i.dedup.IsDuplicate(ctx, service.Candidate{
		OwnerID:    n.UserID,
		Name:       event.Name,
		Amount:     event.Amount,
		Type:       event.Type,
		ObservedAt: observedAt,
	}) {
		log.Info("Ingestor.Ingest.duplicate")
		return Result{Outcome: OutcomeDuplicate, Event: event}, nil
	}

	record := &actions.RecordTransaction{
		OwnerID:     n.UserID,
		AccountName: i.dedup.AccountName(),
		Name:        event.Name,
		Amount:      event.Amount,
		Type:        event.Type,
		OccurredAt:  observedAt,
		DedupWindow: i.dedup.Window(),
	}
	if fix := i.locations.Cached(n.UserID); fix != nil {
		record.Location = &transaction.Location{Latitude: fix.Latitude, Longitude: fix.Longitude}
	}

	if err := i.processor.Process(ctx, record); err != nil {
		return Result{Event: event}, fmt.Errorf("record transaction: %w", err)
	}
	if record.Result.DedupErr != nil {
		log.WithError(record.Result.DedupErr).Warn("Ingestor.Ingest.locked dedup check failed")
	}

	i.dedup.Remember(n.UserID, record.Result.AccountID)
	if record.Result.Duplicate {
		log.Info("Ingestor.Ingest.duplicate")
		return Result{Outcome: OutcomeDuplicate, Event: event, AccountID: record.Result.AccountID, Balance: record.Result.Balance}, nil
	}
	i.anomaly.Fire(n.UserID, record.Result.TransactionID.String())

	log.WithFields(logrus.Fields{
		"transactionId": record.Result.TransactionID.String(),
		"balance":       record.Result.Balance,
	}).Info("Ingestor.Ingest.recorded")

	return Result{
		Outcome:       OutcomeRecorded,
		Event:         event,
		TransactionID: record.Result.TransactionID,
		AccountID:     record.Result.AccountID,
		Balance:       record.Result.Balance,
	}, nil
}

// Submit ingests n in the background, detached from the caller's lifetime.
func (i *Ingestor) Submit(n Notification) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return ErrIngestorClosed
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		if _, err := i.Ingest(context.Background(), n); err != nil {
			i.logger.WithError(err).WithField("userId", n.UserID).Error("Ingestor.Submit.failed")
		}
	}()
	return nil
}

// Close stops accepting submissions and waits for in-flight ones until ctx is done.
func (i *Ingestor) Close(ctx context.Context) error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
