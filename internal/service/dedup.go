package service

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/internal/storage"
	"github.com/carson-networks/spendiq-server/internal/storage/transaction"
)

// DedupConfig selects the account ingested events land in and the tolerance used to match
// a redelivered event against an already recorded one.
type DedupConfig struct {
	AccountName string
	Window      time.Duration
}

// Candidate is a parsed event checked against the ledger before it is recorded.
type Candidate struct {
	OwnerID    string
	Name       string
	Amount     int64
	Type       transaction.Type
	ObservedAt time.Time
}

// DedupGate decides whether an event was already recorded. It fails open: any lookup
// error is reported as "not a duplicate".
type DedupGate struct {
	reader   *storage.Reader
	accounts *ristretto.Cache
	config   DedupConfig
	logger   *logrus.Logger
}

func NewDedupGate(reader *storage.Reader, config DedupConfig, logger *logrus.Logger) (*DedupGate, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 14,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &DedupGate{
		reader:   reader,
		accounts: cache,
		config:   config,
		logger:   logger,
	}, nil
}

func (g *DedupGate) AccountName() string {
	return g.config.AccountName
}

func (g *DedupGate) Window() time.Duration {
	return g.config.Window
}

// IsDuplicate reports whether the owner's account already holds a transaction with the same
// name, amount and type whose time is within the window of the candidate's observed time.
func (g *DedupGate) IsDuplicate(ctx context.Context, c Candidate) bool {
	log := g.logger.WithFields(logrus.Fields{
		"userId": c.OwnerID,
		"name":   c.Name,
	})

	accountID, found, err := g.accountID(ctx, c.OwnerID)
	if err != nil {
		log.WithError(err).Warn("DedupGate.IsDuplicate.account lookup failed")
		return false
	}
	if !found {
		return false
	}

	exists, err := g.reader.Transactions.ExistsSimilar(ctx, &transaction.SimilarFilter{
		AccountID: accountID,
		Name:      c.Name,
		Amount:    c.Amount,
		Type:      c.Type,
		From:      c.ObservedAt.Add(-g.config.Window),
		To:        c.ObservedAt.Add(g.config.Window),
	})
	if err != nil {
		log.WithError(err).Warn("DedupGate.IsDuplicate.transaction lookup failed")
		return false
	}
	return exists
}

// Remember seeds the account cache after a write created or resolved an account.
func (g *DedupGate) Remember(ownerID string, accountID uuid.UUID) {
	g.accounts.Set(g.cacheKey(ownerID), accountID, 1)
}

func (g *DedupGate) accountID(ctx context.Context, ownerID string) (uuid.UUID, bool, error) {
	key := g.cacheKey(ownerID)
	if cached, ok := g.accounts.Get(key); ok {
		return cached.(uuid.UUID), true, nil
	}

	acct, err := g.reader.Accounts.FindByOwnerAndName(ctx, ownerID, g.config.AccountName)
	if err != nil {
		return uuid.Nil, false, err
	}
	if acct == nil {
		return uuid.Nil, false, nil
	}
	g.accounts.Set(key, acct.ID, 1)
	return acct.ID, true, nil
}

func (g *DedupGate) cacheKey(ownerID string) string {
	return ownerID + "\x00" + g.config.AccountName
}

func (g *DedupGate) Close() {
	g.accounts.Close()
}
