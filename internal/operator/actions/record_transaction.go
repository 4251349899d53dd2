package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/spendiq-server/internal/storage"
	"github.com/carson-networks/spendiq-server/internal/storage/transaction"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// RecordTransaction persists one ingested event and reconciles its account balance. The
// account is created with a zero balance on first use.
//
// With a DedupWindow the event is checked again while the account row is locked, so two
// concurrent deliveries of one event record it once. A failed check records the event.
type RecordTransaction struct {
	OwnerID     string
	AccountName string
	Name        string
	Amount      int64
	Type        transaction.Type
	OccurredAt  time.Time
	Location    *transaction.Location
	DedupWindow time.Duration

	Result RecordedTransaction
}

// RecordedTransaction is filled in by a successful Perform. A Duplicate result carries only
// the account and wrote nothing.
type RecordedTransaction struct {
	TransactionID  uuid.UUID
	AccountID      uuid.UUID
	AccountCreated bool
	Balance        int64
	Duplicate      bool
	DedupErr       error
}

func (r *RecordTransaction) Perform(ctx context.Context, writer *storage.Writer) error {
	r.Result = RecordedTransaction{}
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}

	acct, created, err := writer.Account.FindOrCreateForUpdate(ctx, r.OwnerID, r.AccountName)
	if err != nil {
		return fmt.Errorf("resolve account: %w", err)
	}

	if r.DedupWindow > 0 && !created {
		duplicate, err := writer.Transaction.ExistsSimilar(ctx, &transaction.SimilarFilter{
			AccountID: acct.ID,
			Name:      r.Name,
			Amount:    r.Amount,
			Type:      r.Type,
			From:      r.OccurredAt.Add(-r.DedupWindow),
			To:        r.OccurredAt.Add(r.DedupWindow),
		})
		if err != nil {
			r.Result.DedupErr = err
		} else if duplicate {
			r.Result = RecordedTransaction{AccountID: acct.ID, Balance: acct.Balance, Duplicate: true}
			return nil
		}
	}

	txID, err := writer.Transaction.Insert(ctx, &transaction.TransactionCreate{
		AccountID:  acct.ID,
		Name:       r.Name,
		Amount:     r.Amount,
		Type:       r.Type,
		OccurredAt: r.OccurredAt,
		Location:   r.Location,
		Automatic:  true,
	})
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	balance, err := writer.Account.ApplyDelta(ctx, acct.ID, r.Type.SignedAmount(r.Amount))
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	r.Result = RecordedTransaction{
		TransactionID:  txID,
		AccountID:      acct.ID,
		AccountCreated: created,
		Balance:        balance,
		DedupErr:       r.Result.DedupErr,
	}
	return nil
}
