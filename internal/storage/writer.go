package storage

import (
	"context"

	"github.com/stephenafamo/bob"

	"github.com/carson-networks/spendiq-server/internal/storage/account"
	"github.com/carson-networks/spendiq-server/internal/storage/limits"
	"github.com/carson-networks/spendiq-server/internal/storage/transaction"
)

// Committer finishes a write transaction.
type Committer interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Writer struct {
	tx          Committer
	Account     account.IWriter
	Transaction transaction.IWriter
	Limits      limits.IWriter
}

func NewWriter(tx bob.Tx) *Writer {
	return &Writer{
		tx:          tx,
		Account:     account.NewWriter(tx),
		Transaction: transaction.NewWriter(tx),
		Limits:      limits.NewWriter(tx),
	}
}

// NewWriterWith assembles a Writer from arbitrary table writers sharing one Committer.
func NewWriterWith(tx Committer, accounts account.IWriter, transactions transaction.IWriter, limitsWriter limits.IWriter) *Writer {
	return &Writer{
		tx:          tx,
		Account:     accounts,
		Transaction: transactions,
		Limits:      limitsWriter,
	}
}

func (w *Writer) Commit() error {
	return w.tx.Commit(context.Background())
}

func (w *Writer) Rollback() error {
	return w.tx.Rollback(context.Background())
}
