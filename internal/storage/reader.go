package storage

import (
	"github.com/stephenafamo/bob"

	"github.com/carson-networks/spendiq-server/internal/storage/account"
	"github.com/carson-networks/spendiq-server/internal/storage/limits"
	"github.com/carson-networks/spendiq-server/internal/storage/transaction"
)

type Reader struct {
	Accounts     account.IReader
	Transactions transaction.IReader
	Limits       limits.IReader
}

func NewReader(exec bob.Executor) *Reader {
	return &Reader{
		Accounts:     account.NewReader(exec),
		Transactions: transaction.NewReader(exec),
		Limits:       limits.NewReader(exec),
	}
}
