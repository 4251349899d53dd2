package service

import (
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/internal/storage"
)

// Service holds the read-side business services over the ledger.
type Service struct {
	Dedup *DedupGate
}

// NewService creates a new Service over the given reader.
func NewService(reader *storage.Reader, env DedupConfig, logger *logrus.Logger) (*Service, error) {
	dedup, err := NewDedupGate(reader, env, logger)
	if err != nil {
		return nil, err
	}
	return &Service{Dedup: dedup}, nil
}
