package actions

import (
	"context"

	"github.com/carson-networks/spendiq-server/internal/storage"
)

// IAction is one unit of work executed inside a single write transaction. An error rolls
// the whole unit back.
type IAction interface {
	Perform(ctx context.Context, writer *storage.Writer) error
}
