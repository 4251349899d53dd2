package actions

import (
	"context"

	"github.com/carson-networks/spendiq-server/internal/storage"
	"github.com/carson-networks/spendiq-server/internal/storage/limits"
)

type UpsertLimits struct {
	Limits limits.Limits
}

func (u *UpsertLimits) Perform(ctx context.Context, writer *storage.Writer) error {
	return writer.Limits.Upsert(ctx, &u.Limits)
}
