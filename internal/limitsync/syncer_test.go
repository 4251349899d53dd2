package limitsync

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/spendiq-server/internal/localdb"
	"github.com/carson-networks/spendiq-server/internal/operator"
	"github.com/carson-networks/spendiq-server/internal/scheduler"
	"github.com/carson-networks/spendiq-server/internal/storage/memstore"
)

type fixture struct {
	local    *localdb.DB
	store    *memstore.Store
	operator *operator.OperatorDelegator
	manager  *scheduler.WorkManager
	syncer   *Syncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.Out = io.Discard

	local, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "local.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	store := memstore.New()
	op := operator.NewOperatorDelegator(store, 1, logger)
	op.Start()
	t.Cleanup(op.Stop)

	manager := scheduler.NewWorkManager(scheduler.AlwaysConnected{}, logger, scheduler.WithRetryBackoff(time.Millisecond, 5*time.Millisecond))
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	return &fixture{
		local:    local,
		store:    store,
		operator: op,
		manager:  manager,
		syncer:   NewSyncer(local.Limits, op, manager, logger),
	}
}

func TestSyncer_Sync_NothingStored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.syncer.Sync(context.Background(), "u-1"))
	_, ok := f.store.Limits("u-1")
	assert.False(t, ok)
}

func TestSyncer_Sync_CopiesLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.local.Limits.Save(ctx, localdb.Limits{
		UserID:      "u-1",
		Frequency:   "Monthly",
		ByExpense:   true,
		Expenses:    []localdb.Expense{{Name: "Food", Amount: "100000"}},
		TotalAmount: "100000",
	}))

	require.NoError(t, f.syncer.Sync(ctx, "u-1"))

	remote, ok := f.store.Limits("u-1")
	require.True(t, ok)
	assert.Equal(t, "Monthly", remote.Frequency)
	assert.True(t, remote.ByExpense)
	assert.JSONEq(t, `[{"name":"Food","amount":"100000"}]`, remote.Expenses)
}

func TestSyncer_Schedule_RetriesUntilRemoteAccepts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.local.Limits.Save(ctx, localdb.Limits{UserID: "u-1", Frequency: "Weekly"}))

	f.store.Fail(memstore.OpUpsert, errors.New("remote unavailable"))
	require.NoError(t, f.syncer.Schedule("u-1"))
	time.Sleep(20 * time.Millisecond)
	_, ok := f.store.Limits("u-1")
	assert.False(t, ok)

	f.store.Fail(memstore.OpUpsert, nil)
	assert.Eventually(t, func() bool {
		_, ok := f.store.Limits("u-1")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, active := f.manager.Info(WorkName("u-1"))
		return !active
	}, time.Second, time.Millisecond)
}
