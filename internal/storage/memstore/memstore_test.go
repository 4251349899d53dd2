package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/spendiq-server/internal/storage/transaction"
)

func TestStore_CommitPublishes(t *testing.T) {
	store := New()
	ctx := context.Background()

	writer, err := store.Write(ctx)
	require.NoError(t, err)
	acct, created, err := writer.Account.FindOrCreateForUpdate(ctx, "u-1", "Nu")
	require.NoError(t, err)
	assert.True(t, created)

	_, err = writer.Transaction.Insert(ctx, &transaction.TransactionCreate{
		AccountID:  acct.ID,
		Name:       "Tienda",
		Amount:     100,
		Type:       transaction.TypeExpense,
		OccurredAt: time.Now(),
		Automatic:  true,
	})
	require.NoError(t, err)
	balance, err := writer.Account.ApplyDelta(ctx, acct.ID, -100)
	require.NoError(t, err)
	assert.Equal(t, int64(-100), balance)

	found, err := store.Reader().Accounts.FindByOwnerAndName(ctx, "u-1", "Nu")
	require.NoError(t, err)
	assert.Nil(t, found, "uncommitted account is not visible")

	require.NoError(t, writer.Commit())

	found, err = store.Reader().Accounts.FindByOwnerAndName(ctx, "u-1", "Nu")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(-100), found.Balance)
	assert.Len(t, store.Transactions(), 1)
}

func TestStore_RollbackDiscards(t *testing.T) {
	store := New()
	ctx := context.Background()

	writer, err := store.Write(ctx)
	require.NoError(t, err)
	_, _, err = writer.Account.FindOrCreateForUpdate(ctx, "u-1", "Nu")
	require.NoError(t, err)
	require.NoError(t, writer.Rollback())

	assert.Empty(t, store.Accounts())
	assert.Error(t, writer.Commit(), "finished transaction cannot be reused")
}

func TestStore_InjectedInsertError(t *testing.T) {
	store := New()
	store.Fail(OpInsert, errors.New("disk full"))
	ctx := context.Background()

	writer, err := store.Write(ctx)
	require.NoError(t, err)
	acct, _, err := writer.Account.FindOrCreateForUpdate(ctx, "u-1", "Nu")
	require.NoError(t, err)

	_, err = writer.Transaction.Insert(ctx, &transaction.TransactionCreate{
		AccountID: acct.ID,
		Name:      "Tienda",
		Amount:    1,
		Type:      transaction.TypeIncome,
	})
	assert.EqualError(t, err, "disk full")
	require.NoError(t, writer.Rollback())
}
