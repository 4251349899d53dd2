// Package memstore is an in-process ledger used by tests. Write transactions are serialized
// and work on a copy of the committed state, so a rolled back transaction leaves no trace.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/spendiq-server/internal/storage"
	"github.com/carson-networks/spendiq-server/internal/storage/account"
	"github.com/carson-networks/spendiq-server/internal/storage/limits"
	"github.com/carson-networks/spendiq-server/internal/storage/transaction"
)

var errTxDone = errors.New("memstore: transaction already finished")

type state struct {
	accounts     map[uuid.UUID]account.Account
	transactions []transaction.Transaction
	limits       map[string]limits.Limits
}

func newState() *state {
	return &state{
		accounts: make(map[uuid.UUID]account.Account),
		limits:   make(map[string]limits.Limits),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:     make(map[uuid.UUID]account.Account, len(s.accounts)),
		transactions: append([]transaction.Transaction(nil), s.transactions...),
		limits:       make(map[string]limits.Limits, len(s.limits)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.limits {
		c.limits[k] = v
	}
	return c
}

type Store struct {
	writeLock sync.Mutex

	mu        sync.RWMutex
	committed *state

	failMu   sync.Mutex
	failures map[Op]error
}

// Op names a store operation that can be made to fail.
type Op string

const (
	OpInsert      Op = "insert"
	OpApplyDelta  Op = "applyDelta"
	OpUpsert      Op = "upsert"
	OpFindAccount Op = "findAccount"
	OpExists      Op = "exists"
)

// Fail makes every later call of op return err. A nil err clears the failure.
func (s *Store) Fail(op Op, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op Op) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failures[op]
}

func New() *Store {
	return &Store{committed: newState(), failures: make(map[Op]error)}
}

// Write begins a serialized transaction over a snapshot of the committed state.
func (s *Store) Write(ctx context.Context) (*storage.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.writeLock.Lock()

	s.mu.RLock()
	snapshot := s.committed.clone()
	s.mu.RUnlock()

	tx := &tx{store: s, state: snapshot}
	return storage.NewWriterWith(tx, tx, tx, tx), nil
}

// Reader exposes the committed state through the storage read interfaces.
func (s *Store) Reader() *storage.Reader {
	return &storage.Reader{
		Accounts:     &accountReader{store: s},
		Transactions: &transactionReader{store: s},
		Limits:       &limitsReader{store: s},
	}
}

func (s *Store) Accounts() []account.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]account.Account, 0, len(s.committed.accounts))
	for _, a := range s.committed.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) Transactions() []transaction.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]transaction.Transaction(nil), s.committed.transactions...)
}

func (s *Store) Limits(userID string) (limits.Limits, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.committed.limits[userID]
	return l, ok
}

type tx struct {
	store *Store
	state *state
	done  bool
}

var (
	_ storage.Committer  = (*tx)(nil)
	_ account.IWriter     = (*tx)(nil)
	_ transaction.IWriter = (*tx)(nil)
	_ limits.IWriter      = (*tx)(nil)
)

func (t *tx) Commit(context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.mu.Lock()
	t.store.committed = t.state
	t.store.mu.Unlock()
	t.store.writeLock.Unlock()
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.writeLock.Unlock()
	return nil
}

func (t *tx) FindByOwnerAndName(_ context.Context, ownerID, name string) (*account.Account, error) {
	return findAccount(t.state, ownerID, name), nil
}

func (t *tx) FindByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	a, ok := t.state.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return &a, nil
}

func (t *tx) ListByOwner(_ context.Context, ownerID string) ([]*account.Account, error) {
	return listByOwner(t.state, ownerID), nil
}

func (t *tx) FindOrCreateForUpdate(_ context.Context, ownerID, name string) (*account.Account, bool, error) {
	if err := t.store.failure(OpFindAccount); err != nil {
		return nil, false, err
	}
	if a := findAccount(t.state, ownerID, name); a != nil {
		return a, false, nil
	}
	a := account.Account{
		ID:        uuid.Must(uuid.NewV4()),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	t.state.accounts[a.ID] = a
	return &a, true, nil
}

func (t *tx) ApplyDelta(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	if err := t.store.failure(OpApplyDelta); err != nil {
		return 0, err
	}
	a, ok := t.state.accounts[id]
	if !ok {
		return 0, account.ErrAccountNotFound
	}
	a.Balance += delta
	t.state.accounts[id] = a
	return a.Balance, nil
}

func (t *tx) Insert(_ context.Context, create *transaction.TransactionCreate) (uuid.UUID, error) {
	if err := t.store.failure(OpInsert); err != nil {
		return uuid.Nil, err
	}
	if create.Amount <= 0 || !create.Type.Valid() {
		return uuid.Nil, transaction.ErrInvalidTransaction
	}
	if _, ok := t.state.accounts[create.AccountID]; !ok {
		return uuid.Nil, account.ErrAccountNotFound
	}
	occurredAt := create.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	row := transaction.Transaction{
		ID:         uuid.Must(uuid.NewV4()),
		AccountID:  create.AccountID,
		Name:       create.Name,
		Amount:     create.Amount,
		Type:       create.Type,
		OccurredAt: occurredAt,
		Automatic:  create.Automatic,
		CreatedAt:  time.Now(),
	}
	if create.Location != nil {
		lat, lon := create.Location.Latitude, create.Location.Longitude
		row.Latitude, row.Longitude = &lat, &lon
	}
	t.state.transactions = append(t.state.transactions, row)
	return row.ID, nil
}

func (t *tx) ExistsSimilar(_ context.Context, filter *transaction.SimilarFilter) (bool, error) {
	if err := t.store.failure(OpExists); err != nil {
		return false, err
	}
	return existsSimilar(t.state, filter), nil
}

func (t *tx) Upsert(_ context.Context, l *limits.Limits) error {
	if err := t.store.failure(OpUpsert); err != nil {
		return err
	}
	row := *l
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now()
	}
	t.state.limits[row.UserID] = row
	return nil
}

type accountReader struct {
	store *Store
}

type transactionReader struct {
	store *Store
}

type limitsReader struct {
	store *Store
}

var (
	_ account.IReader     = (*accountReader)(nil)
	_ transaction.IReader = (*transactionReader)(nil)
	_ limits.IReader      = (*limitsReader)(nil)
)

func (r *accountReader) FindByOwnerAndName(_ context.Context, ownerID, name string) (*account.Account, error) {
	if err := r.store.failure(OpFindAccount); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return findAccount(r.store.committed, ownerID, name), nil
}

func (r *accountReader) ListByOwner(_ context.Context, ownerID string) ([]*account.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return listByOwner(r.store.committed, ownerID), nil
}

func (r *accountReader) FindByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.committed.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return &a, nil
}

func (r *transactionReader) FindByID(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, row := range r.store.committed.transactions {
		if row.ID == id {
			found := row
			return &found, nil
		}
	}
	return nil, transaction.ErrTransactionNotFound
}

func (r *transactionReader) ExistsSimilar(_ context.Context, filter *transaction.SimilarFilter) (bool, error) {
	if err := r.store.failure(OpExists); err != nil {
		return false, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return existsSimilar(r.store.committed, filter), nil
}

func (r *transactionReader) SumSignedAmounts(_ context.Context, accountID uuid.UUID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var sum int64
	for _, row := range r.store.committed.transactions {
		if row.AccountID == accountID {
			sum += row.Type.SignedAmount(row.Amount)
		}
	}
	return sum, nil
}

func (r *transactionReader) List(_ context.Context, filter *transaction.ListFilter) (*transaction.ListResult, error) {
	r.store.mu.RLock()
	var rows []*transaction.Transaction
	for _, row := range r.store.committed.transactions {
		if row.AccountID == filter.AccountID {
			found := row
			rows = append(rows, &found)
		}
	}
	r.store.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].OccurredAt.After(rows[j].OccurredAt)
	})

	result := &transaction.ListResult{}
	if filter.Offset >= len(rows) {
		return result, nil
	}
	rows = rows[filter.Offset:]
	if len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
		result.NextCursor = &transaction.ListCursor{Position: filter.Offset + filter.Limit, Limit: filter.Limit}
	}
	result.Transactions = rows
	return result, nil
}

func (r *limitsReader) FindByUserID(_ context.Context, userID string) (*limits.Limits, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	l, ok := r.store.committed.limits[userID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func existsSimilar(s *state, filter *transaction.SimilarFilter) bool {
	for _, row := range s.transactions {
		if row.AccountID == filter.AccountID &&
			row.Name == filter.Name &&
			row.Amount == filter.Amount &&
			row.Type == filter.Type &&
			!row.OccurredAt.Before(filter.From) &&
			!row.OccurredAt.After(filter.To) {
			return true
		}
	}
	return false
}

func listByOwner(s *state, ownerID string) []*account.Account {
	var out []*account.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			found := a
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func findAccount(s *state, ownerID, name string) *account.Account {
	for _, a := range s.accounts {
		if a.OwnerID == ownerID && a.Name == name {
			found := a
			return &found
		}
	}
	return nil
}
