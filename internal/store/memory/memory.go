// Package memory is an in-process store used for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moneytrail/apiserver/internal/store"
	"github.com/moneytrail/apiserver/types"
	"github.com/shopspring/decimal"
)

// Store holds every collection behind a single lock.
type Store struct {
	mu    sync.RWMutex
	users map[string]types.User
	codes map[string]types.OneTimeCode
	txs   map[types.Kind]map[string]types.Transaction
}

func New() *Store {
	return &Store{
		users: make(map[string]types.User),
		codes: make(map[string]types.OneTimeCode),
		txs: map[types.Kind]map[string]types.Transaction{
			types.KindIncome:  make(map[string]types.Transaction),
			types.KindExpense: make(map[string]types.Transaction),
		},
	}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (s *Store) Codes() *CodeRepository {
	return &CodeRepository{s: s}
}

func (s *Store) Transactions(kind types.Kind) *TransactionRepository {
	return &TransactionRepository{s: s, kind: kind}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// UserRepository handles persistence for users.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if !validID(id) {
		return types.User{}, store.ErrInvalidID
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, user := range r.s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrDuplicate
		}
	}

	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	r.s.users[user.ID] = user
	return user, nil
}

// CodeRepository handles persistence for one-time codes.
type CodeRepository struct {
	s *Store
}

func (r *CodeRepository) Get(ctx context.Context, email string) (types.OneTimeCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	code, ok := r.s.codes[strings.ToLower(email)]
	if !ok {
		return types.OneTimeCode{}, store.ErrNotFound
	}
	return code, nil
}

func (r *CodeRepository) Upsert(ctx context.Context, code types.OneTimeCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.codes[strings.ToLower(code.Email)] = code
	return nil
}

func (r *CodeRepository) Delete(ctx context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := r.s.codes[key]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.codes, key)
	return nil
}

// TransactionRepository handles persistence for one kind of transaction.
type TransactionRepository struct {
	s    *Store
	kind types.Kind
}

func (r *TransactionRepository) ValidID(id string) bool {
	return validID(id)
}

func (r *TransactionRepository) Create(ctx context.Context, tx types.Transaction) (types.Transaction, error) {
	if !validID(tx.UserID) {
		return types.Transaction{}, store.ErrInvalidID
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	tx.ID = uuid.NewString()
	tx.Kind = r.kind
	tx.CreatedAt = now
	tx.UpdatedAt = now
	r.s.txs[r.kind][tx.ID] = tx
	return tx, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]types.Transaction, error) {
	return r.filter(userID, func(types.Transaction) bool { return true }, 0)
}

func (r *TransactionRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]types.Transaction, error) {
	return r.filter(userID, func(tx types.Transaction) bool { return !tx.Date.Before(since) }, 0)
}

func (r *TransactionRepository) ListRecent(ctx context.Context, userID string, limit int) ([]types.Transaction, error) {
	return r.filter(userID, func(types.Transaction) bool { return true }, limit)
}

func (r *TransactionRepository) SumByUser(ctx context.Context, userID string) (float64, error) {
	items, err := r.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	total := decimal.Zero
	for _, tx := range items {
		total = total.Add(decimal.NewFromFloat(tx.Amount))
	}
	return total.InexactFloat64(), nil
}

func (r *TransactionRepository) DeleteOwned(ctx context.Context, userID, id string) error {
	if !validID(id) || !validID(userID) {
		return store.ErrInvalidID
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx, ok := r.s.txs[r.kind][id]
	if !ok || tx.UserID != userID {
		return store.ErrNotFound
	}
	delete(r.s.txs[r.kind], id)
	return nil
}

func (r *TransactionRepository) filter(userID string, keep func(types.Transaction) bool, limit int) ([]types.Transaction, error) {
	if !validID(userID) {
		return nil, store.ErrInvalidID
	}
	r.s.mu.RLock()
	items := make([]types.Transaction, 0)
	for _, tx := range r.s.txs[r.kind] {
		if tx.UserID == userID && keep(tx) {
			items = append(items, tx)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
