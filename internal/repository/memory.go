package repository

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"loyalty-points/internal/domain"
	"loyalty-points/internal/errors"
)

// MemoryStore is an in-memory domain.Store used by unit tests and local
// development. A single mutex stands in for the database's row locks:
// WithTransaction holds it for the whole unit of work, which gives the same
// per-account serialization the postgres store gets from FOR UPDATE.
type MemoryStore struct {
	data *memoryData
	inTx bool
}

type memoryData struct {
	mu            sync.Mutex
	accounts      map[int64]*domain.Account
	transactions  map[int64]*domain.LoyaltyPointsTransaction
	nextAccountID int64
	nextTxID      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memoryData{
			accounts:      make(map[int64]*domain.Account),
			transactions:  make(map[int64]*domain.LoyaltyPointsTransaction),
			nextAccountID: 1,
			nextTxID:      1,
		},
	}
}

var _ domain.Store = (*MemoryStore)(nil)

func (s *MemoryStore) Account() domain.AccountRepository {
	return &memoryAccountRepository{store: s}
}

func (s *MemoryStore) Transaction() domain.TransactionRepository {
	return &memoryTransactionRepository{store: s}
}

// WithTransaction runs fn while holding the store lock, restoring the prior
// state if fn fails so no partial writes survive.
func (s *MemoryStore) WithTransaction(fn func(domain.Store) error) error {
	if s.inTx {
		return errors.ErrCannotBeginTransaction
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	snapshot := s.data.snapshot()
	if err := fn(&MemoryStore{data: s.data, inTx: true}); err != nil {
		s.data.restore(snapshot)
		return err
	}
	return nil
}

// lock is a no-op inside a transaction, where the store lock is already held.
func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.data.mu.Lock()
	return s.data.mu.Unlock
}

type memorySnapshot struct {
	accounts      map[int64]*domain.Account
	transactions  map[int64]*domain.LoyaltyPointsTransaction
	nextAccountID int64
	nextTxID      int64
}

func (d *memoryData) snapshot() memorySnapshot {
	snap := memorySnapshot{
		accounts:      make(map[int64]*domain.Account, len(d.accounts)),
		transactions:  make(map[int64]*domain.LoyaltyPointsTransaction, len(d.transactions)),
		nextAccountID: d.nextAccountID,
		nextTxID:      d.nextTxID,
	}
	for id, a := range d.accounts {
		copied := *a
		snap.accounts[id] = &copied
	}
	for id, t := range d.transactions {
		copied := *t
		snap.transactions[id] = &copied
	}
	return snap
}

func (d *memoryData) restore(snap memorySnapshot) {
	d.accounts = snap.accounts
	d.transactions = snap.transactions
	d.nextAccountID = snap.nextAccountID
	d.nextTxID = snap.nextTxID
}

type memoryAccountRepository struct {
	store *MemoryStore
}

func (r *memoryAccountRepository) CreateAccount(account *domain.Account) error {
	unlock := r.store.lock()
	defer unlock()

	d := r.store.data
	for _, existing := range d.accounts {
		if sameIdentifier(existing.Phone, account.Phone) ||
			sameIdentifier(existing.Card, account.Card) ||
			sameIdentifier(existing.Email, account.Email) {
			return errors.ErrDuplicateAccount
		}
	}

	account.ID = d.nextAccountID
	d.nextAccountID++
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	copied := *account
	d.accounts[account.ID] = &copied
	return nil
}

func sameIdentifier(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

func (r *memoryAccountRepository) GetAccount(id int64) (*domain.Account, error) {
	unlock := r.store.lock()
	defer unlock()

	account, ok := r.store.data.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *memoryAccountRepository) FindByIdentifier(idType domain.IdentifierType, value string) (*domain.Account, error) {
	unlock := r.store.lock()
	defer unlock()

	for _, account := range r.store.data.accounts {
		var field string
		switch idType {
		case domain.IdentifierPhone:
			field = account.Phone
		case domain.IdentifierCard:
			field = account.Card
		case domain.IdentifierEmail:
			field = account.Email
		}
		if field != "" && field == value {
			copied := *account
			return &copied, nil
		}
	}
	return nil, errors.ErrAccountNotFound
}

func (r *memoryAccountRepository) GetBalance(accountID int64) (decimal.Decimal, error) {
	unlock := r.store.lock()
	defer unlock()

	return r.store.data.balanceLocked(accountID), nil
}

func (d *memoryData) balanceLocked(accountID int64) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range d.transactions {
		if tx.AccountID == accountID && tx.Canceled == nil {
			balance = balance.Add(tx.PointsAmount)
		}
	}
	return balance
}

func (r *memoryAccountRepository) LockAccount(accountID int64) error {
	unlock := r.store.lock()
	defer unlock()

	if _, ok := r.store.data.accounts[accountID]; !ok {
		return errors.ErrAccountNotFound
	}
	return nil
}

type memoryTransactionRepository struct {
	store *MemoryStore
}

func (r *memoryTransactionRepository) CreateTransaction(tx *domain.LoyaltyPointsTransaction) error {
	unlock := r.store.lock()
	defer unlock()

	d := r.store.data
	tx.ID = d.nextTxID
	d.nextTxID++
	tx.CreatedAt = time.Now()

	copied := *tx
	d.transactions[tx.ID] = &copied
	return nil
}

func (r *memoryTransactionRepository) GetTransactionByID(id int64) (*domain.LoyaltyPointsTransaction, error) {
	unlock := r.store.lock()
	defer unlock()

	tx, ok := r.store.data.transactions[id]
	if !ok {
		return nil, errors.ErrTransactionNotFound
	}
	copied := *tx
	return &copied, nil
}

func (r *memoryTransactionRepository) CancelTransaction(id int64, reason string, at time.Time) (*domain.LoyaltyPointsTransaction, error) {
	unlock := r.store.lock()
	defer unlock()

	tx, ok := r.store.data.transactions[id]
	if !ok || tx.Canceled != nil {
		return nil, errors.ErrTransactionNotFound
	}

	canceledAt := at
	tx.Canceled = &canceledAt
	tx.CancellationReason = reason

	copied := *tx
	return &copied, nil
}

// TransactionsForAccount returns the account's ledger entries ordered by id.
// Test helper; the postgres store answers this with a query.
func (s *MemoryStore) TransactionsForAccount(accountID int64) []*domain.LoyaltyPointsTransaction {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	var out []*domain.LoyaltyPointsTransaction
	for _, tx := range s.data.transactions {
		if tx.AccountID == accountID {
			copied := *tx
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
