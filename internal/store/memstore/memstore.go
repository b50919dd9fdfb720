// Package memstore is an in-memory implementation of store.Store for unit
// tests, grounded on Carol-YiYun-simple-banking-system's mutex-guarded
// in-memory bank and SambamurthiRaju-GoLang/BankingAPI's InMemoryStore, but
// generalized to implement the same compare-and-swap account update
// semantics as the Postgres store (per-row locking instead of one global
// lock) so that optimistic-concurrency retries are actually observable
// under concurrent load, the way spec §8's P7 requires.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/store"
)

type accountRow struct {
	mu  sync.Mutex
	acc domain.Account
}

// Store is a process-local, goroutine-safe implementation of store.Store.
type Store struct {
	mu               sync.RWMutex
	accountsByID     map[string]*accountRow
	accountsByNumber map[string]string

	journalMu sync.Mutex
	journal   []domain.JournalEntry

	transferMu       sync.Mutex
	transfers        map[string]*domain.Transfer
	transfersByOpKey map[string]string // committed: operation key -> transfer ID
	reservedOpKeys   map[string]string // in-flight: operation key -> owning tx ID

	idemMu           sync.Mutex
	idempotency      map[string]*domain.IdempotencyRecord // committed: "key\x00userID" -> record
	reservedIdemKeys map[string]string                    // in-flight: "key\x00userID" -> owning tx ID
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		accountsByID:     make(map[string]*accountRow),
		accountsByNumber: make(map[string]string),
		transfers:        make(map[string]*domain.Transfer),
		transfersByOpKey: make(map[string]string),
		reservedOpKeys:   make(map[string]string),
		idempotency:      make(map[string]*domain.IdempotencyRecord),
		reservedIdemKeys: make(map[string]string),
	}
}

// SeedAccount inserts an account directly, bypassing the engine — used by
// tests and the benchmark tool to set up starting state. It is
// not part of the store.Store interface: account creation is an external
// collaborator per spec §3.
func (s *Store) SeedAccount(acc domain.Account) *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := acc
	row := &accountRow{acc: cp}
	s.accountsByID[cp.ID] = row
	s.accountsByNumber[cp.Number] = cp.ID
	out := cp
	return &out
}

func idemKey(operationKey, userID string) string {
	return operationKey + "\x00" + userID
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	return &tx{s: s, id: uuid.NewString()}, nil
}

type versionUndo struct {
	row        *accountRow
	oldBalance money.Amount
	oldVersion int64
}

type tx struct {
	s  *Store
	id string

	pendingJournal   []domain.JournalEntry
	pendingTransfers []domain.Transfer
	pendingIdemNew   []domain.IdempotencyRecord
	pendingIdemSet   []domain.IdempotencyRecord
	reservedKeys     []string
	reservedIdemKeys []string
	versionUpdates   []versionUndo

	done bool
}

func (t *tx) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	t.s.mu.RLock()
	row, ok := t.s.accountsByID[id]
	t.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	row.mu.Lock()
	cp := row.acc
	row.mu.Unlock()
	return &cp, nil
}

func (t *tx) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	t.s.mu.RLock()
	id, ok := t.s.accountsByNumber[number]
	t.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t.FindAccountByID(ctx, id)
}

func (t *tx) InsertJournalEntry(ctx context.Context, e *domain.JournalEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	t.pendingJournal = append(t.pendingJournal, *e)
	return nil
}

func (t *tx) InsertTransfer(ctx context.Context, tr *domain.Transfer) error {
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	t.s.transferMu.Lock()
	if _, exists := t.s.transfersByOpKey[tr.OperationKey]; exists {
		t.s.transferMu.Unlock()
		return domain.ErrDuplicateKey
	}
	if owner, exists := t.s.reservedOpKeys[tr.OperationKey]; exists && owner != t.id {
		t.s.transferMu.Unlock()
		return domain.ErrDuplicateKey
	}
	t.s.reservedOpKeys[tr.OperationKey] = t.id
	t.s.transferMu.Unlock()

	t.reservedKeys = append(t.reservedKeys, tr.OperationKey)
	t.pendingTransfers = append(t.pendingTransfers, *tr)
	return nil
}

func (t *tx) FindTransferByOperationKey(ctx context.Context, key string) (*domain.Transfer, error) {
	t.s.transferMu.Lock()
	defer t.s.transferMu.Unlock()
	id, ok := t.s.transfersByOpKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	tr := *t.s.transfers[id]
	return &tr, nil
}

func (t *tx) UpdateAccountVersion(ctx context.Context, accountID string, newBalance money.Amount, expectedVersion int64) error {
	t.s.mu.RLock()
	row, ok := t.s.accountsByID[accountID]
	t.s.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}

	row.mu.Lock()
	if row.acc.Version != expectedVersion {
		row.mu.Unlock()
		return domain.ErrVersionConflict
	}
	t.versionUpdates = append(t.versionUpdates, versionUndo{
		row:        row,
		oldBalance: row.acc.Balance,
		oldVersion: row.acc.Version,
	})
	row.acc.Balance = newBalance
	row.acc.Version++
	row.mu.Unlock()
	return nil
}

func (t *tx) FindIdempotencyRecord(ctx context.Context, operationKey, userID string) (*domain.IdempotencyRecord, error) {
	t.s.idemMu.Lock()
	defer t.s.idemMu.Unlock()
	r, ok := t.s.idempotency[idemKey(operationKey, userID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (t *tx) InsertIdempotencyRecord(ctx context.Context, r *domain.IdempotencyRecord) error {
	k := idemKey(r.OperationKey, r.UserID)

	t.s.idemMu.Lock()
	if _, exists := t.s.idempotency[k]; exists {
		t.s.idemMu.Unlock()
		return domain.ErrDuplicateKey
	}
	if owner, exists := t.s.reservedIdemKeys[k]; exists && owner != t.id {
		t.s.idemMu.Unlock()
		return domain.ErrDuplicateKey
	}
	t.s.reservedIdemKeys[k] = t.id
	t.s.idemMu.Unlock()

	t.reservedIdemKeys = append(t.reservedIdemKeys, k)

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = r.CreatedAt
	t.pendingIdemNew = append(t.pendingIdemNew, *r)
	return nil
}

func (t *tx) UpdateIdempotencyRecord(ctx context.Context, r *domain.IdempotencyRecord) error {
	r.UpdatedAt = time.Now().UTC()
	t.pendingIdemSet = append(t.pendingIdemSet, *r)
	return nil
}

func (t *tx) SumCompletedEntries(ctx context.Context, accountID string) (money.Amount, int, error) {
	t.s.journalMu.Lock()
	defer t.s.journalMu.Unlock()
	var sum money.Amount
	count := 0
	for _, e := range t.s.journal {
		if e.AccountID == accountID && e.Status == domain.EntryCompleted {
			sum = sum.Add(e.Amount)
			count++
		}
	}
	return sum, count, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	if len(t.pendingJournal) > 0 {
		t.s.journalMu.Lock()
		t.s.journal = append(t.s.journal, t.pendingJournal...)
		t.s.journalMu.Unlock()
	}

	if len(t.pendingTransfers) > 0 {
		t.s.transferMu.Lock()
		for i := range t.pendingTransfers {
			tr := t.pendingTransfers[i]
			t.s.transfers[tr.ID] = &tr
			t.s.transfersByOpKey[tr.OperationKey] = tr.ID
			delete(t.s.reservedOpKeys, tr.OperationKey)
		}
		t.s.transferMu.Unlock()
	}

	if len(t.pendingIdemNew)+len(t.pendingIdemSet) > 0 {
		t.s.idemMu.Lock()
		for i := range t.pendingIdemNew {
			r := t.pendingIdemNew[i]
			k := idemKey(r.OperationKey, r.UserID)
			t.s.idempotency[k] = &r
			delete(t.s.reservedIdemKeys, k)
		}
		for i := range t.pendingIdemSet {
			r := t.pendingIdemSet[i]
			t.s.idempotency[idemKey(r.OperationKey, r.UserID)] = &r
		}
		t.s.idemMu.Unlock()
	}

	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	for i := len(t.versionUpdates) - 1; i >= 0; i-- {
		u := t.versionUpdates[i]
		u.row.mu.Lock()
		u.row.acc.Balance = u.oldBalance
		u.row.acc.Version = u.oldVersion
		u.row.mu.Unlock()
	}

	if len(t.reservedKeys) > 0 {
		t.s.transferMu.Lock()
		for _, k := range t.reservedKeys {
			if t.s.reservedOpKeys[k] == t.id {
				delete(t.s.reservedOpKeys, k)
			}
		}
		t.s.transferMu.Unlock()
	}

	if len(t.reservedIdemKeys) > 0 {
		t.s.idemMu.Lock()
		for _, k := range t.reservedIdemKeys {
			if t.s.reservedIdemKeys[k] == t.id {
				delete(t.s.reservedIdemKeys, k)
			}
		}
		t.s.idemMu.Unlock()
	}

	return nil
}
