// Package store defines the narrow transactional interface the engine
// requires (spec §4.A), generalized from the teacher's concrete
// *pgxpool.Pool-holding Store into an interface with two implementations:
// postgres (internal/store/postgres) for production and memstore
// (internal/store/memstore) for tests — per spec §9, "the only polymorphism
// in the core is the store interface, to enable an in-memory implementation
// for tests."
package store

import (
	"context"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/money"
)

// Store begins transactions. Everything else happens through Tx.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single store transaction. The engine opens exactly one per
// operation attempt and either commits it once, fully, or rolls it back.
type Tx interface {
	FindAccountByID(ctx context.Context, id string) (*domain.Account, error)
	FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error)

	InsertJournalEntry(ctx context.Context, e *domain.JournalEntry) error
	InsertTransfer(ctx context.Context, t *domain.Transfer) error
	FindTransferByOperationKey(ctx context.Context, key string) (*domain.Transfer, error)

	// UpdateAccountVersion writes the account's new balance and advances its
	// version, conditional on the row's current version still equalling
	// expectedVersion. It MUST implement compare-and-swap directly — not a
	// read-then-write — and return domain.ErrVersionConflict (never a
	// generic error) when the CAS loses.
	UpdateAccountVersion(ctx context.Context, accountID string, newBalance money.Amount, expectedVersion int64) error

	FindIdempotencyRecord(ctx context.Context, operationKey, userID string) (*domain.IdempotencyRecord, error)
	InsertIdempotencyRecord(ctx context.Context, r *domain.IdempotencyRecord) error
	UpdateIdempotencyRecord(ctx context.Context, r *domain.IdempotencyRecord) error

	SumCompletedEntries(ctx context.Context, accountID string) (money.Amount, int, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
