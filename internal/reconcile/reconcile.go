// Package reconcile implements spec §4.F: a read-only comparison of the
// ledger-derived balance against the cached balance, grounded on the
// teacher's GetEntries/GetAccount store reads (which the teacher uses to
// render a raw delta list) but changed to the spec's sum-vs-cached
// comparison and critical-event signaling on mismatch.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/metrics"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/obslog"
	"github.com/ledgerbank/corebank/internal/store"
)

// Result carries both balances, the entry count they were computed from,
// and whether they agree.
type Result struct {
	AccountID     string
	LedgerBalance money.Amount
	CachedBalance money.Amount
	EntryCount    int
	Reconciled    bool
}

// Reconciler never mutates the store; it only reads.
type Reconciler struct {
	store  store.Store
	logger *slog.Logger
}

// New builds a Reconciler bound to the given store and logger.
func New(s store.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: s, logger: logger}
}

// Reconcile computes ledger_balance for accountID and compares it against
// the account's cached balance. Ownership is assumed verified by the
// caller, per spec §4.F ("ownership verified by caller").
func (r *Reconciler) Reconcile(ctx context.Context, accountID string) (*Result, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, domain.NewError(domain.CodeStorageError, "reconcile: begin transaction failed")
	}
	defer tx.Rollback(ctx)

	acc, err := tx.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.CodeAccountNotFound, "account not found")
		}
		return nil, domain.NewError(domain.CodeStorageError, "reconcile: account lookup failed")
	}

	ledgerBalance, count, err := tx.SumCompletedEntries(ctx, accountID)
	if err != nil {
		return nil, domain.NewError(domain.CodeStorageError, "reconcile: entry sum failed")
	}

	result := &Result{
		AccountID:     accountID,
		LedgerBalance: ledgerBalance,
		CachedBalance: acc.Balance,
		EntryCount:    count,
		Reconciled:    ledgerBalance == acc.Balance,
	}

	if !result.Reconciled {
		metrics.ReconciliationMismatches.Inc()
		obslog.ReconciliationMismatch(r.logger, accountID, acc.Balance, ledgerBalance)
	}

	return result, nil
}
