// Package engine is the orchestrator of spec §4.E, grounded on the teacher's
// TransferService.ProcessTransfer: it wraps every mutation in exactly one
// store transaction, runs the validator before and after the transaction
// opens, writes the journal/transfer rows, advances account versions, and
// commits. Unlike the teacher, which avoids deadlock by locking both
// accounts in ID order under RepeatableRead, this engine never takes a row
// lock at all — it relies entirely on the store's compare-and-swap version
// check and retries the whole attempt on conflict, per spec §5.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/metrics"
	"github.com/ledgerbank/corebank/internal/store"
)

const maxAttempts = 3

// retryBackoff implements the 50/100/200ms schedule of spec §5: wait
// 50*2^(attempt-1) ms between attempt and attempt+1.
func retryBackoff(attempt int) time.Duration {
	return time.Duration(50*(1<<uint(attempt-1))) * time.Millisecond
}

// Engine is the stateless orchestrator over a store.Store. It holds no
// mutable state of its own — every fact it needs lives in the store, per
// spec §9 ("the engine is a stateless orchestrator... all mutable state
// lives in the store").
type Engine struct {
	store  store.Store
	logger *slog.Logger
}

// New builds an Engine bound to the given store and logger.
func New(s store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, logger: logger}
}

// wrapStorage turns any error the store returns that is neither a known
// domain.Error nor a version conflict into a generic STORAGE_ERROR, per spec
// §4.A ("any non-version-conflict error from the store surfaces as a
// storage error and aborts the operation").
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr
	}
	if errors.Is(err, domain.ErrVersionConflict) {
		return err
	}
	return domain.NewError(domain.CodeStorageError, fmt.Sprintf("%s: storage error", op))
}

// notFoundAs maps a domain.ErrNotFound lookup failure onto a domain error
// with the given not-found code (ACCOUNT_NOT_FOUND in every current caller),
// leaving every other error to fall through to wrapStorage.
func notFoundAs(code domain.Code, message string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewError(code, message)
	}
	return err
}

// runWithRetry drives the bounded retry loop of spec §5 around a single
// attempt function. The attempt function must be self-contained: it opens
// its own transaction, does its own reads, and either commits or returns an
// error, discarding everything it read on the way out. On version conflict
// runWithRetry records a metrics.RetriesTotal observation, sleeps the
// backoff interval, and tries again; after maxAttempts conflicts it
// translates the failure into CONCURRENCY_CONFLICT.
func runWithRetry[T any](ctx context.Context, operation string, attemptFn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := attemptFn(ctx)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return zero, err
		}
		metrics.RetriesTotal.WithLabelValues(operation).Inc()
		if attempt == maxAttempts {
			return zero, domain.NewError(domain.CodeConcurrencyConflict, "too many concurrent updates to the same account; retry with a new operation key")
		}
		select {
		case <-ctx.Done():
			return zero, wrapStorage(operation, ctx.Err())
		case <-time.After(retryBackoff(attempt)):
		}
	}
	return zero, domain.NewError(domain.CodeConcurrencyConflict, "retry budget exhausted")
}

// withTx opens a transaction, runs fn, and commits on success or rolls back
// on any error or panic. fn's returned error, if non-nil, aborts the commit.
func withTx[T any](ctx context.Context, s store.Store, fn func(ctx context.Context, tx store.Tx) (T, error)) (T, error) {
	var zero T
	tx, err := s.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	result, err := fn(ctx, tx)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return result, nil
}
