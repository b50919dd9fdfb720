// Package idempotency implements the Begin/Record contract of spec §4.D,
// generalized from the teacher's embedded idempotency handling inside
// TransferService.ProcessTransfer (lookup by key, finalize to "completed")
// into a standalone layer keyed by (operation key, user ID) so deposits,
// withdrawals, and transfers all share it, not just transfers.
//
// Begin is read-only: it never writes a record, so a keyed operation that
// fails after Begin leaves nothing behind for a retry to trip over. For
// transfers, the concurrent-duplicate race this opens is closed downstream
// by the transfer table's unique constraint on operation key. Deposits and
// withdrawals have no such backstop: two concurrent requests with the same
// key can both see Proceed and both execute; the unique constraint on
// (operation key, user ID) only ensures Record stores a single record.
//
// Begin and Record each run in their own short store transaction, separate
// from the engine's main OCC retry loop, matching spec §4.E's framing: the
// idempotency consultation happens before the retry loop even starts, and
// recording the result happens after the main transaction has already
// committed, best-effort.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/store"
)

// Outcome is the result of Begin.
type Outcome int

const (
	// Proceed means no record exists; the caller runs the operation and
	// must call Record after a successful commit.
	Proceed Outcome = iota
	// Replay means a completed record exists; ResponseBody should be
	// returned verbatim.
	Replay
	// InFlight means an incomplete record exists — a duplicate request is
	// currently being processed.
	InFlight
)

// Result carries the outcome and, for Replay, the stored response body.
type Result struct {
	Outcome      Outcome
	ResponseBody json.RawMessage
}

// Begin looks up the record keyed by (key, userID) and returns Proceed if
// absent, Replay if completed, InFlight if present but not yet completed.
// It writes nothing — per spec §4.D the caller is responsible for calling
// Record after a successful commit, and a failed or abandoned operation
// leaves no trace for a retry with the same key to get stuck behind.
func Begin(ctx context.Context, s store.Store, operationKey, userID, path string) (Result, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("idempotency begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := tx.FindIdempotencyRecord(ctx, operationKey, userID)
	if err != nil {
		if err == domain.ErrNotFound {
			return Result{Outcome: Proceed}, nil
		}
		return Result{}, fmt.Errorf("idempotency lookup: %w", err)
	}
	if rec.Completed {
		return Result{Outcome: Replay, ResponseBody: rec.ResponseBody}, nil
	}
	return Result{Outcome: InFlight}, nil
}

// Record writes the completed record with the given response body attached,
// per spec §4.D/§4.E step 5. Best-effort: callers must not fail the overall
// operation if Record returns an error — the underlying mutation already
// committed.
func Record(ctx context.Context, s store.Store, operationKey, userID, path string, body json.RawMessage) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return fmt.Errorf("idempotency record begin: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := tx.FindIdempotencyRecord(ctx, operationKey, userID)
	if err != nil && err != domain.ErrNotFound {
		return fmt.Errorf("idempotency record lookup: %w", err)
	}

	if err == domain.ErrNotFound {
		if err := tx.InsertIdempotencyRecord(ctx, &domain.IdempotencyRecord{
			OperationKey: operationKey,
			UserID:       userID,
			Path:         path,
			Completed:    true,
			ResponseBody: body,
		}); err != nil {
			return fmt.Errorf("idempotency record insert: %w", err)
		}
	} else {
		existing.Path = path
		existing.Completed = true
		existing.ResponseBody = body
		if err := tx.UpdateIdempotencyRecord(ctx, existing); err != nil {
			return fmt.Errorf("idempotency record update: %w", err)
		}
	}

	return tx.Commit(ctx)
}
