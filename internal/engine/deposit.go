package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/idempotency"
	"github.com/ledgerbank/corebank/internal/metrics"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/obslog"
	"github.com/ledgerbank/corebank/internal/store"
)

const pathDeposit = "deposit"

// Deposit implements spec §4.E's Deposit operation: a single Completed
// Deposit journal entry crediting accountID, under the common
// validate -> idempotency -> retry-loop template shared with Withdraw.
func (e *Engine) Deposit(ctx context.Context, userID, accountID string, amount money.Amount, description, operationKey string) (*OperationResult, error) {
	start := time.Now()
	if err := validateAmount(amount); err != nil {
		metrics.OperationsTotal.WithLabelValues(pathDeposit, "error").Inc()
		return nil, err
	}
	if description == "" {
		description = "Cash deposit"
	}

	hasKey := operationKey != ""
	if hasKey {
		replay, outcome, err := beginIdempotency(ctx, e.store, operationKey, userID, pathDeposit)
		if err != nil {
			metrics.OperationsTotal.WithLabelValues(pathDeposit, "error").Inc()
			return nil, err
		}
		switch outcome {
		case idempotency.Replay:
			var out OperationResult
			if err := json.Unmarshal(replay, &out); err != nil {
				metrics.OperationsTotal.WithLabelValues(pathDeposit, "error").Inc()
				return nil, domain.NewError(domain.CodeStorageError, "corrupt idempotency record")
			}
			metrics.OperationsTotal.WithLabelValues(pathDeposit, "replay").Inc()
			return &out, nil
		case idempotency.InFlight:
			metrics.OperationsTotal.WithLabelValues(pathDeposit, "error").Inc()
			return nil, domain.NewError(domain.CodeDuplicateOperation, "operation already in progress")
		}
	}

	result, err := runWithRetry(ctx, pathDeposit, func(ctx context.Context) (*OperationResult, error) {
		return withTx(ctx, e.store, func(ctx context.Context, tx store.Tx) (*OperationResult, error) {
			return e.depositAttempt(ctx, tx, userID, accountID, amount, description)
		})
	})
	if err != nil {
		metrics.OperationsTotal.WithLabelValues(pathDeposit, "error").Inc()
		return nil, err
	}

	metrics.OperationsTotal.WithLabelValues(pathDeposit, "success").Inc()
	metrics.OperationDuration.WithLabelValues(pathDeposit).Observe(time.Since(start).Seconds())
	obslog.OperationCompleted(e.logger, pathDeposit, result.AccountID, amount, result.Balance)

	if hasKey {
		recordIdempotencyBestEffort(ctx, e.logger, e.store, operationKey, userID, pathDeposit, result)
	}
	return result, nil
}

func (e *Engine) depositAttempt(ctx context.Context, tx store.Tx, userID, accountID string, amount money.Amount, description string) (*OperationResult, error) {
	acc, err := tx.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, wrapStorage(pathDeposit, notFoundAs(domain.CodeAccountNotFound, "account not found", err))
	}
	if err := validateOwnershipAndStatus(acc, userID); err != nil {
		return nil, err
	}

	newBalance := acc.Balance.Add(amount)
	entry := &domain.JournalEntry{
		AccountID:    acc.ID,
		Amount:       amount,
		Kind:         domain.Deposit,
		Status:       domain.EntryCompleted,
		BalanceAfter: newBalance,
		Description:  description,
	}
	if err := tx.InsertJournalEntry(ctx, entry); err != nil {
		return nil, wrapStorage(pathDeposit, err)
	}
	if err := tx.UpdateAccountVersion(ctx, acc.ID, newBalance, acc.Version); err != nil {
		return nil, wrapStorage(pathDeposit, err)
	}

	return &OperationResult{AccountID: acc.ID, EntryID: entry.ID, Balance: newBalance}, nil
}
