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
	"github.com/ledgerbank/corebank/internal/validate"
)

const pathWithdraw = "withdraw"

// Withdraw implements spec §4.E's Withdraw operation: identical framing to
// Deposit, with the added sufficient-funds check and a negative journal
// amount.
func (e *Engine) Withdraw(ctx context.Context, userID, accountID string, amount money.Amount, description, operationKey string) (*OperationResult, error) {
	start := time.Now()
	if err := validateAmount(amount); err != nil {
		metrics.OperationsTotal.WithLabelValues(pathWithdraw, "error").Inc()
		return nil, err
	}
	if description == "" {
		description = "Cash withdrawal"
	}

	hasKey := operationKey != ""
	if hasKey {
		replay, outcome, err := beginIdempotency(ctx, e.store, operationKey, userID, pathWithdraw)
		if err != nil {
			metrics.OperationsTotal.WithLabelValues(pathWithdraw, "error").Inc()
			return nil, err
		}
		switch outcome {
		case idempotency.Replay:
			var out OperationResult
			if err := json.Unmarshal(replay, &out); err != nil {
				metrics.OperationsTotal.WithLabelValues(pathWithdraw, "error").Inc()
				return nil, domain.NewError(domain.CodeStorageError, "corrupt idempotency record")
			}
			metrics.OperationsTotal.WithLabelValues(pathWithdraw, "replay").Inc()
			return &out, nil
		case idempotency.InFlight:
			metrics.OperationsTotal.WithLabelValues(pathWithdraw, "error").Inc()
			return nil, domain.NewError(domain.CodeDuplicateOperation, "operation already in progress")
		}
	}

	result, err := runWithRetry(ctx, pathWithdraw, func(ctx context.Context) (*OperationResult, error) {
		return withTx(ctx, e.store, func(ctx context.Context, tx store.Tx) (*OperationResult, error) {
			return e.withdrawAttempt(ctx, tx, userID, accountID, amount, description)
		})
	})
	if err != nil {
		metrics.OperationsTotal.WithLabelValues(pathWithdraw, "error").Inc()
		return nil, err
	}

	metrics.OperationsTotal.WithLabelValues(pathWithdraw, "success").Inc()
	metrics.OperationDuration.WithLabelValues(pathWithdraw).Observe(time.Since(start).Seconds())
	obslog.OperationCompleted(e.logger, pathWithdraw, result.AccountID, amount, result.Balance)

	if hasKey {
		recordIdempotencyBestEffort(ctx, e.logger, e.store, operationKey, userID, pathWithdraw, result)
	}
	return result, nil
}

func (e *Engine) withdrawAttempt(ctx context.Context, tx store.Tx, userID, accountID string, amount money.Amount, description string) (*OperationResult, error) {
	acc, err := tx.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, wrapStorage(pathWithdraw, notFoundAs(domain.CodeAccountNotFound, "account not found", err))
	}
	if err := validateOwnershipAndStatus(acc, userID); err != nil {
		return nil, err
	}
	if err := validate.SufficientFunds(acc, amount); err != nil {
		return nil, err
	}

	newBalance := acc.Balance.Sub(amount)
	entry := &domain.JournalEntry{
		AccountID:    acc.ID,
		Amount:       amount.Neg(),
		Kind:         domain.Withdrawal,
		Status:       domain.EntryCompleted,
		BalanceAfter: newBalance,
		Description:  description,
	}
	if err := tx.InsertJournalEntry(ctx, entry); err != nil {
		return nil, wrapStorage(pathWithdraw, err)
	}
	if err := tx.UpdateAccountVersion(ctx, acc.ID, newBalance, acc.Version); err != nil {
		return nil, wrapStorage(pathWithdraw, err)
	}

	return &OperationResult{AccountID: acc.ID, EntryID: entry.ID, Balance: newBalance}, nil
}
