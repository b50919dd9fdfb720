package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/idempotency"
	"github.com/ledgerbank/corebank/internal/metrics"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/obslog"
	"github.com/ledgerbank/corebank/internal/store"
	"github.com/ledgerbank/corebank/internal/validate"
)

const pathTransfer = "transfer"

// Transfer implements spec §4.E's Transfer operation. Unlike Deposit and
// Withdraw, the operation key is mandatory: a transfer with no key is
// rejected right after the amount check, before the idempotency lookup or
// any transaction.
func (e *Engine) Transfer(ctx context.Context, userID, sourceNumber, destinationNumber string, amount money.Amount, description, operationKey string) (*TransferResult, error) {
	start := time.Now()
	if err := validateAmount(amount); err != nil {
		metrics.OperationsTotal.WithLabelValues(pathTransfer, "error").Inc()
		return nil, err
	}
	if err := validate.OperationKey(operationKey); err != nil {
		metrics.OperationsTotal.WithLabelValues(pathTransfer, "error").Inc()
		return nil, err
	}

	replay, outcome, err := beginIdempotency(ctx, e.store, operationKey, userID, pathTransfer)
	if err != nil {
		metrics.OperationsTotal.WithLabelValues(pathTransfer, "error").Inc()
		return nil, err
	}
	switch outcome {
	case idempotency.Replay:
		var out TransferResult
		if err := json.Unmarshal(replay, &out); err != nil {
			metrics.OperationsTotal.WithLabelValues(pathTransfer, "error").Inc()
			return nil, domain.NewError(domain.CodeStorageError, "corrupt idempotency record")
		}
		metrics.OperationsTotal.WithLabelValues(pathTransfer, "replay").Inc()
		return &out, nil
	case idempotency.InFlight:
		metrics.OperationsTotal.WithLabelValues(pathTransfer, "error").Inc()
		return nil, domain.NewError(domain.CodeDuplicateOperation, "operation already in progress")
	}

	result, err := runWithRetry(ctx, pathTransfer, func(ctx context.Context) (*TransferResult, error) {
		return withTx(ctx, e.store, func(ctx context.Context, tx store.Tx) (*TransferResult, error) {
			return e.transferAttempt(ctx, tx, userID, sourceNumber, destinationNumber, amount, description, operationKey)
		})
	})
	if err != nil {
		metrics.OperationsTotal.WithLabelValues(pathTransfer, "error").Inc()
		return nil, err
	}

	metrics.OperationsTotal.WithLabelValues(pathTransfer, "success").Inc()
	metrics.OperationDuration.WithLabelValues(pathTransfer).Observe(time.Since(start).Seconds())
	obslog.TransferCompleted(e.logger, result.TransferID, result.SourceAccountID, result.DestinationAccountID, amount)

	recordIdempotencyBestEffort(ctx, e.logger, e.store, operationKey, userID, pathTransfer, result)
	return result, nil
}

// transferAttempt runs the post-read validation in the exact order of
// precedence spec §4.E demands (first failure wins): both accounts exist,
// source != destination, caller owns source, both accounts active, source
// has sufficient funds.
func (e *Engine) transferAttempt(ctx context.Context, tx store.Tx, userID, sourceNumber, destinationNumber string, amount money.Amount, description, operationKey string) (*TransferResult, error) {
	source, err := tx.FindAccountByNumber(ctx, sourceNumber)
	if err != nil {
		return nil, wrapStorage(pathTransfer, notFoundAs(domain.CodeAccountNotFound, "source account not found", err))
	}
	destination, err := tx.FindAccountByNumber(ctx, destinationNumber)
	if err != nil {
		return nil, wrapStorage(pathTransfer, notFoundAs(domain.CodeAccountNotFound, "destination account not found", err))
	}
	if err := validate.NotSelfTransfer(source.ID, destination.ID); err != nil {
		return nil, err
	}
	if err := validate.Ownership(source, userID); err != nil {
		return nil, err
	}
	if err := validate.Status(source); err != nil {
		return nil, err
	}
	if err := validate.Status(destination); err != nil {
		return nil, err
	}
	if err := validate.SufficientFunds(source, amount); err != nil {
		return nil, err
	}

	// Defends against the race spec §4.D describes: two concurrent
	// duplicates both observing Proceed from the idempotency layer. The
	// store's unique constraint on operation key is the backstop below;
	// this direct lookup catches the common case without waiting for it.
	if _, err := tx.FindTransferByOperationKey(ctx, operationKey); err == nil {
		return nil, domain.NewError(domain.CodeDuplicateOperation, "a transfer with this operation key already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, wrapStorage(pathTransfer, err)
	}

	now := time.Now().UTC()
	newSourceBalance := source.Balance.Sub(amount)
	newDestinationBalance := destination.Balance.Add(amount)

	transfer := &domain.Transfer{
		SourceID:      source.ID,
		DestinationID: destination.ID,
		Amount:        amount,
		Currency:      source.Currency,
		Status:        domain.TransferCompleted,
		Description:   description,
		OperationKey:  operationKey,
		CreatedAt:     now,
		CompletedAt:   now,
	}
	if err := tx.InsertTransfer(ctx, transfer); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, domain.NewError(domain.CodeDuplicateOperation, "a transfer with this operation key already exists")
		}
		return nil, wrapStorage(pathTransfer, err)
	}

	debitEntry := &domain.JournalEntry{
		AccountID:    source.ID,
		Amount:       amount.Neg(),
		Kind:         domain.TransferDebit,
		Status:       domain.EntryCompleted,
		BalanceAfter: newSourceBalance,
		TransferID:   transfer.ID,
		Description:  fmt.Sprintf("Transfer to %s", destination.Number),
	}
	if err := tx.InsertJournalEntry(ctx, debitEntry); err != nil {
		return nil, wrapStorage(pathTransfer, err)
	}

	creditEntry := &domain.JournalEntry{
		AccountID:    destination.ID,
		Amount:       amount,
		Kind:         domain.TransferCredit,
		Status:       domain.EntryCompleted,
		BalanceAfter: newDestinationBalance,
		TransferID:   transfer.ID,
		Description:  fmt.Sprintf("Transfer from %s", source.Number),
	}
	if err := tx.InsertJournalEntry(ctx, creditEntry); err != nil {
		return nil, wrapStorage(pathTransfer, err)
	}

	// Source first, destination second: a consistent per-transaction order
	// that, combined with OCC never holding a lock across accounts, rules
	// out the classical two-account deadlock (spec §5).
	if err := tx.UpdateAccountVersion(ctx, source.ID, newSourceBalance, source.Version); err != nil {
		return nil, wrapStorage(pathTransfer, err)
	}
	if err := tx.UpdateAccountVersion(ctx, destination.ID, newDestinationBalance, destination.Version); err != nil {
		return nil, wrapStorage(pathTransfer, err)
	}

	return &TransferResult{
		TransferID:           transfer.ID,
		SourceAccountID:      source.ID,
		DestinationAccountID: destination.ID,
		SourceBalance:        newSourceBalance,
		DestinationBalance:   newDestinationBalance,
		CreatedAt:            now.Format(time.RFC3339Nano),
		CompletedAt:          now.Format(time.RFC3339Nano),
	}, nil
}
