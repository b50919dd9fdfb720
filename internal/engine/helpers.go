package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/idempotency"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/store"
	"github.com/ledgerbank/corebank/internal/validate"
)

func validateAmount(amount money.Amount) error {
	return validate.Amount(amount)
}

func validateOwnershipAndStatus(acc *domain.Account, userID string) error {
	if err := validate.Ownership(acc, userID); err != nil {
		return err
	}
	return validate.Status(acc)
}

// beginIdempotency checks the operation key's 1..100 length bound and then
// consults the idempotency layer before the retry loop opens, per spec §4.E
// step 2.
func beginIdempotency(ctx context.Context, s store.Store, operationKey, userID, path string) (json.RawMessage, idempotency.Outcome, error) {
	if err := validate.OperationKey(operationKey); err != nil {
		return nil, 0, err
	}
	res, err := idempotency.Begin(ctx, s, operationKey, userID, path)
	if err != nil {
		return nil, 0, domain.NewError(domain.CodeStorageError, "idempotency check failed")
	}
	return res.ResponseBody, res.Outcome, nil
}

// recordIdempotencyBestEffort persists the completed result under
// operationKey. Per spec §4.E step 5, a failure here must not fail the
// already-committed operation — it only weakens replay semantics for this
// key, so it is logged and swallowed.
func recordIdempotencyBestEffort(ctx context.Context, logger *slog.Logger, s store.Store, operationKey, userID, path string, result any) {
	body, err := json.Marshal(result)
	if err != nil {
		logger.Warn("idempotency record: marshal failed", slog.String("operation_key", operationKey), slog.String("error", err.Error()))
		return
	}
	if err := idempotency.Record(ctx, s, operationKey, userID, path, body); err != nil {
		logger.Warn("idempotency record failed", slog.String("operation_key", operationKey), slog.String("error", err.Error()))
	}
}
