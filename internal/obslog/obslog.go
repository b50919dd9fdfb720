// Package obslog wraps log/slog with the two structured events spec §6
// requires of the engine: one per completed operation, one critical event
// per reconciliation mismatch. Grounded on ibrahimkeyboad-gopay, the one
// repo in the corpus that logs with log/slog rather than bare log.Printf —
// the teacher's own "log" package is generalized to slog accordingly, since
// the spec requires structured fields, not free text.
package obslog

import (
	"log/slog"

	"github.com/ledgerbank/corebank/internal/money"
)

// OperationCompleted logs one event per completed deposit or withdrawal,
// carrying operation kind, account id, amount, and resulting balance.
// Transfers are logged by TransferCompleted.
func OperationCompleted(logger *slog.Logger, operation string, accountID string, amount money.Amount, resultingBalance money.Amount) {
	logger.Info("operation completed",
		slog.String("operation", operation),
		slog.String("account_id", accountID),
		slog.String("amount", amount.String()),
		slog.String("resulting_balance", resultingBalance.String()),
	)
}

// TransferCompleted logs a completed transfer, naming both legs.
func TransferCompleted(logger *slog.Logger, transferID, sourceID, destinationID string, amount money.Amount) {
	logger.Info("operation completed",
		slog.String("operation", "transfer"),
		slog.String("transfer_id", transferID),
		slog.String("source_account_id", sourceID),
		slog.String("destination_account_id", destinationID),
		slog.String("amount", amount.String()),
	)
}

// ReconciliationMismatch logs a critical event when the ledger-derived
// balance disagrees with the cached balance (spec §4.F, §6).
func ReconciliationMismatch(logger *slog.Logger, accountID string, cached, ledger money.Amount) {
	logger.Error("reconciliation mismatch",
		slog.String("severity", "critical"),
		slog.String("account_id", accountID),
		slog.String("cached_balance", cached.String()),
		slog.String("ledger_balance", ledger.String()),
	)
}
