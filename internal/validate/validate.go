// Package validate holds the engine's pure, synchronous checks, split from
// the teacher's inline handler validation (CreateTransferHandler's amount
// and self-transfer checks) into a standalone package per spec §4.C so the
// same checks run both before a transaction opens (cheap rejection) and
// again, for the subset that depends on database state, inside it.
package validate

import (
	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/money"
)

// Amount runs the pre-transaction checks on a caller-supplied amount:
// finite and > 0, at most MaxAmount, and already at 2 decimal places (the
// money.Amount type itself cannot represent sub-cent values, so the only
// remaining checks are sign and bound).
func Amount(amt money.Amount) error {
	if !amt.IsPositive() {
		return domain.NewError(domain.CodeInvalidAmount, "amount must be positive")
	}
	if amt > money.MaxAmount {
		return domain.NewError(domain.CodeInvalidAmount, "amount exceeds maximum")
	}
	return nil
}

// OperationKey checks the caller-supplied key length bound (spec §4.B).
func OperationKey(key string) error {
	if len(key) == 0 || len(key) > 100 {
		return domain.NewError(domain.CodeInvalidAmount, "operation key must be 1..100 characters")
	}
	return nil
}

// Ownership checks that the account is owned by userID.
func Ownership(acc *domain.Account, userID string) error {
	if acc.UserID != userID {
		return domain.NewError(domain.CodeUnauthorizedAccess, "account does not belong to caller")
	}
	return nil
}

// Status checks that the account is Active, producing ACCOUNT_FROZEN or
// ACCOUNT_CLOSED as appropriate.
func Status(acc *domain.Account) error {
	switch acc.Status {
	case domain.Active:
		return nil
	case domain.Frozen:
		return domain.NewError(domain.CodeAccountFrozen, "account is frozen")
	case domain.Closed:
		return domain.NewError(domain.CodeAccountClosed, "account is closed")
	default:
		return domain.NewError(domain.CodeAccountClosed, "account status unknown")
	}
}

// SufficientFunds checks cached_balance >= amount.
func SufficientFunds(acc *domain.Account, amt money.Amount) error {
	if !acc.Balance.GTE(amt) {
		return domain.NewError(domain.CodeInsufficientFunds, "insufficient funds")
	}
	return nil
}

// NotSelfTransfer checks that source and destination differ.
func NotSelfTransfer(sourceID, destinationID string) error {
	if sourceID == destinationID {
		return domain.NewError(domain.CodeSelfTransfer, "cannot transfer to the same account")
	}
	return nil
}
