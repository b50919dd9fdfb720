package domain

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error code that survives the engine's
// process boundary (spec §7, §9 — "the tag must survive across process
// boundaries").
type Code string

const (
	CodeInvalidAmount       Code = "INVALID_AMOUNT"
	CodeAccountNotFound     Code = "ACCOUNT_NOT_FOUND"
	CodeUnauthorizedAccess  Code = "UNAUTHORIZED_ACCESS"
	CodeAccountFrozen       Code = "ACCOUNT_FROZEN"
	CodeAccountClosed       Code = "ACCOUNT_CLOSED"
	CodeSelfTransfer        Code = "SELF_TRANSFER"
	CodeInsufficientFunds   Code = "INSUFFICIENT_FUNDS"
	CodeDuplicateOperation  Code = "DUPLICATE_OPERATION"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeStorageError        Code = "STORAGE_ERROR"
)

// Error is the tagged error type returned by every engine operation. No
// internal detail (stack traces, SQL, row versions) ever reaches Message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a tagged error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the stable code from err, or "" if err is not a *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ErrVersionConflict is returned by the store when an update-with-version
// check loses the race against a concurrent writer (spec §4.A). It never
// crosses the engine boundary directly — the engine retries on it and only
// surfaces CodeConcurrencyConflict once the retry budget is exhausted.
var ErrVersionConflict = errors.New("version conflict")

// ErrNotFound is returned by store lookups (account, transfer, idempotency
// record) that find no row. The engine translates it into the appropriate
// domain error code for the caller.
var ErrNotFound = errors.New("not found")

// ErrDuplicateKey is returned by Tx.InsertTransfer when the unique
// constraint on a transfer's operation key is violated — the race described
// in spec §4.D where two concurrent duplicate requests both see Proceed from
// the idempotency layer.
var ErrDuplicateKey = errors.New("duplicate operation key")
