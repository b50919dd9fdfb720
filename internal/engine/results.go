package engine

import "github.com/ledgerbank/corebank/internal/money"

// OperationResult is returned by Deposit and Withdraw, and is also the shape
// persisted as an idempotency record's response body, so a replayed request
// gets back the exact same bytes a fresh request would (spec P5).
type OperationResult struct {
	AccountID string       `json:"account_id"`
	EntryID   string       `json:"entry_id"`
	Balance   money.Amount `json:"balance"`
}

// TransferResult is returned by Transfer.
type TransferResult struct {
	TransferID            string       `json:"transfer_id"`
	SourceAccountID       string       `json:"source_account_id"`
	DestinationAccountID  string       `json:"destination_account_id"`
	SourceBalance         money.Amount `json:"source_balance"`
	DestinationBalance    money.Amount `json:"destination_balance"`
	CreatedAt             string       `json:"created_at"`
	CompletedAt           string       `json:"completed_at"`
}
