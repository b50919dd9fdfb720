package domain

import (
	"time"

	"github.com/ledgerbank/corebank/internal/money"
)

// TransferStatus mirrors the state machine in spec §4.E: Pending is
// ephemeral within a single attempt and no committed row ever bears it in
// this implementation — it exists only as a compile-time constant should a
// future two-phase flow need it.
type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferCompleted TransferStatus = "COMPLETED"
	TransferFailed    TransferStatus = "FAILED"
)

// Transfer identifies the paired legs of a money movement between two
// accounts. OperationKey is unique across all transfers.
type Transfer struct {
	ID            string
	SourceID      string
	DestinationID string
	Amount        money.Amount // unsigned
	Currency      string
	Status        TransferStatus
	Description   string
	OperationKey  string
	FailureReason string
	CreatedAt     time.Time
	CompletedAt   time.Time
}
