package domain

import (
	"time"

	"github.com/ledgerbank/corebank/internal/money"
)

// JournalEntryKind distinguishes the four shapes a ledger row can take.
type JournalEntryKind string

const (
	Deposit         JournalEntryKind = "DEPOSIT"
	Withdrawal      JournalEntryKind = "WITHDRAWAL"
	TransferDebit   JournalEntryKind = "TRANSFER_DEBIT"
	TransferCredit  JournalEntryKind = "TRANSFER_CREDIT"
)

// JournalEntryStatus is Completed, Failed, or Reversed. The engine's current
// paths only ever write Completed; Failed/Reversed exist for external
// collaborators and compensating entries, per spec §3.
type JournalEntryStatus string

const (
	EntryCompleted JournalEntryStatus = "COMPLETED"
	EntryFailed    JournalEntryStatus = "FAILED"
	EntryReversed  JournalEntryStatus = "REVERSED"
)

// JournalEntry is the atomic, append-only accounting record (spec §3). Once
// written with status Completed it is never updated or deleted.
type JournalEntry struct {
	ID            string
	AccountID     string
	Amount        money.Amount // signed: positive = credit, negative = debit
	Kind          JournalEntryKind
	Status        JournalEntryStatus
	BalanceAfter  money.Amount
	TransferID    string // present iff Kind is TransferDebit/TransferCredit
	Description   string
	CreatedAt     time.Time
}
