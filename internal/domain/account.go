package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerbank/corebank/internal/money"
)

// AccountType is the type tag from {Checking, Savings, Business}.
type AccountType string

const (
	Checking AccountType = "CHECKING"
	Savings  AccountType = "SAVINGS"
	Business AccountType = "BUSINESS"
)

func (t AccountType) prefix() string {
	switch t {
	case Savings:
		return "SAV"
	case Business:
		return "BUS"
	default:
		return "CHK"
	}
}

// AccountStatus is the status from {Active, Frozen, Closed}. Transitions are
// driven by an external collaborator, never by the engine.
type AccountStatus string

const (
	Active AccountStatus = "ACTIVE"
	Frozen AccountStatus = "FROZEN"
	Closed AccountStatus = "CLOSED"
)

// Account is identified by a stable internal ID and a unique, immutable
// account number. The engine is the only component permitted to mutate
// Balance and Version.
type Account struct {
	ID        string
	Number    string
	UserID    string
	Type      AccountType
	Status    AccountStatus
	Balance   money.Amount
	Currency  string
	Version   int64
	CreatedAt time.Time
}

// GenerateAccountNumber produces {prefix}-{YYYYMMDD}-{6 hex uppercase} per
// spec §4.B, drawing the hex suffix from a cryptographic random source.
func GenerateAccountNumber(t AccountType) (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate account number: %w", err)
	}
	hexPart := strings.ToUpper(hex.EncodeToString(buf))
	return fmt.Sprintf("%s-%s-%s", t.prefix(), time.Now().UTC().Format("20060102"), hexPart), nil
}

// OperationKey is a caller-supplied opaque string, length 1..100.
type OperationKey string

// Valid reports whether the key satisfies the length bound. An empty key is
// valid in the sense of "no key supplied" — callers check for emptiness
// explicitly where optionality matters (deposit/withdraw).
func (k OperationKey) Valid() bool {
	return len(k) <= 100
}
