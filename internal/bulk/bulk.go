// Package bulk implements the CSV ingestion path of spec §4.G: parse a
// tabular instruction file, resolve each row to an account, and invoke the
// engine once per row, isolating per-row failures so one bad row never
// aborts the batch. The teacher has no bulk path of its own; the
// parse -> resolve -> invoke -> isolate shape is grounded on the general
// error-isolation pattern the teacher's HTTP handlers use (catch a service
// error, map it to a response-level failure, never abort the request),
// applied here per CSV row instead of per HTTP request.
package bulk

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/money"
)

// MaxInputSize is the 5 MiB ceiling of spec §4.G.
const MaxInputSize = 5 * 1024 * 1024

const (
	opDeposit  = "DEPOSIT"
	opWithdraw = "WITHDRAW"
)

var headerColumns = []string{"nationalid", "amount", "operation"}

// ResolvedAccount is what a Resolver hands back for a national ID: the
// owning user and their Active Checking account.
type ResolvedAccount struct {
	UserID        string
	AccountID     string
	AccountNumber string
}

// Resolver is the external collaborator spec §4.G calls "resolve the user
// by national ID" — KYC status and account lookup are both outside the
// core's scope (spec §1's "out of scope" list), so bulk only consumes this
// narrow interface rather than owning user/KYC state itself.
type Resolver interface {
	Resolve(ctx context.Context, nationalID string) (*ResolvedAccount, error)
}

// Sentinel resolution failures a Resolver implementation returns; bulk maps
// each to a distinct row-scoped message per spec §4.G step 2.
var (
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrKYCNotVerified   = fmt.Errorf("user KYC not verified")
	ErrNoActiveChecking = fmt.Errorf("user has no active checking account")
)

// RowResult is one row of the batch summary spec §4.G requires.
type RowResult struct {
	Row           int    `json:"row"`
	NationalID    string `json:"national_id"`
	Amount        string `json:"amount"`
	Operation     string `json:"operation"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Balance       string `json:"balance,omitempty"`
}

// Summary is the batch-level output of Process.
type Summary struct {
	Total        int         `json:"total"`
	SuccessCount int         `json:"success_count"`
	FailureCount int         `json:"failure_count"`
	Rows         []RowResult `json:"rows"`
}

// Processor drives the engine once per CSV row.
type Processor struct {
	resolver Resolver
	move     moveFunc
}

// moveFunc is DEPOSIT or WITHDRAW against the engine, returning the
// resulting balance.
type moveFunc func(ctx context.Context, op string, userID, accountID string, amount money.Amount, description, operationKey string) (money.Amount, error)

// New builds a Processor. move is called once per row with the row's
// parsed operation ("DEPOSIT" or "WITHDRAW"); callers typically supply a
// closure over an *engine.Engine that dispatches to Deposit or Withdraw.
func New(resolver Resolver, move moveFunc) *Processor {
	return &Processor{resolver: resolver, move: move}
}

// Process parses data as the CSV format of spec §6/§4.G and invokes the
// engine once per data row, under operation key
// "CSV-{filename}-{row}-{timestamp}". No row's failure aborts the batch.
func (p *Processor) Process(ctx context.Context, filename string, data []byte) (*Summary, error) {
	if len(data) > MaxInputSize {
		return nil, domain.NewError(domain.CodeInvalidAmount, "input exceeds maximum size of 5 MiB")
	}

	lines, err := splitNonBlankLines(data)
	if err != nil {
		return nil, domain.NewError(domain.CodeInvalidAmount, err.Error())
	}
	if len(lines) == 0 {
		return nil, domain.NewError(domain.CodeInvalidAmount, "input contains no header row")
	}
	if err := checkHeader(lines[0]); err != nil {
		return nil, domain.NewError(domain.CodeInvalidAmount, err.Error())
	}
	dataLines := lines[1:]
	if len(dataLines) == 0 {
		return nil, domain.NewError(domain.CodeInvalidAmount, "input contains no data rows")
	}

	batchTimestamp := time.Now().UTC().UnixNano()
	summary := &Summary{Total: len(dataLines)}

	for i, line := range dataLines {
		rowNum := i + 1
		result := p.processRow(ctx, filename, rowNum, batchTimestamp, line)
		summary.Rows = append(summary.Rows, result)
		if result.Success {
			summary.SuccessCount++
		} else {
			summary.FailureCount++
		}
	}

	return summary, nil
}

func (p *Processor) processRow(ctx context.Context, filename string, rowNum int, batchTimestamp int64, line string) RowResult {
	fields := strings.Split(line, ",")
	result := RowResult{Row: rowNum}

	if len(fields) != 3 {
		result.Error = fmt.Sprintf("expected 3 fields, got %d", len(fields))
		return result
	}

	nationalID := strings.TrimSpace(fields[0])
	result.NationalID = nationalID

	amount, err := money.ParseDecimalString(strings.TrimSpace(fields[1]))
	if err != nil {
		result.Error = fmt.Sprintf("invalid amount: %v", err)
		return result
	}
	result.Amount = amount.String()
	if !amount.IsPositive() {
		result.Error = "amount must be positive"
		return result
	}

	operation := strings.ToUpper(strings.TrimSpace(fields[2]))
	result.Operation = operation
	if operation != opDeposit && operation != opWithdraw {
		result.Error = fmt.Sprintf("unknown operation %q, expected DEPOSIT or WITHDRAW", operation)
		return result
	}

	account, err := p.resolver.Resolve(ctx, nationalID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.AccountNumber = account.AccountNumber

	description := fmt.Sprintf("CSV bulk %s row %d of %s", strings.ToLower(operation), rowNum, filename)
	operationKey := fmt.Sprintf("CSV-%s-%d-%d", filename, rowNum, batchTimestamp)

	balance, err := p.move(ctx, operation, account.UserID, account.AccountID, amount, description, operationKey)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Balance = balance.String()
	return result
}

// splitNonBlankLines splits data on newlines, dropping blank lines, per
// spec §6 ("UTF-8 text... subsequent non-blank lines").
func splitNonBlankLines(data []byte) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}

// checkHeader verifies a case- and whitespace-insensitive match of the
// three required column names, in order.
func checkHeader(line string) error {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return fmt.Errorf("header must have exactly 3 columns, got %d", len(fields))
	}
	for i, f := range fields {
		got := strings.ToLower(strings.TrimSpace(f))
		if got != headerColumns[i] {
			return fmt.Errorf("header column %d: expected %q, got %q", i+1, headerColumns[i], got)
		}
	}
	return nil
}
