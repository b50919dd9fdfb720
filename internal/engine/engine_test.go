package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/store/memstore"
)

func amt(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.ParseDecimalString(s)
	require.NoError(t, err)
	return a
}

func newTestEngine() (*Engine, *memstore.Store) {
	s := memstore.New()
	return New(s, nil), s
}

func seedAccount(s *memstore.Store, userID string, balance money.Amount) domain.Account {
	acc := domain.Account{
		ID:       uuid.NewString(),
		Number:   uuid.NewString(),
		UserID:   userID,
		Type:     domain.Checking,
		Status:   domain.Active,
		Balance:  balance,
		Currency: "USD",
	}
	return *s.SeedAccount(acc)
}

// TestDeposit_Simple covers end-to-end scenario 1: a single deposit against
// a zero-balance account.
func TestDeposit_Simple(t *testing.T) {
	eng, s := newTestEngine()
	acc := seedAccount(s, "user-1", money.Zero)

	result, err := eng.Deposit(context.Background(), "user-1", acc.ID, amt(t, "100.00"), "test", "")
	require.NoError(t, err)
	assert.Equal(t, "100.00", result.Balance.String())

	got, err := getAccount(s, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", got.Balance.String())
}

// TestWithdraw_InsufficientFunds covers end-to-end scenario 2.
func TestWithdraw_InsufficientFunds(t *testing.T) {
	eng, s := newTestEngine()
	acc := seedAccount(s, "user-1", amt(t, "50.00"))

	_, err := eng.Withdraw(context.Background(), "user-1", acc.ID, amt(t, "100.00"), "", "")
	require.Error(t, err)
	assert.Equal(t, domain.CodeInsufficientFunds, domain.CodeOf(err))

	got, err := getAccount(s, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", got.Balance.String())
}

// TestTransfer_Atomicity covers end-to-end scenario 3: both legs move
// together, and the books balance.
func TestTransfer_Atomicity(t *testing.T) {
	eng, s := newTestEngine()
	a := seedAccount(s, "user-a", amt(t, "500.00"))
	b := seedAccount(s, "user-b", amt(t, "200.00"))

	result, err := eng.Transfer(context.Background(), "user-a", a.Number, b.Number, amt(t, "150.00"), "", "k1")
	require.NoError(t, err)
	assert.Equal(t, "350.00", result.SourceBalance.String())
	assert.Equal(t, "350.00", result.DestinationBalance.String())

	gotA, _ := getAccount(s, a.ID)
	gotB, _ := getAccount(s, b.ID)
	total := gotA.Balance.Add(gotB.Balance)
	assert.Equal(t, "700.00", total.String())
}

// TestTransfer_Idempotency covers end-to-end scenario 4: a repeated
// operation key returns the same result and moves money exactly once.
func TestTransfer_Idempotency(t *testing.T) {
	eng, s := newTestEngine()
	a := seedAccount(s, "user-a", amt(t, "500.00"))
	b := seedAccount(s, "user-b", amt(t, "200.00"))

	first, err := eng.Transfer(context.Background(), "user-a", a.Number, b.Number, amt(t, "200.00"), "", "k2")
	require.NoError(t, err)

	second, err := eng.Transfer(context.Background(), "user-a", a.Number, b.Number, amt(t, "200.00"), "", "k2")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	gotA, _ := getAccount(s, a.ID)
	assert.Equal(t, "300.00", gotA.Balance.String())
}

// TestReconcile_AfterMixedOps covers end-to-end scenario 5.
func TestReconcile_AfterMixedOps(t *testing.T) {
	eng, s := newTestEngine()
	acc := seedAccount(s, "user-1", money.Zero)
	ctx := context.Background()

	_, err := eng.Deposit(ctx, "user-1", acc.ID, amt(t, "1000.00"), "", "")
	require.NoError(t, err)
	_, err = eng.Withdraw(ctx, "user-1", acc.ID, amt(t, "250.00"), "", "")
	require.NoError(t, err)
	_, err = eng.Deposit(ctx, "user-1", acc.ID, amt(t, "75.50"), "", "")
	require.NoError(t, err)

	got, err := getAccount(s, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "825.50", got.Balance.String())

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	sum, count, err := tx.SumCompletedEntries(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "825.50", sum.String())
	assert.Equal(t, 3, count)
}

// TestTransfer_ConcurrentSharedSource covers end-to-end scenario 6: two
// concurrent transfers sharing a source account must both succeed, possibly
// after OCC retries, and the three-way sum must be conserved (P2, P7).
func TestTransfer_ConcurrentSharedSource(t *testing.T) {
	eng, s := newTestEngine()
	a := seedAccount(s, "user-a", amt(t, "1000.00"))
	b := seedAccount(s, "user-b", money.Zero)
	c := seedAccount(s, "user-c", money.Zero)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = eng.Transfer(context.Background(), "user-a", a.Number, b.Number, amt(t, "400.00"), "", "kx")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = eng.Transfer(context.Background(), "user-a", a.Number, c.Number, amt(t, "400.00"), "", "ky")
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	gotA, _ := getAccount(s, a.ID)
	gotB, _ := getAccount(s, b.ID)
	gotC, _ := getAccount(s, c.ID)
	assert.Equal(t, "200.00", gotA.Balance.String())
	assert.Equal(t, "400.00", gotB.Balance.String())
	assert.Equal(t, "400.00", gotC.Balance.String())
	assert.Equal(t, money.Amount(1000_00), gotA.Balance.Add(gotB.Balance).Add(gotC.Balance))
}

// TestDeposit_ConcurrentIsolation covers P7: N parallel deposits of equal
// amount must all land, regardless of retry rounds.
func TestDeposit_ConcurrentIsolation(t *testing.T) {
	eng, s := newTestEngine()
	acc := seedAccount(s, "user-1", amt(t, "10.00"))

	const n = 6
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, err := eng.Deposit(context.Background(), "user-1", acc.ID, amt(t, "5.00"), "", fmt.Sprintf("dep-%d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := getAccount(s, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "110.00", got.Balance.String())

	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback(context.Background())
	_, count, err := tx.SumCompletedEntries(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, n, count) // SeedAccount bypasses the journal entirely.
}

// TestAmount_BoundaryRejections covers the boundary amounts spec §8 lists
// that survive parsing (zero, negative, over max) and must be rejected by
// the engine itself with INVALID_AMOUNT. Sub-cent rejection happens one
// layer up, in money.ParseDecimalString — see internal/money's own test.
func TestAmount_BoundaryRejections(t *testing.T) {
	eng, s := newTestEngine()
	acc := seedAccount(s, "user-1", amt(t, "10.00"))
	ctx := context.Background()

	cases := []struct {
		name   string
		amount string
	}{
		{"zero", "0.00"},
		{"negative", "-5.00"},
		{"over max", "1000000001.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := money.ParseDecimalString(tc.amount)
			require.NoError(t, err)
			_, err = eng.Deposit(ctx, "user-1", acc.ID, a, "", "")
			require.Error(t, err)
			assert.Equal(t, domain.CodeInvalidAmount, domain.CodeOf(err))
		})
	}
}

func TestTransfer_SelfTransferRejected(t *testing.T) {
	eng, s := newTestEngine()
	acc := seedAccount(s, "user-1", amt(t, "100.00"))

	_, err := eng.Transfer(context.Background(), "user-1", acc.Number, acc.Number, amt(t, "10.00"), "", "k")
	require.Error(t, err)
	assert.Equal(t, domain.CodeSelfTransfer, domain.CodeOf(err))
}

func TestTransfer_UnauthorizedSource(t *testing.T) {
	eng, s := newTestEngine()
	a := seedAccount(s, "user-a", amt(t, "100.00"))
	b := seedAccount(s, "user-b", money.Zero)

	_, err := eng.Transfer(context.Background(), "someone-else", a.Number, b.Number, amt(t, "10.00"), "", "k")
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthorizedAccess, domain.CodeOf(err))
}

// getAccount is a small test helper over the store's transactional
// interface, since memstore has no standalone read path outside a Tx.
func getAccount(s *memstore.Store, id string) (*domain.Account, error) {
	tx, err := s.Begin(context.Background())
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(context.Background())
	return tx.FindAccountByID(context.Background(), id)
}
