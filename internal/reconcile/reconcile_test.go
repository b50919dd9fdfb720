package reconcile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/engine"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/store/memstore"
)

func seed(s *memstore.Store, balance money.Amount) domain.Account {
	return *s.SeedAccount(domain.Account{
		ID:       uuid.NewString(),
		Number:   uuid.NewString(),
		UserID:   "user-1",
		Type:     domain.Checking,
		Status:   domain.Active,
		Balance:  balance,
		Currency: "USD",
	})
}

func TestReconcile_AgreesAfterCleanDeposit(t *testing.T) {
	s := memstore.New()
	eng := engine.New(s, nil)
	acc := seed(s, money.Zero)
	ctx := context.Background()

	_, err := eng.Deposit(ctx, "user-1", acc.ID, money.Amount(10000), "test", "")
	require.NoError(t, err)

	r := New(s, nil)
	result, err := r.Reconcile(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, result.Reconciled)
	assert.Equal(t, result.CachedBalance, result.LedgerBalance)
	assert.Equal(t, 1, result.EntryCount)
}

func TestReconcile_UnknownAccount(t *testing.T) {
	s := memstore.New()
	r := New(s, nil)

	_, err := r.Reconcile(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, domain.CodeAccountNotFound, domain.CodeOf(err))
}

func TestReconcile_DetectsMismatch(t *testing.T) {
	s := memstore.New()
	acc := seed(s, money.Amount(50000)) // cached balance diverges: no journal entries back it

	r := New(s, nil)
	result, err := r.Reconcile(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.False(t, result.Reconciled)
	assert.Equal(t, money.Zero, result.LedgerBalance)
	assert.Equal(t, money.Amount(50000), result.CachedBalance)
}
