package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/money"
)

func mustAmount(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.ParseDecimalString(s)
	require.NoError(t, err)
	return a
}

func TestAmount(t *testing.T) {
	t.Run("rejects zero", func(t *testing.T) {
		err := Amount(money.Zero)
		require.Error(t, err)
		assert.Equal(t, domain.CodeInvalidAmount, domain.CodeOf(err))
	})

	t.Run("rejects negative", func(t *testing.T) {
		err := Amount(mustAmount(t, "-1.00"))
		require.Error(t, err)
	})

	t.Run("rejects amount over the cap", func(t *testing.T) {
		err := Amount(money.MaxAmount + 1)
		require.Error(t, err)
	})

	t.Run("accepts a normal positive amount", func(t *testing.T) {
		assert.NoError(t, Amount(mustAmount(t, "100.00")))
	})
}

func TestOperationKey(t *testing.T) {
	assert.Error(t, OperationKey(""))
	assert.NoError(t, OperationKey("a"))
	assert.Error(t, OperationKey(string(make([]byte, 101))))
	assert.NoError(t, OperationKey(string(make([]byte, 100))))
}

func TestOwnership(t *testing.T) {
	acc := &domain.Account{UserID: "user-1"}
	assert.NoError(t, Ownership(acc, "user-1"))

	err := Ownership(acc, "user-2")
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthorizedAccess, domain.CodeOf(err))
}

func TestStatus(t *testing.T) {
	cases := []struct {
		status domain.AccountStatus
		code   domain.Code
	}{
		{domain.Active, ""},
		{domain.Frozen, domain.CodeAccountFrozen},
		{domain.Closed, domain.CodeAccountClosed},
	}
	for _, tc := range cases {
		err := Status(&domain.Account{Status: tc.status})
		if tc.code == "" {
			assert.NoError(t, err)
			continue
		}
		require.Error(t, err)
		assert.Equal(t, tc.code, domain.CodeOf(err))
	}
}

func TestSufficientFunds(t *testing.T) {
	acc := &domain.Account{Balance: mustAmount(t, "50.00")}
	assert.NoError(t, SufficientFunds(acc, mustAmount(t, "50.00")))

	err := SufficientFunds(acc, mustAmount(t, "50.01"))
	require.Error(t, err)
	assert.Equal(t, domain.CodeInsufficientFunds, domain.CodeOf(err))
}

func TestNotSelfTransfer(t *testing.T) {
	assert.NoError(t, NotSelfTransfer("a", "b"))

	err := NotSelfTransfer("a", "a")
	require.Error(t, err)
	assert.Equal(t, domain.CodeSelfTransfer, domain.CodeOf(err))
}
