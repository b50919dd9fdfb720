package bulk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbank/corebank/internal/money"
)

type fakeResolver struct {
	accounts map[string]ResolvedAccount
}

func (f *fakeResolver) Resolve(ctx context.Context, nationalID string) (*ResolvedAccount, error) {
	acc, ok := f.accounts[nationalID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &acc, nil
}

func newFakeMove(balances map[string]money.Amount) moveFunc {
	return func(ctx context.Context, op string, userID, accountID string, amount money.Amount, description, operationKey string) (money.Amount, error) {
		bal := balances[accountID]
		if op == opWithdraw {
			bal = bal.Sub(amount)
		} else {
			bal = bal.Add(amount)
		}
		balances[accountID] = bal
		return bal, nil
	}
}

func TestProcess_MixedSuccessAndFailure(t *testing.T) {
	resolver := &fakeResolver{accounts: map[string]ResolvedAccount{
		"111": {UserID: "u1", AccountID: "acc-1", AccountNumber: "CHK-1"},
	}}
	balances := map[string]money.Amount{"acc-1": money.Zero}
	p := New(resolver, newFakeMove(balances))

	data := []byte("nationalid,amount,operation\n111,100.00,DEPOSIT\n999,50.00,DEPOSIT\n111,abc,WITHDRAW\n")

	summary, err := p.Process(context.Background(), "batch.csv", data)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 2, summary.FailureCount)

	assert.True(t, summary.Rows[0].Success)
	assert.Equal(t, "100.00", summary.Rows[0].Balance)
	assert.False(t, summary.Rows[1].Success)
	assert.Contains(t, summary.Rows[1].Error, "user not found")
	assert.False(t, summary.Rows[2].Success)
}

func TestProcess_RejectsBadHeader(t *testing.T) {
	p := New(&fakeResolver{}, newFakeMove(map[string]money.Amount{}))
	_, err := p.Process(context.Background(), "batch.csv", []byte("foo,bar,baz\n111,1.00,DEPOSIT\n"))
	require.Error(t, err)
}

func TestProcess_RejectsOversizedInput(t *testing.T) {
	p := New(&fakeResolver{}, newFakeMove(map[string]money.Amount{}))
	big := make([]byte, MaxInputSize+1)
	_, err := p.Process(context.Background(), "batch.csv", big)
	require.Error(t, err)
}

func TestProcess_RejectsEmptyDataSection(t *testing.T) {
	p := New(&fakeResolver{}, newFakeMove(map[string]money.Amount{}))
	_, err := p.Process(context.Background(), "batch.csv", []byte("nationalid,amount,operation\n"))
	require.Error(t, err)
}
