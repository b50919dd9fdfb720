package idempotency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbank/corebank/internal/store/memstore"
)

func TestBegin_ProceedThenReplay(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	res, err := Begin(ctx, s, "key-1", "user-1", "deposit")
	require.NoError(t, err)
	assert.Equal(t, Proceed, res.Outcome)

	require.NoError(t, Record(ctx, s, "key-1", "user-1", "deposit", []byte(`{"balance":"10.00"}`)))

	res, err = Begin(ctx, s, "key-1", "user-1", "deposit")
	require.NoError(t, err)
	assert.Equal(t, Replay, res.Outcome)
	assert.JSONEq(t, `{"balance":"10.00"}`, string(res.ResponseBody))
}

// TestBegin_NoReservationLeftOnFailure covers the case where a keyed
// operation fails after Begin and never calls Record (INSUFFICIENT_FUNDS,
// SELF_TRANSFER, a version-retry exhaustion): Begin writes nothing, so a
// retry with the same key sees Proceed again instead of getting stuck
// behind a permanent InFlight record.
func TestBegin_NoReservationLeftOnFailure(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	res, err := Begin(ctx, s, "key-2", "user-1", "withdraw")
	require.NoError(t, err)
	assert.Equal(t, Proceed, res.Outcome)

	res, err = Begin(ctx, s, "key-2", "user-1", "withdraw")
	require.NoError(t, err)
	assert.Equal(t, Proceed, res.Outcome)
}

func TestBegin_DistinctUsersDoNotCollide(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	res1, err := Begin(ctx, s, "shared-key", "user-a", "deposit")
	require.NoError(t, err)
	assert.Equal(t, Proceed, res1.Outcome)

	res2, err := Begin(ctx, s, "shared-key", "user-b", "deposit")
	require.NoError(t, err)
	assert.Equal(t, Proceed, res2.Outcome)
}
