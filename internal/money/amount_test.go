package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimalString(t *testing.T) {
	t.Run("parses a plain decimal", func(t *testing.T) {
		a, err := ParseDecimalString("100.00")
		require.NoError(t, err)
		assert.Equal(t, Amount(10000), a)
		assert.Equal(t, "100.00", a.String())
	})

	t.Run("rejects sub-cent precision", func(t *testing.T) {
		_, err := ParseDecimalString("1.999")
		require.Error(t, err)
	})

	t.Run("rejects garbage input", func(t *testing.T) {
		_, err := ParseDecimalString("not-a-number")
		require.Error(t, err)
	})
}

func TestAmount_Arithmetic(t *testing.T) {
	a, err := ParseDecimalString("150.00")
	require.NoError(t, err)
	b, err := ParseDecimalString("50.00")
	require.NoError(t, err)

	assert.Equal(t, "200.00", a.Add(b).String())
	assert.Equal(t, "100.00", a.Sub(b).String())
	assert.Equal(t, "-150.00", a.Neg().String())
	assert.True(t, a.IsPositive())
	assert.False(t, Zero.IsPositive())
	assert.True(t, a.GTE(b))
	assert.True(t, b.LessThan(a))
}

// TestAmount_JSONRoundTrip guards spec P5: a replayed idempotency response
// body must be byte-identical to a fresh one, which requires Amount's JSON
// encoding to be stable and lossless.
func TestAmount_JSONRoundTrip(t *testing.T) {
	original, err := ParseDecimalString("1234.56")
	require.NoError(t, err)

	encoded, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"1234.56"`, string(encoded))

	var decoded Amount
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, original, decoded)
}

func TestFromDecimal_RejectsSubCent(t *testing.T) {
	d, err := ParseDecimalString("10.00")
	require.NoError(t, err)
	_ = d

	_, err = ParseDecimalString("10.005")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sub-cent")
}
