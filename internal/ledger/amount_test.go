package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

func TestParseAmount(t *testing.T) {
	valid := map[string]string{
		"10":     "10",
		" 0.01 ": "0.01",
		"25.50":  "25.5",
		"1e2":    "100",
		"0.010":  "0.01",

		"999999999999999999.99": "999999999999999999.99",
	}
	for raw, want := range valid {
		got, err := ParseAmount(raw)
		require.NoError(t, err, raw)
		assert.True(t, got.Equal(dec(want)), "%q parsed as %s", raw, got)
	}

	rejected := []string{
		"", "abc", "0", "-1", "0.001", "NaN", "12,5",
		"1000000000000000000", "1e1000000", "1e-1000000", "1e2000000000", "-1e2000000000",
	}
	for _, raw := range rejected {
		_, err := ParseAmount(raw)
		assert.ErrorIs(t, err, ErrInvalidAmount, raw)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindOK},
		{ErrInvalidAmount, KindInvalidAmount},
		{ErrInvalidDestination, KindInvalidDestination},
		{fmt.Errorf("wrapped: %w", models.ErrInsufficientFunds), KindInsufficientFunds},
		{models.ErrAccountNotFound, KindAccountNotFound},
		{models.ErrConflict, KindStoreUnavailable},
		{models.ErrStoreUnavailable, KindStoreUnavailable},
		{fmt.Errorf("boom"), KindStoreUnavailable},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, KindOf(c.err), "%v", c.err)
	}
}
