package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string // base units, decimal
		valid bool
	}{
		{"whole", "2", "2000000000000000000", true},
		{"fractional", "1.5", "1500000000000000000", true},
		{"zero", "0", "0", true},
		{"smallest unit", "0.000000000000000001", "1", true},
		{"max fractional digits", "0.123456789012345678", "123456789012345678", true},
		{"large", "123456789.123456789123456789", "123456789123456789123456789", true},
		{"trailing zeros", "1.500", "1500000000000000000", true},
		{"empty", "", "", false},
		{"garbage", "abc", "", false},
		{"negative", "-1", "", false},
		{"too many fractional digits", "0.1234567890123456789", "", false},
		{"two dots", "1.2.3", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if !tt.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			want, ok := new(big.Int).SetString(tt.want, 10)
			require.True(t, ok)
			assert.Zero(t, got.Cmp(want), "got %s, want %s", got, want)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	wei := func(s string) *big.Int {
		v, ok := new(big.Int).SetString(s, 10)
		require.True(t, ok)
		return v
	}

	assert.Equal(t, "1.5", FormatAmount(wei("1500000000000000000")))
	assert.Equal(t, "0.000000000000000001", FormatAmount(wei("1")))
	assert.Equal(t, "0", FormatAmount(wei("0")))
	assert.Equal(t, "0", FormatAmount(nil))
}

func TestAmountRoundTrip(t *testing.T) {
	for _, in := range []string{"1.5", "0.000000000000000001", "42", "0.1", "999999999.999999999999999999"} {
		base, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, in, FormatAmount(base), "round trip of %s", in)
	}
}
