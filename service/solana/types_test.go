package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{"1", 9, 1_000_000_000, false},
		{"0.5", 9, 500_000_000, false},
		{" 2.25 ", 6, 2_250_000, false},
		{"0.0000000019", 9, 1, false}, // truncated, not rounded
		{"0", 9, 0, false},
		{"", 9, 0, true},
		{"-1", 9, 0, true},
		{"abc", 9, 0, true},
		{"1/2", 9, 0, true},
		{"0x10", 9, 0, true},
		{"0b11", 9, 0, true},
		{"0o17", 9, 0, true},
		{"1_000", 9, 0, true},
		{"1e3", 9, 0, true},
		{"+1", 9, 0, true},
		{"1.2.3", 9, 0, true},
		{"18446744074", 9, 0, true}, // overflows u64 lamports
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in, tt.decimals)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.BaseUnits)
			assert.Equal(t, tt.decimals, got.Decimals)
		})
	}
}

func TestAmountFromDisplayUnits(t *testing.T) {
	a, err := AmountFromDisplayUnits(1_000_000, 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000_000), a.BaseUnits)

	_, err = AmountFromDisplayUnits(1<<62, 9)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "0.5", Amount{BaseUnits: 500_000_000, Decimals: 9}.String())
	assert.Equal(t, "1", Amount{BaseUnits: 1_000_000, Decimals: 6}.String())
	assert.Equal(t, "0.000001", Amount{BaseUnits: 1, Decimals: 6}.String())
	assert.Equal(t, "42", Amount{BaseUnits: 42, Decimals: 0}.String())
}

func TestParseAddress(t *testing.T) {
	pk, err := ParseAddress("So11111111111111111111111111111111111111112")
	require.NoError(t, err)
	assert.Equal(t, "So11111111111111111111111111111111111111112", pk.String())

	_, err = ParseAddress("")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseAddress("not-base58!")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
