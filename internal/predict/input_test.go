package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInput(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind Kind
		wantLen  int
	}{
		{"bare array", `[{"receipt_lng":35.7,"hour":9},{"hour":10}]`, KindRecords, 2},
		{"envelope", ` {"records":[{"distance_km":4.2}]}`, KindEnvelope, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInput([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, in.Kind)
			assert.Len(t, in.Features, tt.wantLen)
		})
	}

	in, err := DecodeInput([]byte(`{"records":[{"distance_km":4.2,"city_encoded":3}]}`))
	require.NoError(t, err)
	assert.Equal(t, 4.2, in.Features[0].DistanceKM)
	assert.Equal(t, 3, in.Features[0].CityEncoded)
	assert.Equal(t, "envelope", in.Kind.String())
}

func TestDecodeInputErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", "  "},
		{"empty array", "[]"},
		{"envelope without records", `{"rows":[]}`},
		{"scalar", `42`},
		{"bad json", `[{"hour":}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInput([]byte(tt.body))
			assert.Error(t, err)
		})
	}
	_, err := DecodeInput([]byte(`{"records":[]}`))
	assert.ErrorIs(t, err, ErrEmptyInput)
}
