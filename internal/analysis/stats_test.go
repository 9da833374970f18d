package analysis

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   Stats
	}{
		{
			name:   "single value",
			values: []float64{5},
			want:   Stats{Mean: 5, Median: 5, Min: 5, Max: 5, StdDev: 0, Count: 1},
		},
		{
			name:   "even length takes upper middle",
			values: []float64{4, 1, 3, 2},
			want:   Stats{Mean: 2.5, Median: 3, Min: 1, Max: 4, StdDev: 1.118033988749895, Count: 4},
		},
		{
			name:   "population standard deviation",
			values: []float64{2, 4, 4, 4, 5, 5, 7, 9},
			want:   Stats{Mean: 5, Median: 5, Min: 2, Max: 9, StdDev: 2, Count: 8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeStats(tt.values)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Mean, got.Mean, 1e-9)
			assert.Equal(t, tt.want.Median, got.Median)
			assert.Equal(t, tt.want.Min, got.Min)
			assert.Equal(t, tt.want.Max, got.Max)
			assert.InDelta(t, tt.want.StdDev, got.StdDev, 1e-9)
			assert.Equal(t, tt.want.Count, got.Count)
		})
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	_, err := ComputeStats(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestComputeStatsDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_, err := ComputeStats(values)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestComputeStatsMedianWithinRange(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		values := make([]float64, 1+r.Intn(40))
		for j := range values {
			values[j] = r.NormFloat64() * 100
		}
		st, err := ComputeStats(values)
		require.NoError(t, err)
		assert.LessOrEqual(t, st.Min, st.Median)
		assert.LessOrEqual(t, st.Median, st.Max)
		assert.Equal(t, len(values), st.Count)
	}
}

func TestQuartilesPositional(t *testing.T) {
	q1, q3, err := Quartiles([]float64{40, -1, 2, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, q1)
	assert.Equal(t, 2.0, q3)

	_, _, err = Quartiles(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
