package analysis

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyInput is returned when descriptive statistics are requested for an empty series.
var ErrEmptyInput = errors.New("statistics require at least one value")

// Stats is a descriptive summary of a numeric series.
type Stats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"standardDeviation"`
	Count  int     `json:"count"`
}

// ComputeStats summarizes values. The median is the upper-middle element of the
// sorted series (no averaging for even lengths) and StdDev is the population
// standard deviation.
func ComputeStats(values []float64) (Stats, error) {
	if len(values) == 0 {
		return Stats{}, ErrEmptyInput
	}
	sorted := sortedCopy(values)
	mean, std := stat.PopMeanStdDev(values, nil)
	return Stats{
		Mean:   mean,
		Median: sorted[len(sorted)/2],
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		StdDev: std,
		Count:  len(values),
	}, nil
}

// Quartiles returns the positional first and third quartiles: the sorted
// elements at floor(n*0.25) and floor(n*0.75). No interpolation is applied.
func Quartiles(values []float64) (q1, q3 float64, err error) {
	if len(values) == 0 {
		return 0, 0, ErrEmptyInput
	}
	sorted := sortedCopy(values)
	n := float64(len(sorted))
	return sorted[int(n*0.25)], sorted[int(n*0.75)], nil
}

func sortedCopy(values []float64) []float64 {
	cp := make([]float64, len(values))
	copy(cp, values)
	sort.Float64s(cp)
	return cp
}
