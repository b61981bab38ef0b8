// Package formulas holds the numeric helpers shared by scoring and technicals.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// PopStdDev calculates the population standard deviation (divisor n, not n-1)
func PopStdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	_, variance := stat.PopMeanVariance(data, nil)
	return math.Sqrt(variance)
}

// Diff returns the first differences: out[i] = data[i+1] - data[i]
func Diff(data []float64) []float64 {
	if len(data) < 2 {
		return []float64{}
	}
	out := make([]float64, len(data)-1)
	for i := 1; i < len(data); i++ {
		out[i-1] = data[i] - data[i-1]
	}
	return out
}

// RelativeChange returns (last - first) / first, or 0 when first is zero
func RelativeChange(first, last float64) float64 {
	if first == 0 {
		return 0
	}
	return (last - first) / first
}

// MinMaxNormalize rescales values into [0, 1]. When every value is equal
// each maps to 0.5.
func MinMaxNormalize(data []float64) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}

	lo, hi := floats.Min(data), floats.Max(data)
	if hi == lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, v := range data {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}
