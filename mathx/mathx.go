// Package mathx holds small numeric helpers
package mathx

import "math"

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
func Round(x, unit float64) float64 {
	return math.Round(x/unit) * unit
}

// Linspace returns n evenly spaced values from start to stop inclusive
func Linspace(start, stop float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	d := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*d
	}
	out[n-1] = stop
	return out
}
