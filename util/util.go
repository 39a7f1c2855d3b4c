// Package util contains misc internal utilities.
package util

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Limiter is a software limit on a value, inclusive at both ends
type Limiter struct {
	Min float64 `json:"min" yaml:"Min" koanf:"Min"`
	Max float64 `json:"max" yaml:"Max" koanf:"Max"`
}

// Check returns true if f is within the limits
func (l Limiter) Check(f float64) bool {
	return f >= l.Min && f <= l.Max
}

// Clamp returns f restricted to the limits
func (l Limiter) Clamp(f float64) float64 {
	return Clamp(f, l.Min, l.Max)
}

// Clamp restricts input to [low, high]
func Clamp(input, low, high float64) float64 {
	return math.Max(low, math.Min(input, high))
}

// SecsToDuration converts a number of seconds to a Duration
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(math.Round(secs * 1e9))
}

// Arange returns values from start towards stop, excluding stop, spaced by
// step.  The sign of step is taken from the direction of stop.
func Arange(start, stop, step float64) []float64 {
	step = math.Abs(step)
	if step == 0 || start == stop {
		return nil
	}
	if stop < start {
		step = -step
	}
	n := int(math.Ceil((stop - start) / step))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// UniqueString returns the distinct strings of in, in order of first appearance
func UniqueString(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// FloatSliceToCSV converts a slice of floats to CSV formatted data.
// e.g., []float64{1,2.5} => "1,2.5"
func FloatSliceToCSV(fs []float64) string {
	s := make([]string, len(fs))
	for i, v := range fs {
		s[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(s, ",")
}

// GetBit returns the value of a given bit in a byte
func GetBit(b byte, bitIndex uint) bool {
	return b&(1<<bitIndex) != 0
}

// SetBit sets a given bit in a byte
func SetBit(b byte, bitIndex uint, value bool) byte {
	if value {
		return b | 1<<bitIndex
	}
	return b &^ (1 << bitIndex)
}
