package daqmx

import (
	"math"

	"github.com/nasa-jpl/golab-daqmx/mathx"
)

// Shape is the form of a generated waveform
type Shape int

const (
	// DC is a constant level, Offset
	DC Shape = iota
	// Sine is Offset + Amplitude * sin(2 pi Frequency t)
	Sine
	// Ramp rises linearly from Offset to Offset+Amplitude over the buffer
	Ramp
)

var shapeNames = []string{"DC", "Sinus", "Ramp"}

func (s Shape) String() string { return name(shapeNames, int(s)) }

// ParseShape converts "DC", "Sinus" or "Ramp" to a Shape
func ParseShape(s string) (Shape, error) {
	i, err := parse(shapeNames, s, "waveform")
	return Shape(i), err
}

// Waveform describes an analog output pattern
type Waveform struct {
	Shape Shape `json:"shape"`

	// Frequency of a sine, Hz
	Frequency float64 `json:"frequency"`

	Amplitude float64 `json:"amplitude"`

	Offset float64 `json:"offset"`
}

// Samples renders the waveform at the clock's rate.  A DC waveform is a single
// sample regardless of the clock, to be written with the scalar path.
func (w Waveform) Samples(clock Clock) []float64 {
	if w.Shape == DC || clock.SampleCount < 2 || clock.Frequency <= 0 {
		return []float64{w.Offset}
	}
	n := clock.SampleCount
	out := make([]float64, n)
	switch w.Shape {
	case Sine:
		dt := 1 / clock.Frequency
		for i := range out {
			out[i] = w.Offset + w.Amplitude*math.Sin(2*math.Pi*w.Frequency*float64(i)*dt)
		}
	case Ramp:
		for i, f := range mathx.Linspace(0, 1, n) {
			out[i] = w.Offset + w.Amplitude*f
		}
	}
	return out
}

// With returns a copy of the waveform with the named parameter ("offset",
// "amplitude" or "frequency") set to v.  Unknown names leave it unchanged.
func (w Waveform) With(param string, v float64) Waveform {
	switch param {
	case "offset":
		w.Offset = v
	case "amplitude":
		w.Amplitude = v
	case "frequency":
		w.Frequency = v
	}
	return w
}
