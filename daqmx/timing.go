package daqmx

import (
	"fmt"
	"time"
)

// SampleMode is finite or continuous acquisition/generation
type SampleMode int

const (
	// Finite stops after the requested number of samples
	Finite SampleMode = iota
	// Continuous runs until stopped
	Continuous
)

func (m SampleMode) String() string {
	if m == Continuous {
		return "Continuous"
	}
	return "Finite"
}

func mode(continuous bool) SampleMode {
	if continuous {
		return Continuous
	}
	return Finite
}

// Timing is how a task paces its samples.  It is one of Clock,
// ChangeDetection or Implicit.
type Timing interface {
	// Samples is the number of samples per channel
	Samples() int

	validate() error
}

// Clock is sample clock timing.  If SampleCount is 1 no timing is configured
// and the task runs on demand.
type Clock struct {
	// Source is an external terminal, e.g. /Dev1/Ctr0InternalOutput.
	// Empty uses the task's onboard clock.
	Source string

	// Frequency is the sample rate, Hz
	Frequency float64

	// SampleCount is the number of samples per channel, >= 1
	SampleCount int

	Edge Edge

	// Continuous is true for repeated acquisition/generation
	Continuous bool
}

// Samples returns SampleCount
func (c Clock) Samples() int { return c.SampleCount }

func (c Clock) validate() error {
	if c.Frequency <= 0 {
		return &ConfigError{Param: "clock frequency", Value: fmt.Sprintf("%g", c.Frequency), Err: ErrInvalidTiming}
	}
	if c.SampleCount < 1 {
		return &ConfigError{Param: "sample count", Value: fmt.Sprintf("%d", c.SampleCount), Err: ErrInvalidTiming}
	}
	if c.Edge != Rising && c.Edge != Falling {
		return &ConfigError{Param: "clock edge", Value: c.Edge.String(), Err: ErrUnknownName}
	}
	return nil
}

// Duration is the nominal time to move SampleCount samples
func (c Clock) Duration() time.Duration {
	return secs(float64(c.SampleCount) / c.Frequency)
}

// ReadTimeout is twice the nominal acquisition time, a margin against jitter
func (c Clock) ReadTimeout() time.Duration {
	return 2 * c.Duration()
}

// ChangeDetection timing samples digital lines when they change
type ChangeDetection struct {
	// Rising and Falling are the lines watched for each edge, either may be empty
	Rising, Falling string

	SampleCount int

	Continuous bool
}

// Samples returns SampleCount
func (c ChangeDetection) Samples() int { return c.SampleCount }

func (c ChangeDetection) validate() error {
	if c.SampleCount < 1 {
		return &ConfigError{Param: "sample count", Value: fmt.Sprintf("%d", c.SampleCount), Err: ErrInvalidTiming}
	}
	if c.Rising == "" && c.Falling == "" {
		return &ConfigError{Param: "change detection lines", Err: ErrInvalidTiming}
	}
	return nil
}

// Implicit timing is paced by the channels themselves, used for counter
// outputs generating a pulse train of SampleCount pulses
type Implicit struct {
	SampleCount int

	Continuous bool
}

// Samples returns SampleCount
func (i Implicit) Samples() int { return i.SampleCount }

func (i Implicit) validate() error {
	if i.SampleCount < 1 {
		return &ConfigError{Param: "sample count", Value: fmt.Sprintf("%d", i.SampleCount), Err: ErrInvalidTiming}
	}
	return nil
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
