// Package acquire grabs blocks of samples from analog inputs or counters.
//
// A Viewer owns one task, and a second one generating the counter clock when
// counters are gated by a clock.  It is set up from a Setup, usually built from a
// configuration store with FromSettings, and each Grab returns one Data
// block.  Run grabs continuously at a bounded rate and hands the blocks to a
// Sink.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/util"
)

// ErrNotConfigured is returned by Grab before Configure
var ErrNotConfigured = errors.New("viewer not configured")

// Settings is a typed, read only key store.  *koanf.Koanf satisfies it.
type Settings interface {
	Exists(key string) bool
	String(key string) string
	Strings(key string) []string
	Float64(key string) float64
	Int(key string) int
	Bool(key string) bool
}

// Setup describes an acquisition
type Setup struct {
	// Kind is daqmx.AnalogInput or daqmx.CounterInput
	Kind daqmx.Kind `json:"kind"`

	Channels []string `json:"channels"`

	// Min and Max are the input range of analog channels, V
	Min float64 `json:"min"`
	Max float64 `json:"max"`

	Termination daqmx.Termination `json:"termination"`

	// Edge counted by counter channels
	Edge daqmx.Edge `json:"edge"`

	// Rate is the sample clock of analog channels, Hz
	Rate float64 `json:"rate"`

	// Samples per channel in one grab.  Ungated counters count for
	// Samples/Rate seconds.
	Samples int `json:"samples"`

	// ClockChannel is a counter, e.g. Dev1/ctr0, generating a clock at Rate
	// which gates the counters.  Each sample is the count during one half
	// period of the clock.  Empty for ungated counters.
	ClockChannel string `json:"clockChannel"`

	// Source is the terminal gated counters count edges of, e.g. /Dev1/PFI0
	Source string `json:"source"`

	Trigger daqmx.Trigger `json:"trigger"`
}

// DefaultSetup is 100 samples at 1 kHz on +/-10 V
func DefaultSetup() Setup {
	return Setup{Kind: daqmx.AnalogInput, Min: -10, Max: 10, Rate: 1e3, Samples: 100}
}

// Clock is the sample clock of an analog acquisition
func (s Setup) Clock() daqmx.Clock {
	return daqmx.Clock{Frequency: s.Rate, SampleCount: s.Samples, Edge: daqmx.Rising}
}

// CountingTime is how long counters count for in one grab
func (s Setup) CountingTime() float64 { return float64(s.Samples) / s.Rate }

// Gated is true for counters gated by a clock
func (s Setup) Gated() bool { return s.Kind == daqmx.CounterInput && s.ClockChannel != "" }

// ClockDescriptor is the channel and timing of the gating clock
func (s Setup) ClockDescriptor() (daqmx.Channel, daqmx.Timing) {
	return daqmx.ClockOutputChannel(s.ClockChannel, s.Rate), daqmx.Implicit{SampleCount: s.Samples, Continuous: true}
}

// Descriptors returns the channels and timing of the acquisition.  Counters
// are read on demand.
func (s Setup) Descriptors() ([]daqmx.Channel, daqmx.Timing, error) {
	if len(s.Channels) == 0 {
		return nil, nil, fmt.Errorf("acquire: %w", daqmx.ErrNoChannels)
	}
	chans := make([]daqmx.Channel, len(s.Channels))
	switch s.Kind {
	case daqmx.AnalogInput:
		for i, n := range s.Channels {
			chans[i] = daqmx.AIVoltage(n, s.Min, s.Max, s.Termination)
		}
		return chans, s.Clock(), nil
	case daqmx.CounterInput:
		if s.Gated() {
			for i, n := range s.Channels {
				chans[i] = daqmx.GatedCounterChannel(n, s.ClockChannel, s.Source)
			}
			return chans, daqmx.Implicit{SampleCount: s.Samples, Continuous: true}, nil
		}
		for i, n := range s.Channels {
			chans[i] = daqmx.EdgeCounterChannel(n, s.Edge)
		}
		return chans, nil, nil
	default:
		return nil, nil, &daqmx.ConfigError{Param: "acquisition kind", Value: s.Kind.String(), Err: daqmx.ErrUnsupportedChannelCombination}
	}
}

// FromSettings reads a Setup from the keys under prefix, e.g. prefix.Channels.
// Missing keys and empty strings keep the values of DefaultSetup.
func FromSettings(s Settings, prefix string) (Setup, error) {
	key := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}
	out := DefaultSetup()
	if v := s.String(key("Kind")); v != "" {
		k, err := daqmx.ParseKind(v)
		if err != nil {
			return out, err
		}
		out.Kind = k
	}
	out.Channels = s.Strings(key("Channels"))
	if len(out.Channels) == 0 && s.Exists(key("Channels")) {
		// a single comma separated string
		for _, c := range strings.Split(s.String(key("Channels")), ",") {
			if c = strings.TrimSpace(c); c != "" {
				out.Channels = append(out.Channels, c)
			}
		}
	}
	// a channel listed twice is read once
	out.Channels = util.UniqueString(out.Channels)
	if s.Exists(key("Min")) {
		out.Min = s.Float64(key("Min"))
	}
	if s.Exists(key("Max")) {
		out.Max = s.Float64(key("Max"))
	}
	if s.Exists(key("Rate")) {
		out.Rate = s.Float64(key("Rate"))
	}
	if s.Exists(key("Samples")) {
		out.Samples = s.Int(key("Samples"))
	}
	if v := s.String(key("Termination")); v != "" {
		t, err := daqmx.ParseTermination(v)
		if err != nil {
			return out, err
		}
		out.Termination = t
	}
	if v := s.String(key("Edge")); v != "" {
		e, err := daqmx.ParseEdge(v)
		if err != nil {
			return out, err
		}
		out.Edge = e
	}
	out.ClockChannel = s.String(key("ClockChannel"))
	out.Source = s.String(key("Source"))
	if src := s.String(key("Trigger.Source")); src != "" {
		out.Trigger = daqmx.Trigger{Enabled: true, Source: src, Level: s.Float64(key("Trigger.Level"))}
		if v := s.String(key("Trigger.Edge")); v != "" {
			e, err := daqmx.ParseEdge(v)
			if err != nil {
				return out, err
			}
			out.Trigger.Edge = e
		}
	}
	if out.Rate <= 0 || out.Samples < 1 {
		return out, &daqmx.ConfigError{Param: "rate/samples", Value: fmt.Sprintf("%g/%d", out.Rate, out.Samples), Err: daqmx.ErrInvalidTiming}
	}
	return out, nil
}

// Data is one grab.  Values holds Samples values per channel, grouped by
// channel in the order of Labels.
type Data struct {
	Labels   []string  `json:"labels"`
	Samples  int       `json:"samples"`
	Channels int       `json:"channels"`
	Values   []float64 `json:"values"`
	Rate     float64   `json:"rate"`
	Units    string    `json:"units"`
	Time     time.Time `json:"time"`
}

// Channel returns the samples of one channel
func (d Data) Channel(i int) []float64 {
	if i < 0 || i >= d.Channels {
		return nil
	}
	return d.Values[i*d.Samples : (i+1)*d.Samples]
}

// Sink receives the output of a Viewer
type Sink interface {
	Data(Data)
	Status(string)
}

// Viewer acquires through one task
type Viewer struct {
	mu    sync.Mutex
	task  *daqmx.Task
	clock *daqmx.Task
	setup Setup
	ready bool
	last  Data
}

// NewViewer returns a Viewer with a task of the given name
func NewViewer(drv daqmx.Driver, name string) *Viewer {
	return &Viewer{task: daqmx.NewTask(drv, name), clock: daqmx.NewTask(drv, name+"-clock")}
}

// Task is the task the viewer reads through
func (v *Viewer) Task() *daqmx.Task { return v.task }

// ClockTask generates the clock of gated counters
func (v *Viewer) ClockTask() *daqmx.Task { return v.clock }

// Setup returns the active setup
func (v *Viewer) Setup() Setup {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setup
}

// Configure applies a setup.  On error the previous setup stays active.
func (v *Viewer) Configure(s Setup) error {
	chans, timing, err := s.Descriptors()
	if err != nil {
		return err
	}
	if s.Gated() {
		ch, _ := s.ClockDescriptor()
		if err := ch.Validate(); err != nil {
			return err
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.task.Configure(chans, timing, s.Trigger); err != nil {
		v.ready = v.task.State() != daqmx.Unconfigured
		return err
	}
	if s.Gated() {
		ch, clk := s.ClockDescriptor()
		if err := v.clock.Configure([]daqmx.Channel{ch}, clk, daqmx.Trigger{}); err != nil {
			// without its clock the counter task cannot run
			v.task.Close()
			v.ready = false
			return err
		}
	} else if err := v.clock.Close(); err != nil {
		log.Printf("acquire: %s: releasing clock: %v\n", v.task.Name(), err)
	}
	v.setup = s
	v.ready = true
	return nil
}

// Grab acquires one block
func (v *Viewer) Grab(ctx context.Context) (Data, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.ready {
		return Data{}, fmt.Errorf("acquire: %w", ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return Data{}, err
	}
	s := v.setup
	d := Data{
		Labels:   append([]string(nil), s.Channels...),
		Channels: len(s.Channels),
		Rate:     s.Rate,
		Time:     time.Now(),
	}
	switch s.Kind {
	case daqmx.CounterInput:
		if s.Gated() {
			counts, err := v.gated(ctx, s)
			if err != nil {
				return Data{}, err
			}
			d.Samples, d.Units, d.Values = s.Samples, "counts", counts
			break
		}
		counts, err := v.count(ctx, s)
		if err != nil {
			return Data{}, err
		}
		d.Samples, d.Units = 1, "counts"
		d.Values = make([]float64, len(counts))
		for i, c := range counts {
			d.Values[i] = float64(c)
		}
	default:
		vals, err := v.task.ReadAnalog(len(s.Channels), s.Clock())
		if err != nil {
			return Data{}, err
		}
		// a finite task must be stopped before it can run again
		if err := v.task.Stop(); err != nil {
			log.Printf("acquire: %s: stop after read: %v\n", v.task.Name(), err)
		}
		d.Samples, d.Units, d.Values = s.Samples, "V", vals
	}
	v.last = d
	return d, nil
}

// count starts the counters, lets them count, and reads them.  Caller holds
// the lock.
func (v *Viewer) count(ctx context.Context, s Setup) ([]uint32, error) {
	if err := v.task.Start(); err != nil {
		return nil, err
	}
	t := time.NewTimer(util.SecsToDuration(s.CountingTime()))
	defer t.Stop()
	select {
	case <-ctx.Done():
		if err := v.task.Stop(); err != nil {
			log.Printf("acquire: %s: stop on cancel: %v\n", v.task.Name(), err)
		}
		return nil, ctx.Err()
	case <-t.C:
	}
	return v.task.ReadCounter(len(s.Channels), s.CountingTime())
}

// gated arms the counters, starts their clock and reads one count per half
// period of the clock, grouped by channel.  Both tasks are stopped on return.
// Caller holds the lock.
func (v *Viewer) gated(ctx context.Context, s Setup) ([]float64, error) {
	// the counters must be armed before the first clock edge
	if err := v.task.Start(); err != nil {
		return nil, err
	}
	defer func() {
		if err := v.clock.Stop(); err != nil {
			log.Printf("acquire: %s: stop clock: %v\n", v.task.Name(), err)
		}
		if err := v.task.Stop(); err != nil {
			log.Printf("acquire: %s: stop counters: %v\n", v.task.Name(), err)
		}
	}()
	if err := v.clock.Start(); err != nil {
		return nil, err
	}
	n := len(s.Channels)
	out := make([]float64, n*s.Samples)
	timeout := util.SecsToDuration(2 / s.Rate)
	for i := 0; i < s.Samples; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		counts, err := v.task.ReadCounterContinuous(n, timeout)
		if err != nil {
			return nil, err
		}
		for k, c := range counts {
			out[k*s.Samples+i] = float64(c)
		}
	}
	return out, nil
}

// Last returns the most recent grab
func (v *Viewer) Last() Data {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// Run grabs repeatedly, no more than once per period, until ctx is done.
// Failed grabs are reported to the sink's Status, at most once a second, and
// do not end the loop.
func (v *Viewer) Run(ctx context.Context, period time.Duration, sink Sink) error {
	pace := rate.NewLimiter(rate.Every(period), 1)
	status := rate.NewLimiter(rate.Every(time.Second), 1)
	sink.Status("running")
	for {
		if err := pace.Wait(ctx); err != nil {
			sink.Status("stopped")
			return nil
		}
		d, err := v.Grab(ctx)
		if err != nil {
			if ctx.Err() != nil {
				sink.Status("stopped")
				return nil
			}
			if status.Allow() {
				sink.Status(err.Error())
			}
			continue
		}
		sink.Data(d)
	}
}

// Close releases the tasks
func (v *Viewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ready = false
	err := v.task.Close()
	if e := v.clock.Close(); err == nil {
		err = e
	}
	return err
}
