// Package output is an analog output card driven through NI-DAQmx.
//
// Channels are addressed by their index in the list given to New.  A channel
// in single mode takes each value written to it immediately.  A channel in
// waveform mode plays its buffer when playback starts, one sample per timer
// period, while the single mode channels of the card hold their last value.
package output

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/util"
)

const (
	// Single is the operating mode of a channel written on demand
	Single = "single"

	// Waveform is the operating mode of a channel which plays a buffer
	Waveform = "waveform"

	// Software is the trigger mode which starts playback immediately
	Software = "software"

	// DefaultTimerPeriod is the sample period of playback, ns
	DefaultTimerPeriod = 1000000
)

var (
	// ErrNoChannel is returned for a channel index the DAC does not have
	ErrNoChannel = errors.New("no such channel")

	// ErrPlaying is returned for changes that cannot be made during playback
	ErrPlaying = errors.New("waveform playback in progress")

	// ErrNoWaveform is returned when playback starts with nothing to play
	ErrNoWaveform = errors.New("no channel in waveform mode has a waveform")
)

// ParseRange converts "min,max" to a range
func ParseRange(s string) (daqmx.Range, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return daqmx.Range{}, &daqmx.ConfigError{Param: "range", Value: s, Err: daqmx.ErrInvalidRange}
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return daqmx.Range{}, &daqmx.ConfigError{Param: "range", Value: s, Err: daqmx.ErrInvalidRange}
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || hi <= lo {
		return daqmx.Range{}, &daqmx.ConfigError{Param: "range", Value: s, Err: daqmx.ErrInvalidRange}
	}
	return daqmx.Range{Min: lo, Max: hi}, nil
}

// DAC is a set of analog outputs of one device, backed by a single task
type DAC struct {
	mu     sync.Mutex
	cat    *daqmx.Catalog
	task   *daqmx.Task
	device string
	names  []string
	ranges []daqmx.Range
	last   []float64
	modes  []string
	waves  [][]float64
	trig   string
	period uint32

	playing bool
	// the task no longer matches the on-demand configuration
	dirty bool
}

// New returns a DAC over the named analog outputs, which must all be on one
// device.  Each channel starts in single mode at 0 V on the first range the
// device lists.  Nothing is sent to the hardware until the first write.
func New(drv daqmx.Driver, cat *daqmx.Catalog, channels ...string) (*DAC, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("output: %w", daqmx.ErrNoChannels)
	}
	dev := daqmx.DevicePrefix(channels[0])
	have, err := cat.Channels(dev, daqmx.AnalogOutput)
	if err != nil {
		return nil, err
	}
	ranges, err := cat.VoltageRanges(dev, daqmx.Output)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, c := range channels {
		if daqmx.DevicePrefix(c) != dev {
			return nil, &daqmx.ConfigError{Param: "device", Channel: c, Value: dev, Err: daqmx.ErrUnsupportedChannelCombination}
		}
		if seen[c] {
			return nil, &daqmx.ConfigError{Param: "channel", Channel: c, Err: daqmx.ErrDuplicateChannel}
		}
		seen[c] = true
		if !contains(have, c) {
			return nil, &daqmx.ConfigError{Param: "channel", Channel: c, Value: c, Err: daqmx.ErrUnknownName}
		}
	}
	n := len(channels)
	d := &DAC{
		cat:    cat,
		task:   daqmx.NewTask(drv, "output"),
		device: dev,
		names:  append([]string(nil), channels...),
		ranges: make([]daqmx.Range, n),
		last:   make([]float64, n),
		modes:  make([]string, n),
		waves:  make([][]float64, n),
		trig:   Software,
		period: DefaultTimerPeriod,
		dirty:  true,
	}
	for i := range channels {
		d.ranges[i] = ranges[0]
		d.modes[i] = Single
	}
	return d, nil
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// Channels returns the physical channel names in index order
func (d *DAC) Channels() []string { return append([]string(nil), d.names...) }

// Task is the task the DAC writes through
func (d *DAC) Task() *daqmx.Task { return d.task }

func (d *DAC) check(ch int) error {
	if ch < 0 || ch >= len(d.names) {
		return fmt.Errorf("output: %w %d", ErrNoChannel, ch)
	}
	return nil
}

func (d *DAC) channels() []daqmx.Channel {
	out := make([]daqmx.Channel, len(d.names))
	for i, n := range d.names {
		out[i] = daqmx.AOVoltage(n, d.ranges[i].Min, d.ranges[i].Max)
	}
	return out
}

// flush sends the last value of every channel.  Caller holds the lock.
func (d *DAC) flush() error {
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	if d.dirty {
		if err := d.task.Configure(d.channels(), nil, daqmx.Trigger{}); err != nil {
			return err
		}
		d.dirty = false
	}
	_, err := d.task.WriteAnalog(1, len(d.last), d.last, true)
	return err
}

func (d *DAC) dnToVolts(ch int, dn uint16) float64 {
	r := d.ranges[ch]
	return r.Min + float64(dn)/65535*(r.Max-r.Min)
}

// Output writes a voltage to a channel.  The voltage is clamped to the
// channel's range.
func (d *DAC) Output(ch int, v float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ch); err != nil {
		return err
	}
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	d.last[ch] = util.Clamp(v, d.ranges[ch].Min, d.ranges[ch].Max)
	return d.flush()
}

// OutputDN16 writes a 16 bit data number to a channel, 0 being the bottom of
// its range and 65535 the top
func (d *DAC) OutputDN16(ch int, dn uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ch); err != nil {
		return err
	}
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	d.last[ch] = d.dnToVolts(ch, dn)
	return d.flush()
}

// OutputMulti writes voltages to several channels in one update
func (d *DAC) OutputMulti(chans []int, volts []float64) error {
	if len(chans) != len(volts) || len(chans) == 0 {
		return &daqmx.ShapeError{Samples: 1, Channels: len(chans), Len: len(volts)}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range chans {
		if err := d.check(ch); err != nil {
			return err
		}
	}
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	for i, ch := range chans {
		d.last[ch] = util.Clamp(volts[i], d.ranges[ch].Min, d.ranges[ch].Max)
	}
	return d.flush()
}

// OutputMultiDN16 writes data numbers to several channels in one update
func (d *DAC) OutputMultiDN16(chans []int, dns []uint16) error {
	if len(chans) != len(dns) || len(chans) == 0 {
		return &daqmx.ShapeError{Samples: 1, Channels: len(chans), Len: len(dns)}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range chans {
		if err := d.check(ch); err != nil {
			return err
		}
	}
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	for i, ch := range chans {
		d.last[ch] = d.dnToVolts(ch, dns[i])
	}
	return d.flush()
}

// Last returns the value most recently written to a channel
func (d *DAC) Last(ch int) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ch); err != nil {
		return 0, err
	}
	return d.last[ch], nil
}

// SetRange sets the output range of a channel, "min,max" in volts.  It must
// be one of the ranges the device supports.  The channel's value is clamped
// into the new range on the next write.
func (d *DAC) SetRange(ch int, rng string) error {
	r, err := ParseRange(rng)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ch); err != nil {
		return err
	}
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	ranges, err := d.cat.VoltageRanges(d.device, daqmx.Output)
	if err != nil {
		return err
	}
	ok := false
	for _, have := range ranges {
		if have == r {
			ok = true
			break
		}
	}
	if !ok {
		return &daqmx.ConfigError{Param: "output range", Channel: d.names[ch], Value: rng, Err: daqmx.ErrInvalidRange}
	}
	d.ranges[ch] = r
	d.last[ch] = util.Clamp(d.last[ch], r.Min, r.Max)
	d.dirty = true
	return nil
}

// GetRange returns the output range of a channel as "min,max"
func (d *DAC) GetRange(ch int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ch); err != nil {
		return "", err
	}
	return d.ranges[ch].String(), nil
}

// SetOperatingMode puts a channel in "single" or "waveform" mode
func (d *DAC) SetOperatingMode(ch int, mode string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ch); err != nil {
		return err
	}
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	mode = strings.ToLower(mode)
	if mode != Single && mode != Waveform {
		return &daqmx.ConfigError{Param: "operating mode", Channel: d.names[ch], Value: mode, Err: daqmx.ErrUnknownName}
	}
	d.modes[ch] = mode
	return nil
}

// GetOperatingMode returns the operating mode of a channel
func (d *DAC) GetOperatingMode(ch int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ch); err != nil {
		return "", err
	}
	return d.modes[ch], nil
}

// SetTriggerMode sets what starts playback: "software" or a digital or
// analog trigger terminal such as /Dev1/PFI0.  All channels share one
// trigger, the channel only has to exist.
func (d *DAC) SetTriggerMode(ch int, mode string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ch); err != nil {
		return err
	}
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	if !strings.EqualFold(mode, Software) {
		if _, err := (daqmx.Trigger{Enabled: true, Source: mode}).Kind(); err != nil {
			return err
		}
	} else {
		mode = Software
	}
	d.trig = mode
	return nil
}

// GetTriggerMode returns what starts playback
func (d *DAC) GetTriggerMode(ch int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ch); err != nil {
		return "", err
	}
	return d.trig, nil
}

// PopulateWaveform loads the buffer a channel plays.  Values are clamped to
// the channel's range.
func (d *DAC) PopulateWaveform(ch int, data []float64) error {
	if len(data) == 0 {
		return &daqmx.ShapeError{Samples: 0, Channels: 1}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ch); err != nil {
		return err
	}
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	r := d.ranges[ch]
	buf := make([]float64, len(data))
	for i, v := range data {
		buf[i] = util.Clamp(v, r.Min, r.Max)
	}
	d.waves[ch] = buf
	return nil
}

// Synthesize fills the buffer of a channel with n samples of w at the
// timer's rate
func (d *DAC) Synthesize(ch int, w daqmx.Waveform, n int) error {
	if n < 1 {
		return &daqmx.ShapeError{Samples: n, Channels: 1}
	}
	d.mu.Lock()
	clk := daqmx.Clock{Frequency: 1e9 / float64(d.period), SampleCount: n}
	d.mu.Unlock()
	s := w.Samples(clk)
	if len(s) == 1 && n > 1 {
		dc := s[0]
		s = make([]float64, n)
		for i := range s {
			s[i] = dc
		}
	}
	return d.PopulateWaveform(ch, s)
}

// StartWaveform begins playback of every waveform mode channel, repeating
// the buffers until StopWaveform.  The buffers must all be the same length
// and at least two samples long.
func (d *DAC) StartWaveform() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	n := 0
	for i, m := range d.modes {
		if m != Waveform || len(d.waves[i]) == 0 {
			continue
		}
		if n == 0 {
			n = len(d.waves[i])
		} else if len(d.waves[i]) != n {
			return &daqmx.ShapeError{Samples: n, Channels: len(d.names), Len: len(d.waves[i])}
		}
	}
	if n == 0 {
		return fmt.Errorf("output: %w", ErrNoWaveform)
	}
	if n < 2 {
		return &daqmx.ShapeError{Samples: n, Channels: len(d.names), Len: n}
	}

	buf := make([]float64, 0, n*len(d.names))
	for i, m := range d.modes {
		if m == Waveform && len(d.waves[i]) == n {
			buf = append(buf, d.waves[i]...)
			continue
		}
		for j := 0; j < n; j++ {
			buf = append(buf, d.last[i])
		}
	}
	clk := daqmx.Clock{Frequency: 1e9 / float64(d.period), SampleCount: n, Continuous: true}
	var trig daqmx.Trigger
	if d.trig != Software {
		trig = daqmx.Trigger{Enabled: true, Source: d.trig, Edge: daqmx.Rising}
	}
	d.dirty = true
	if err := d.task.Configure(d.channels(), clk, trig); err != nil {
		return err
	}
	if _, err := d.task.WriteAnalog(n, len(d.names), buf, false); err != nil {
		return err
	}
	if err := d.task.Start(); err != nil {
		return err
	}
	d.playing = true
	return nil
}

// StopWaveform ends playback.  Waveform channels come to rest on the last
// sample of their buffer, single channels keep their value.
func (d *DAC) StopWaveform() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.playing {
		return nil
	}
	if err := d.task.Stop(); err != nil {
		log.Printf("output: stopping playback: %v\n", err)
	}
	d.playing = false
	for i, m := range d.modes {
		if m == Waveform && len(d.waves[i]) > 0 {
			d.last[i] = d.waves[i][len(d.waves[i])-1]
		}
	}
	return d.flush()
}

// Playing is true between StartWaveform and StopWaveform
func (d *DAC) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// SetTimerPeriod sets the playback sample period in ns.  The rate it implies
// may not exceed the device's maximum output rate.
func (d *DAC) SetTimerPeriod(ns uint32) error {
	if ns == 0 {
		return &daqmx.ConfigError{Param: "timer period", Value: "0", Err: daqmx.ErrInvalidTiming}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing {
		return fmt.Errorf("output: %w", ErrPlaying)
	}
	limit, err := d.cat.MaxRate(d.device, daqmx.Output)
	if err != nil {
		return err
	}
	if rate := 1e9 / float64(ns); rate > limit {
		return &daqmx.ConfigError{Param: "timer period", Value: fmt.Sprintf("%d ns (%g Hz > %g Hz)", ns, rate, limit), Err: daqmx.ErrInvalidTiming}
	}
	d.period = ns
	return nil
}

// GetTimerPeriod returns the playback sample period in ns
func (d *DAC) GetTimerPeriod() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.period, nil
}

// Status is a snapshot of the DAC
type Status struct {
	Channels []string  `json:"channels"`
	Ranges   []string  `json:"ranges"`
	Modes    []string  `json:"modes"`
	Last     []float64 `json:"last"`
	Trigger  string    `json:"trigger"`
	PeriodNs uint32    `json:"periodNs"`
	Playing  bool      `json:"playing"`
	Task     string    `json:"task"`
}

// Status returns a snapshot of the DAC
func (d *DAC) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Status{
		Channels: append([]string(nil), d.names...),
		Modes:    append([]string(nil), d.modes...),
		Last:     append([]float64(nil), d.last...),
		Trigger:  d.trig,
		PeriodNs: d.period,
		Playing:  d.playing,
		Task:     d.task.State().String(),
	}
	for _, r := range d.ranges {
		s.Ranges = append(s.Ranges, r.String())
	}
	return s
}

// Close stops playback and releases the task
func (d *DAC) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = false
	return d.task.Close()
}
