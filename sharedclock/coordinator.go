// Package sharedclock drives several analog outputs from one counter clock.
//
// A Coordinator owns two daqmx Tasks: a counter output that generates a
// finite pulse train, and one analog output task holding a channel for every
// axis it has seen.  The analog task samples on the counter's internal output
// terminal, so all axes step together.  Only one axis moves at a time; the
// others are held at their last applied value for the duration of the move.
//
// The clock is never reconfigured while a previous pulse train is still
// running.  Every reconfiguration of either task waits, with a bounded
// timeout, for the clock to report done.
package sharedclock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
)

// DefaultWaitTimeout bounds the wait for a previous clock run to finish
const DefaultWaitTimeout = 5 * time.Second

// ErrClockBusy is returned when the clock is still generating after the wait timeout
var ErrClockBusy = errors.New("clock task still running")

type move struct {
	axis string
	ch   daqmx.Channel
	seq  []float64
}

type flight struct {
	axis string
	path []float64
}

type completion struct {
	id  uint64
	err error
}

// Coordinator serializes moves of several axes sharing one counter clock.
// It is safe for concurrent use.  Lock order is Coordinator, then Task.
type Coordinator struct {
	mu sync.Mutex

	cat          *daqmx.Catalog
	clock        *daqmx.Task
	analog       *daqmx.Task
	clockChannel string
	frequency    float64

	// axes is the channel order of the analog task
	axes     []string
	channels map[string]daqmx.Channel
	applied  map[string]float64

	buf   []float64
	steps int

	locked   bool
	queue    []move
	inflight *flight
	id       uint64
	done     chan completion

	// WaitTimeout bounds the wait for the clock before any reconfiguration
	WaitTimeout time.Duration
}

// New returns a Coordinator generating its clock on clockChannel, a counter
// such as "Dev1/ctr0", at frequency Hz.  No driver call is made.
func New(drv daqmx.Driver, cat *daqmx.Catalog, clockChannel string, frequency float64) *Coordinator {
	return &Coordinator{
		cat:          cat,
		clock:        daqmx.NewTask(drv, "clock"),
		analog:       daqmx.NewTask(drv, "analog"),
		clockChannel: clockChannel,
		frequency:    frequency,
		channels:     make(map[string]daqmx.Channel),
		applied:      make(map[string]float64),
		done:         make(chan completion, 1),
		WaitTimeout:  DefaultWaitTimeout,
	}
}

// ClockChannel is the counter the clock is generated on
func (c *Coordinator) ClockChannel() string { return c.clockChannel }

// Frequency is the step rate, Hz
func (c *Coordinator) Frequency() float64 { return c.frequency }

// ClockTask is the counter output task generating the step clock
func (c *Coordinator) ClockTask() *daqmx.Task { return c.clock }

// AnalogTask is the analog output task holding every axis
func (c *Coordinator) AnalogTask() *daqmx.Task { return c.analog }

// waitClock blocks until the clock task is done or unconfigured.  Caller holds c.mu.
func (c *Coordinator) waitClock() error {
	if c.clock.State() == daqmx.Unconfigured {
		return nil
	}
	timeout := c.WaitTimeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	op := func() error {
		done, err := c.clock.IsDone()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return ErrClockBusy
		}
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         100 * time.Millisecond,
		MaxElapsedTime:      timeout,
		Clock:               backoff.SystemClock})
	if errors.Is(err, ErrClockBusy) {
		return fmt.Errorf("sharedclock: %s after %v: %w", c.clockChannel, timeout, err)
	}
	return err
}

// SetUpClock configures the clock task as a finite train of steps+1 pulses,
// after waiting for any previous train to finish.  The returned Clock samples
// on the counter's internal output and is ready for UpdateChannels.
func (c *Coordinator) SetUpClock(steps int) (daqmx.Clock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setUpClock(steps)
}

func (c *Coordinator) setUpClock(steps int) (daqmx.Clock, error) {
	if steps < 1 {
		return daqmx.Clock{}, &daqmx.ConfigError{Param: "steps", Value: strconv.Itoa(steps), Err: daqmx.ErrInvalidTiming}
	}
	if err := c.waitClock(); err != nil {
		return daqmx.Clock{}, err
	}
	ch := daqmx.ClockOutputChannel(c.clockChannel, c.frequency)
	err := c.clock.Configure([]daqmx.Channel{ch}, daqmx.Implicit{SampleCount: steps + 1}, daqmx.Trigger{})
	if err != nil {
		return daqmx.Clock{}, err
	}
	return daqmx.Clock{
		Source:      daqmx.InternalOutput(c.clockChannel),
		Frequency:   c.frequency,
		SampleCount: steps + 1,
		Edge:        daqmx.Rising,
	}, nil
}

// UpdateChannels inserts or replaces the channel of axis and reconfigures the
// analog task with every known channel, sampled on clk.  When a device would
// be asked for more analog outputs than it has, the update is logged and
// abandoned and the previous configuration stays.
func (c *Coordinator) UpdateChannels(ch daqmx.Channel, axis string, clk daqmx.Clock) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.updateChannels(ch, axis, clk)
	return err
}

// updateChannels reports whether the channel set was applied.  Caller holds c.mu.
func (c *Coordinator) updateChannels(ch daqmx.Channel, axis string, clk daqmx.Clock) (bool, error) {
	if axis == "" {
		return false, &daqmx.ConfigError{Param: "axis", Channel: ch.Name, Err: daqmx.ErrEmptyName}
	}
	if err := ch.Validate(); err != nil {
		return false, err
	}
	if ch.Kind != daqmx.AnalogOutput {
		return false, &daqmx.ConfigError{Param: "channel", Channel: ch.Name, Value: ch.Kind.String(), Err: daqmx.ErrUnsupportedChannelCombination}
	}

	axes := c.axes
	if _, ok := c.channels[axis]; !ok {
		axes = append(append([]string(nil), c.axes...), axis)
	}
	chans := make([]daqmx.Channel, 0, len(axes))
	dev := ch.Device()
	used := 0
	for _, a := range axes {
		cha := c.channels[a]
		if a == axis {
			cha = ch
		}
		if cha.Device() == dev {
			used++
		}
		chans = append(chans, cha)
	}
	capacity, err := c.cat.Capacity(dev, daqmx.AnalogOutput)
	if err != nil {
		return false, err
	}
	if used > capacity {
		log.Printf("sharedclock: axis %s: %d analog outputs requested on %s: %v\n",
			axis, used, dev, fmt.Errorf("%w (%d available)", daqmx.ErrCapacityExceeded, capacity))
		return false, nil
	}

	if err := c.waitClock(); err != nil {
		return false, err
	}
	if err := c.analog.Configure(chans, clk, daqmx.Trigger{}); err != nil {
		return false, err
	}
	c.axes = axes
	c.channels[axis] = ch
	if _, ok := c.applied[axis]; !ok {
		c.applied[axis] = 0
	}
	c.buf = nil
	c.steps = 0
	return true, nil
}

// SetUpVoltageArray builds the buffer of the next write.  The row of axis
// holds seq; every other row holds that axis's applied value.  Rows are
// grouped by channel in axis order.
func (c *Coordinator) SetUpVoltageArray(seq []float64, axis string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setUpVoltageArray(seq, axis)
}

func (c *Coordinator) setUpVoltageArray(seq []float64, axis string) error {
	if len(seq) == 0 {
		return &daqmx.ShapeError{Samples: 0, Channels: len(c.axes), Len: 0}
	}
	if _, ok := c.channels[axis]; !ok {
		return &daqmx.ConfigError{Param: "axis", Value: axis, Err: daqmx.ErrUnknownName}
	}
	steps := len(seq)
	buf := make([]float64, len(c.axes)*steps)
	for i, a := range c.axes {
		row := buf[i*steps : (i+1)*steps]
		if a == axis {
			copy(row, seq)
			continue
		}
		v := c.applied[a]
		for j := range row {
			row[j] = v
		}
	}
	c.buf, c.steps = buf, steps
	return nil
}

// WriteVoltages starts the analog task and writes the buffer built by
// SetUpVoltageArray.  Applied values are updated only after the write is
// accepted in full.
func (c *Coordinator) WriteVoltages() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeVoltages()
}

func (c *Coordinator) writeVoltages() error {
	if len(c.buf) == 0 {
		return fmt.Errorf("sharedclock: write: no voltage array: %w", daqmx.ErrInvalidState)
	}
	if st := c.analog.State(); st == daqmx.Configured || st == daqmx.Stopped {
		if err := c.analog.Start(); err != nil {
			return err
		}
	}
	if _, err := c.analog.WriteAnalog(c.steps, len(c.axes), c.buf, false); err != nil {
		return err
	}
	for i, a := range c.axes {
		c.applied[a] = c.buf[(i+1)*c.steps-1]
	}
	return nil
}

// Move moves axis through seq on channel ch.  If another move is in flight,
// the request is queued and true is returned; it starts when the current
// move completes.  A single value is written on demand and completes before
// Move returns.  Longer sequences complete asynchronously; use Wait or Run to
// collect completions.
func (c *Coordinator) Move(axis string, ch daqmx.Channel, seq []float64) (queued bool, err error) {
	if len(seq) == 0 {
		return false, &daqmx.ShapeError{Samples: 0, Channels: 1, Len: 0}
	}
	m := move{axis: axis, ch: ch, seq: append([]float64(nil), seq...)}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		c.queue = append(c.queue, m)
		return true, nil
	}
	return false, c.run(m)
}

// run starts m, then the queued moves for as long as they finish
// synchronously.  The first error is returned; later moves still run.
// Caller holds c.mu.
func (c *Coordinator) run(m move) error {
	var first error
	for {
		async, err := c.begin(m)
		if err != nil {
			log.Printf("sharedclock: move of %s: %v\n", m.axis, err)
			if first == nil {
				first = err
			}
		}
		if async || len(c.queue) == 0 {
			return first
		}
		m, c.queue = c.queue[0], c.queue[1:]
	}
}

// begin starts one move and reports whether it is still in flight.  Caller holds c.mu.
func (c *Coordinator) begin(m move) (bool, error) {
	c.locked = true
	c.id++
	if len(m.seq) == 1 {
		err := c.single(m)
		c.locked = false
		return false, err
	}

	clk, err := c.setUpClock(len(m.seq))
	if err != nil {
		c.abort()
		return false, err
	}
	ok, err := c.updateChannels(m.ch, m.axis, clk)
	if err == nil && !ok {
		err = fmt.Errorf("sharedclock: axis %s: %w", m.axis, daqmx.ErrCapacityExceeded)
	}
	if err != nil {
		c.abort()
		return false, err
	}
	// the final value is held for the extra clock pulse
	path := append(append([]float64(nil), m.seq...), m.seq[len(m.seq)-1])
	if err := c.setUpVoltageArray(path, m.axis); err != nil {
		c.abort()
		return false, err
	}
	c.drain()
	id := c.id
	err = c.analog.RegisterCallback(daqmx.Done(), func(n daqmx.Notification) {
		select {
		case c.done <- completion{id: id, err: n.Err}:
		default:
		}
	})
	if err != nil {
		c.abort()
		return false, err
	}
	if err := c.writeVoltages(); err != nil {
		c.abort()
		return false, err
	}
	c.inflight = &flight{axis: m.axis, path: path}
	if err := c.clock.Start(); err != nil {
		c.abort()
		return false, err
	}
	return true, nil
}

// single writes one value on demand.  Caller holds c.mu.
func (c *Coordinator) single(m move) error {
	clk := daqmx.Clock{Frequency: c.frequency, SampleCount: 1}
	ok, err := c.updateChannels(m.ch, m.axis, clk)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sharedclock: axis %s: %w", m.axis, daqmx.ErrCapacityExceeded)
	}
	if err := c.setUpVoltageArray(m.seq, m.axis); err != nil {
		return err
	}
	return c.writeVoltages()
}

// drain discards completions of moves that were stopped before they were collected
func (c *Coordinator) drain() {
	for {
		select {
		case <-c.done:
		default:
			return
		}
	}
}

// abort abandons the move in flight.  Caller holds c.mu.
func (c *Coordinator) abort() {
	c.locked = false
	c.inflight = nil
	c.stopTasks()
}

func (c *Coordinator) stopTasks() {
	if err := c.clock.Stop(); err != nil {
		log.Printf("sharedclock: stopping clock: %v\n", err)
	}
	if err := c.analog.Stop(); err != nil {
		log.Printf("sharedclock: stopping analog output: %v\n", err)
	}
}

// complete finishes the move a completion belongs to, releases the counter
// and starts the next queued move.
func (c *Coordinator) complete(cm completion) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cm.id != c.id || !c.locked {
		return nil
	}
	if err := c.analog.Stop(); err != nil {
		log.Printf("sharedclock: stopping analog output: %v\n", err)
	}
	// the counter is scarce; give it back between moves
	if err := c.clock.Close(); err != nil {
		log.Printf("sharedclock: releasing clock: %v\n", err)
	}
	c.locked = false
	c.inflight = nil
	err := cm.err
	if len(c.queue) > 0 {
		var m move
		m, c.queue = c.queue[0], c.queue[1:]
		if e := c.run(m); err == nil {
			err = e
		}
	}
	return err
}

func (c *Coordinator) idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.locked && len(c.queue) == 0
}

// Wait blocks until no move is in flight or queued, or ctx is done.  The
// first error reported by a completing move is returned.
func (c *Coordinator) Wait(ctx context.Context) error {
	var first error
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for !c.idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cm := <-c.done:
			if err := c.complete(cm); err != nil && first == nil {
				first = err
			}
		case <-tick.C:
		}
	}
	return first
}

// Run collects completions until ctx is done, for servers that do not
// block on their moves
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cm := <-c.done:
			if err := c.complete(cm); err != nil {
				log.Printf("sharedclock: %v\n", err)
			}
		}
	}
}

// Locked reports whether a move is in flight
func (c *Coordinator) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// Lock marks the coordinator busy so that moves are queued, for callers
// driving SetUpClock, UpdateChannels and WriteVoltages by hand
func (c *Coordinator) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = true
}

// Unlock clears the busy flag and replays queued moves
func (c *Coordinator) Unlock() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = false
	c.inflight = nil
	if len(c.queue) == 0 {
		return nil
	}
	var m move
	m, c.queue = c.queue[0], c.queue[1:]
	return c.run(m)
}

// Pending is the number of queued moves
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Axes returns the axes in channel order
func (c *Coordinator) Axes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.axes...)
}

// Applied is the last value committed to axis by a write
func (c *Coordinator) Applied(axis string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.applied[axis]
	return v, ok
}

// Position is the value axis is at now.  While the axis is moving it is
// estimated from the number of clock pulses generated so far.
func (c *Coordinator) Position(axis string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.applied[axis]
	if !ok {
		return 0, &daqmx.ConfigError{Param: "axis", Value: axis, Err: daqmx.ErrUnknownName}
	}
	if c.inflight == nil || c.inflight.axis != axis {
		return v, nil
	}
	n, err := c.clock.PulseCount(c.clockChannel)
	if err != nil {
		return v, err
	}
	i := int(n) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(c.inflight.path) {
		i = len(c.inflight.path) - 1
	}
	return c.inflight.path[i], nil
}

// Stop halts any move, drops the queue and stops both tasks.  It never
// fails; driver complaints are logged.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = false
	c.queue = nil
	c.inflight = nil
	c.id++
	c.stopTasks()
	c.drain()
}

// Close stops and releases both tasks
func (c *Coordinator) Close() error {
	c.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.clock.Close()
	if e := c.analog.Close(); err == nil {
		err = e
	}
	return err
}
