// Package scanner drives piezo scanner axes through a shared clock.
//
// Each axis is one analog output.  Positions are in nanometers and converted
// to volts with a per axis factor.  A move is broken into steps no larger
// than the axis step size, generated at the coordinator's clock rate, so the
// piezo never sees a jump.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/mathx"
	"github.com/nasa-jpl/golab-daqmx/sharedclock"
	"github.com/nasa-jpl/golab-daqmx/util"
)

const (
	// DefaultStepSize is the largest step of a move, nm
	DefaultStepSize = 100.

	// DefaultConversion is the piezo gain, nm per volt
	DefaultConversion = 7500.

	// DefaultStepTime is the time between two steps
	DefaultStepTime = 10 * time.Millisecond

	// resolution positions are reported to, nm
	resolution = 1e-6
)

var (
	// ErrNoAxis is returned for an axis the controller was not set up with
	ErrNoAxis = errors.New("no such axis")

	// ErrOutOfLimits is returned for a move outside an axis' software limits
	ErrOutOfLimits = errors.New("requested position violates software limits, aborted")

	// ErrDisabled is returned for a move of a disabled axis
	ErrDisabled = errors.New("axis disabled")
)

// Axis describes one scanner axis
type Axis struct {
	// Name identifies the axis, e.g. "X"
	Name string `yaml:"Name" koanf:"Name"`

	// Channel is the analog output, e.g. "Dev1/ao0"
	Channel string `yaml:"Channel" koanf:"Channel"`

	// StepSize is the largest step of a move, nm
	StepSize float64 `yaml:"StepSize" koanf:"StepSize"`

	// Conversion is nm per volt
	Conversion float64 `yaml:"Conversion" koanf:"Conversion"`

	// Limits are the software limits, nm.  A zero value means unlimited.
	Limits util.Limiter `yaml:"Limits" koanf:"Limits"`
}

func (a Axis) withDefaults() Axis {
	if a.StepSize <= 0 {
		a.StepSize = DefaultStepSize
	}
	if a.Conversion == 0 {
		a.Conversion = DefaultConversion
	}
	return a
}

func (a Axis) limited() bool { return a.Limits.Min < a.Limits.Max }

// channel is the analog output of the axis, ranged to the limits when there are any
func (a Axis) channel() daqmx.Channel {
	lo, hi := -10., 10.
	if a.limited() {
		lo, hi = a.Limits.Min/a.Conversion, a.Limits.Max/a.Conversion
		if lo > hi {
			lo, hi = hi, lo
		}
	}
	return daqmx.AOVoltage(a.Channel, lo, hi)
}

// StepPath returns the positions a move from current to target passes
// through, spaced by step and ending exactly on target.  Moves no longer
// than step are a single value.
func StepPath(current, target, step float64) []float64 {
	if math.Abs(target-current) <= step {
		return []float64{target}
	}
	return append(util.Arange(current, target, step), target)
}

type axisState struct {
	Axis
	target  float64
	enabled bool
	sync    bool
}

// Controller is a set of scanner axes sharing one clock.  It satisfies the
// Mover, Stopper, InPositionQueryer, Speeder, Initializer, Enabler and
// SynchronizationController interfaces of generichttp/motion.
type Controller struct {
	mu    sync.Mutex
	coord *sharedclock.Coordinator
	axes  map[string]*axisState
	order []string

	// Timeout bounds synchronous moves
	Timeout time.Duration
}

// New returns a Controller moving axes through coord.  Axes start enabled
// and asynchronous.
func New(coord *sharedclock.Coordinator, axes ...Axis) (*Controller, error) {
	c := &Controller{coord: coord, axes: make(map[string]*axisState), Timeout: time.Minute}
	for _, a := range axes {
		if a.Name == "" || a.Channel == "" {
			return nil, fmt.Errorf("scanner: axis %q on %q: %w", a.Name, a.Channel, daqmx.ErrEmptyName)
		}
		if _, ok := c.axes[a.Name]; ok {
			return nil, fmt.Errorf("scanner: axis %s: %w", a.Name, daqmx.ErrDuplicateChannel)
		}
		c.axes[a.Name] = &axisState{Axis: a.withDefaults(), enabled: true}
		c.order = append(c.order, a.Name)
	}
	return c, nil
}

// Axes returns the axis names in the order they were given
func (c *Controller) Axes() []string { return append([]string(nil), c.order...) }

// Limits returns the software limits of the limited axes, for
// motion.LimitMiddleware
func (c *Controller) Limits() map[string]util.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]util.Limiter)
	for name, a := range c.axes {
		if a.limited() {
			out[name] = a.Limits
		}
	}
	return out
}

func (c *Controller) axis(name string) (*axisState, error) {
	a, ok := c.axes[name]
	if !ok {
		return nil, fmt.Errorf("scanner: %w %q", ErrNoAxis, name)
	}
	return a, nil
}

// GetPos returns the position of an axis in nm.  While the axis moves this
// is the step the clock has reached.
func (c *Controller) GetPos(axis string) (float64, error) {
	c.mu.Lock()
	a, err := c.axis(axis)
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	v, err := c.coord.Position(axis)
	if errors.Is(err, daqmx.ErrUnknownName) {
		// never driven
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return mathx.Round(v*a.Conversion, resolution), nil
}

// MoveAbs moves an axis to an absolute position in nm
func (c *Controller) MoveAbs(axis string, pos float64) error {
	c.mu.Lock()
	a, err := c.axis(axis)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if !a.enabled {
		c.mu.Unlock()
		return fmt.Errorf("scanner: %s: %w", axis, ErrDisabled)
	}
	if a.limited() && !a.Limits.Check(pos) {
		c.mu.Unlock()
		return fmt.Errorf("scanner: %s to %g nm: %w", axis, pos, ErrOutOfLimits)
	}
	path := StepPath(a.target, pos, a.StepSize)
	volts := make([]float64, len(path))
	for i, p := range path {
		volts[i] = p / a.Conversion
	}
	ch := a.channel()
	block := a.sync
	c.mu.Unlock()

	if _, err := c.coord.Move(axis, ch, volts); err != nil {
		return err
	}
	c.mu.Lock()
	a.target = pos
	c.mu.Unlock()
	if !block {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	return c.coord.Wait(ctx)
}

// MoveRel moves an axis by a relative amount in nm, from the last commanded
// position
func (c *Controller) MoveRel(axis string, delta float64) error {
	c.mu.Lock()
	a, err := c.axis(axis)
	var target float64
	if err == nil {
		target = a.target + delta
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.MoveAbs(axis, target)
}

// Home does nothing; piezo scanners have no home position
func (c *Controller) Home(axis string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.axis(axis); err != nil {
		return err
	}
	log.Printf("scanner: %s: no home position\n", axis)
	return nil
}

// Stop halts every axis, as they share one clock, and drops queued moves.
// The commanded positions become the last applied ones.
func (c *Controller) Stop(axis string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.axis(axis); err != nil {
		return err
	}
	c.coord.Stop()
	for name, a := range c.axes {
		if v, ok := c.coord.Applied(name); ok {
			a.target = mathx.Round(v*a.Conversion, resolution)
		}
	}
	return nil
}

// GetInPosition is true when nothing is moving and the axis is at its
// commanded position
func (c *Controller) GetInPosition(axis string) (bool, error) {
	c.mu.Lock()
	a, err := c.axis(axis)
	var target float64
	if err == nil {
		target = a.target
	}
	c.mu.Unlock()
	if err != nil {
		return false, err
	}
	if c.coord.Locked() {
		return false, nil
	}
	pos, err := c.GetPos(axis)
	if err != nil {
		return false, err
	}
	return math.Abs(pos-target) <= resolution, nil
}

// SetVelocity sets the speed of an axis in nm/s by changing its step size
func (c *Controller) SetVelocity(axis string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("scanner: %s: velocity %g: %w", axis, v, daqmx.ErrInvalidRange)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	a, err := c.axis(axis)
	if err != nil {
		return err
	}
	a.StepSize = v / c.coord.Frequency()
	return nil
}

// GetVelocity returns the speed of an axis in nm/s
func (c *Controller) GetVelocity(axis string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, err := c.axis(axis)
	if err != nil {
		return 0, err
	}
	return a.StepSize * c.coord.Frequency(), nil
}

// Initialize drives an axis to its commanded position on demand, which
// claims its output
func (c *Controller) Initialize(axis string) error {
	c.mu.Lock()
	a, err := c.axis(axis)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	ch, v := a.channel(), a.target/a.Conversion
	c.mu.Unlock()
	_, err = c.coord.Move(axis, ch, []float64{v})
	return err
}

// Enable allows an axis to move
func (c *Controller) Enable(axis string) error { return c.setEnabled(axis, true) }

// Disable forbids an axis from moving
func (c *Controller) Disable(axis string) error { return c.setEnabled(axis, false) }

func (c *Controller) setEnabled(axis string, b bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, err := c.axis(axis)
	if err != nil {
		return err
	}
	a.enabled = b
	return nil
}

// GetEnabled returns whether an axis may move
func (c *Controller) GetEnabled(axis string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, err := c.axis(axis)
	if err != nil {
		return false, err
	}
	return a.enabled, nil
}

// SetSynchronous makes moves of an axis block until they complete
func (c *Controller) SetSynchronous(axis string, b bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, err := c.axis(axis)
	if err != nil {
		return err
	}
	a.sync = b
	return nil
}

// GetSynchronous returns whether moves of an axis block
func (c *Controller) GetSynchronous(axis string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, err := c.axis(axis)
	if err != nil {
		return false, err
	}
	return a.sync, nil
}
