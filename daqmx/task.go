package daqmx

import (
	"log"
	"sync"
	"time"
)

// State is the lifecycle state of a Task
type State int

const (
	// Unconfigured tasks hold no driver handle
	Unconfigured State = iota
	// Configured tasks hold a handle with channels, timing and trigger applied
	Configured
	// Running tasks have been started
	Running
	// Stopped tasks were running and may be started again
	Stopped
)

var stateNames = []string{"Unconfigured", "Configured", "Running", "Stopped"}

func (s State) String() string { return name(stateNames, int(s)) }

// DefaultWriteTimeout bounds writes that would otherwise block forever
const DefaultWriteTimeout = 10 * time.Second

// Task is one hardware task.  It owns at most one driver handle at a time
// and is safe for concurrent use.  A Task must not be copied.
type Task struct {
	mu sync.Mutex

	drv    Driver
	name   string
	handle TaskHandle
	open   bool
	state  State

	channels []Channel
	timing   Timing
	trigger  Trigger

	// gen increments whenever a handle is torn down or a callback replaced,
	// invalidating callbacks still in flight from the driver thread
	gen uint64
	cb  *registration

	scalar   bool
	lastW    float64
	writeBuf []float64

	// WriteTimeout bounds analog and digital writes
	WriteTimeout time.Duration
}

// NewTask returns an unconfigured task.  No driver call is made until Configure.
func NewTask(drv Driver, name string) *Task {
	return &Task{drv: drv, name: name, WriteTimeout: DefaultWriteTimeout}
}

// Name returns the name the task was created with
func (t *Task) Name() string { return t.name }

// State returns the current lifecycle state
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Channels returns a copy of the configured channels
func (t *Task) Channels() []Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Channel(nil), t.channels...)
}

// Timing returns the configured timing, nil for on-demand tasks
func (t *Task) Timing() Timing {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timing
}

// Trigger returns the configured start trigger
func (t *Task) Trigger() Trigger {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trigger
}

// Configure (re)builds the task from the channels, timing and trigger.
// timing may be nil for an on-demand task.
//
// The descriptors are validated before anything else; a *ConfigError leaves
// the task exactly as it was.  Otherwise a running task is stopped and its
// handle released before a new one is created, which also drops any
// registered callback.  A failing driver call releases the new handle and
// leaves the task Unconfigured.
func (t *Task) Configure(chans []Channel, timing Timing, trig Trigger) error {
	if err := validateSet(chans); err != nil {
		return err
	}
	if timing != nil {
		if err := timing.validate(); err != nil {
			return err
		}
		if err := timingFits(timing, chans[0].Kind); err != nil {
			return err
		}
	}
	if err := trig.validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.teardown(); err != nil {
		log.Printf("daqmx: task %s: releasing previous handle: %v\n", t.name, err)
	}

	h, err := t.drv.CreateTask(t.name)
	if err != nil {
		return enrich(err, "CreateTask", "")
	}
	t.handle, t.open = h, true
	for _, c := range chans {
		if err := t.createChannel(c); err != nil {
			t.release()
			return err
		}
	}
	if err := t.applyTiming(timing); err != nil {
		t.release()
		return err
	}
	if err := t.applyTrigger(trig); err != nil {
		t.release()
		return err
	}
	t.channels = append([]Channel(nil), chans...)
	t.timing = timing
	t.trigger = trig
	t.state = Configured
	return nil
}

// timingFits rejects pacing the hardware cannot apply to a channel family
func timingFits(timing Timing, k Kind) error {
	switch timing.(type) {
	case ChangeDetection:
		if k != DigitalInput {
			return &ConfigError{Param: "timing", Value: "change detection on " + k.String(), Err: ErrInvalidTiming}
		}
	case Implicit:
		if k != CounterOutput && k != CounterInput {
			return &ConfigError{Param: "timing", Value: "implicit on " + k.String(), Err: ErrInvalidTiming}
		}
	}
	return nil
}

func (t *Task) createChannel(c Channel) error {
	var err error
	var op string
	h := t.handle
	switch {
	case c.Kind == AnalogInput && c.Analog == Voltage:
		op = "CreateAIVoltageChan"
		err = t.drv.CreateAIVoltageChan(h, c.Name, c.Termination, c.Min, c.Max)
	case c.Kind == AnalogInput && c.Analog == Current:
		op = "CreateAICurrentChan"
		err = t.drv.CreateAICurrentChan(h, c.Name, c.Termination, c.Min, c.Max)
	case c.Kind == AnalogInput && c.Analog == Thermocouple:
		op = "CreateAIThrmcplChan"
		err = t.drv.CreateAIThrmcplChan(h, c.Name, c.Min, c.Max, c.Thermocouple)
	case c.Kind == AnalogOutput && c.Analog == Voltage:
		op = "CreateAOVoltageChan"
		err = t.drv.CreateAOVoltageChan(h, c.Name, c.Min, c.Max)
	case c.Kind == AnalogOutput && c.Analog == Current:
		op = "CreateAOCurrentChan"
		err = t.drv.CreateAOCurrentChan(h, c.Name, c.Min, c.Max)
	case c.Kind == CounterInput && c.Counter == EdgeCounter:
		op = "CreateCICountEdgesChan"
		err = t.drv.CreateCICountEdgesChan(h, c.Name, c.Edge)
	case c.Kind == CounterInput && c.Counter == SemiPeriod:
		op = "CreateCISemiPeriodChan"
		err = t.drv.CreateCISemiPeriodChan(h, c.Name, 0, c.Max)
		if err == nil && c.Gate != "" {
			op = "SetCISemiPeriodTerm"
			err = t.drv.SetCISemiPeriodTerm(h, c.Name, c.Gate)
		}
		if err == nil && c.Timebase != "" {
			op = "SetCICtrTimebaseSrc"
			err = t.drv.SetCICtrTimebaseSrc(h, c.Name, c.Timebase)
		}
	case c.Kind == CounterOutput && c.Counter == ClockOutput:
		op = "CreateCOPulseChanFreq"
		err = t.drv.CreateCOPulseChanFreq(h, c.Name, c.Frequency, c.duty())
	case c.Kind == DigitalInput:
		op = "CreateDIChan"
		err = t.drv.CreateDIChan(h, c.Name)
	case c.Kind == DigitalOutput:
		op = "CreateDOChan"
		err = t.drv.CreateDOChan(h, c.Name)
	default:
		return &ConfigError{Param: "channel", Channel: c.Name,
			Value: c.Kind.String() + "/" + c.subtype(), Err: ErrUnsupportedChannelCombination}
	}
	return enrich(err, op, c.Name)
}

func (t *Task) applyTiming(timing Timing) error {
	if timing == nil {
		return nil
	}
	h := t.handle
	switch v := timing.(type) {
	case Clock:
		if v.SampleCount <= 1 {
			return nil
		}
		return enrich(t.drv.CfgSampClkTiming(h, v.Source, v.Frequency, v.Edge, mode(v.Continuous), v.SampleCount),
			"CfgSampClkTiming", v.Source)
	case ChangeDetection:
		if v.SampleCount <= 1 {
			return nil
		}
		return enrich(t.drv.CfgChangeDetectionTiming(h, v.Rising, v.Falling, mode(v.Continuous), v.SampleCount),
			"CfgChangeDetectionTiming", "")
	case Implicit:
		return enrich(t.drv.CfgImplicitTiming(h, mode(v.Continuous), v.SampleCount), "CfgImplicitTiming", "")
	default:
		return &ConfigError{Param: "timing", Err: ErrInvalidTiming}
	}
}

func (t *Task) applyTrigger(trig Trigger) error {
	kind, err := trig.Kind()
	if err != nil {
		return err
	}
	switch kind {
	case DigitalEdgeTrigger:
		return enrich(t.drv.CfgDigEdgeStartTrig(t.handle, trig.Source, trig.Edge), "CfgDigEdgeStartTrig", trig.Source)
	case AnalogEdgeTrigger:
		return enrich(t.drv.CfgAnlgEdgeStartTrig(t.handle, trig.Source, trig.Edge, trig.Level), "CfgAnlgEdgeStartTrig", trig.Source)
	default:
		return enrich(t.drv.DisableStartTrig(t.handle), "DisableStartTrig", "")
	}
}

// release clears a half built handle after a driver error.  The clear error,
// if any, is secondary to the one being returned and is only logged.
func (t *Task) release() {
	if err := t.teardown(); err != nil {
		log.Printf("daqmx: task %s: releasing handle after failure: %v\n", t.name, err)
	}
}

// teardown stops and clears the handle, if any.  The task is left
// Unconfigured regardless of errors.  Caller holds t.mu.
func (t *Task) teardown() error {
	if !t.open {
		t.state = Unconfigured
		return nil
	}
	var first error
	if t.state == Running {
		if err := t.drv.StopTask(t.handle); err != nil {
			first = enrich(err, "StopTask", "")
		}
	}
	if err := t.drv.ClearTask(t.handle); err != nil && first == nil {
		first = enrich(err, "ClearTask", "")
	}
	t.open = false
	t.gen++
	t.cb = nil
	t.channels = nil
	t.timing = nil
	t.trigger = Trigger{}
	t.writeBuf = nil
	t.scalar = false
	t.state = Unconfigured
	return first
}

// Start starts a Configured or Stopped task
func (t *Task) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Configured && t.state != Stopped {
		return invalidState("start", t.state)
	}
	if err := t.drv.StartTask(t.handle); err != nil {
		return enrich(err, "StartTask", "")
	}
	t.state = Running
	return nil
}

// Stop stops a running task.  It is a no-op in any other state.  The task is
// Stopped afterwards even if the driver complains, and the complaint is
// dropped when the driver reports the task already done.
func (t *Task) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return nil
	}
	return t.stop()
}

func (t *Task) stop() error {
	err := t.drv.StopTask(t.handle)
	t.state = Stopped
	if err == nil {
		return nil
	}
	if done, e := t.drv.IsTaskDone(t.handle); e == nil && done {
		return nil
	}
	return enrich(err, "StopTask", "")
}

// Close stops the task if running and releases the handle.  Closing an
// Unconfigured task does nothing.
func (t *Task) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.teardown()
}

// IsDone returns true when a finite task has moved all of its samples
func (t *Task) IsDone() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return false, invalidState("query done", t.state)
	}
	done, err := t.drv.IsTaskDone(t.handle)
	return done, enrich(err, "IsTaskDone", "")
}

// WaitUntilDone blocks until the task is done or the timeout expires.
// The task lock is held for the duration, so callbacks are delayed.
func (t *Task) WaitUntilDone(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return invalidState("wait", t.state)
	}
	return enrich(t.drv.WaitUntilTaskDone(t.handle, timeout), "WaitUntilTaskDone", "")
}

// PulseCount is the number of pulses generated so far by a counter output
func (t *Task) PulseCount(counter string) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return 0, invalidState("pulse count", t.state)
	}
	n, err := t.drv.GetCOCount(t.handle, counter)
	return n, enrich(err, "GetCOCount", counter)
}
