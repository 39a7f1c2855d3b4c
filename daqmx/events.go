package daqmx

import "fmt"

// EventKind is the driver event a callback is attached to
type EventKind int

const (
	// DoneEvent fires when a finite task completes or a task errors out
	DoneEvent EventKind = iota
	// SampleEvent fires on each sample clock tick
	SampleEvent
	// EveryNSamplesEvent fires each time N samples move through the buffer
	EveryNSamplesEvent
)

var eventNames = []string{"done", "sample", "Nsamples"}

func (k EventKind) String() string { return name(eventNames, int(k)) }

// Event selects what a callback listens for
type Event struct {
	Kind EventKind

	// N is the sample interval of an EveryNSamplesEvent
	N int
}

// Done is the task completion event
func Done() Event { return Event{Kind: DoneEvent} }

// EverySample fires per sample clock tick
func EverySample() Event { return Event{Kind: SampleEvent} }

// EveryNSamples fires every n samples
func EveryNSamples(n int) Event { return Event{Kind: EveryNSamplesEvent, N: n} }

func (e Event) String() string {
	if e.Kind == EveryNSamplesEvent {
		return fmt.Sprintf("every %d samples", e.N)
	}
	return e.Kind.String()
}

// Notification is handed to a Callback
type Notification struct {
	// Task is the name of the task that raised the event
	Task string

	Event Event

	// Err is the status the driver reported with a done event
	Err error
}

// Callback receives driver events.  It runs on the driver's event goroutine
// while the Task's lock is held, so it must not call methods of the same
// Task; post a message somewhere instead.
type Callback func(Notification)

type registration struct {
	ev  Event
	fn  Callback
	gen uint64
}

// RegisterCallback attaches fn to ev, replacing any previous callback.  The
// task must be configured and not running.  A nil fn only removes the
// previous callback.  Reconfiguring the task drops the registration.
func (t *Task) RegisterCallback(ev Event, fn Callback) error {
	if ev.Kind == EveryNSamplesEvent && ev.N < 1 {
		return &ConfigError{Param: "event", Value: ev.String(), Err: ErrInvalidTiming}
	}
	if ev.Kind < DoneEvent || ev.Kind > EveryNSamplesEvent {
		return &ConfigError{Param: "event", Value: ev.String(), Err: ErrUnknownName}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open || t.state == Running {
		return invalidState("register callback", t.state)
	}
	if t.cb != nil {
		if err := t.unregister(t.cb.ev); err != nil {
			return err
		}
		t.cb = nil
	}
	t.gen++
	if fn == nil {
		return nil
	}
	gen := t.gen
	var err error
	switch ev.Kind {
	case DoneEvent:
		err = enrich(t.drv.RegisterDoneEvent(t.handle, func(status error) {
			t.dispatch(gen, ev, fn, status)
		}), "RegisterDoneEvent", "")
	case SampleEvent:
		err = enrich(t.drv.RegisterSignalEvent(t.handle, func() {
			t.dispatch(gen, ev, fn, nil)
		}), "RegisterSignalEvent", "")
	case EveryNSamplesEvent:
		err = enrich(t.drv.RegisterEveryNSamplesEvent(t.handle, ev.N, func() {
			t.dispatch(gen, ev, fn, nil)
		}), "RegisterEveryNSamplesEvent", "")
	}
	if err != nil {
		return err
	}
	t.cb = &registration{ev: ev, fn: fn, gen: gen}
	return nil
}

func (t *Task) unregister(ev Event) error {
	switch ev.Kind {
	case DoneEvent:
		return enrich(t.drv.RegisterDoneEvent(t.handle, nil), "RegisterDoneEvent", "")
	case SampleEvent:
		return enrich(t.drv.RegisterSignalEvent(t.handle, nil), "RegisterSignalEvent", "")
	default:
		return enrich(t.drv.RegisterEveryNSamplesEvent(t.handle, ev.N, nil), "RegisterEveryNSamplesEvent", "")
	}
}

// dispatch is the trampoline between the driver thread and a Callback.
// Events from a torn down handle or a replaced registration are dropped.
// A done task stays Running until Stop is called, as with the driver.
func (t *Task) dispatch(gen uint64, ev Event, fn Callback, status error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cb == nil || t.cb.gen != gen {
		return
	}
	if status != nil {
		status = enrich(status, "DoneEvent", "")
	}
	fn(Notification{Task: t.name, Event: ev, Err: status})
}
