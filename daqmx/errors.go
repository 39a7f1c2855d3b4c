package daqmx

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedChannelCombination is generated when the kind and subtype
	// of a channel do not map to a driver call, or when channels of different
	// families are put in one task
	ErrUnsupportedChannelCombination = errors.New("unsupported channel combination")

	// ErrInvalidTriggerSource is generated when an enabled trigger's source is
	// neither a PFI terminal nor an analog input
	ErrInvalidTriggerSource = errors.New("unsupported trigger source")

	// ErrInvalidTiming is generated for a non-positive frequency or sample count
	ErrInvalidTiming = errors.New("invalid timing")

	// ErrInvalidRange is generated when min >= max
	ErrInvalidRange = errors.New("invalid range")

	// ErrNoChannels is generated when a task is configured with no channels
	ErrNoChannels = errors.New("no channels")

	// ErrDuplicateChannel is generated when a physical channel appears twice in one task
	ErrDuplicateChannel = errors.New("channel listed twice")

	// ErrEmptyName is generated when a channel has no name
	ErrEmptyName = errors.New("empty channel name")

	// ErrUnknownName is generated when an enumerated value is not understood
	ErrUnknownName = errors.New("unknown value")

	// ErrInvalidState is generated when a Task method is called out of order,
	// e.g. a write before Configure or Start on a running task
	ErrInvalidState = errors.New("invalid task state")

	// ErrCapacityExceeded is generated when more channels are requested on a
	// device than it has
	ErrCapacityExceeded = errors.New("device channel capacity exceeded")

	// ErrUnknownDriver is generated by Open for an unregistered driver name
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrorCodes maps DAQmx status codes to their description.  Only the codes
	// the suite runs into are listed; others are reported by number.
	ErrorCodes = map[int]string{
		0:       "no error",
		-200077: "requested value is not a supported value for this property",
		-200088: "task specified is invalid or does not exist",
		-200170: "physical channel specified does not exist on this device",
		-200279: "application is not able to keep up with the hardware acquisition",
		-200284: "some or all of the samples requested have not yet been acquired",
		-200290: "the generation has stopped to prevent the regeneration of old samples",
		-200292: "some or all of the samples to write could not be written to the buffer yet",
		-200428: "value passed to the task/channels in parameter is not a valid channel",
		-200474: "specified operation did not complete, because the specified timeout expired",
		-200479: "specified operation cannot be performed while the task is running",
		-200489: "specified channel cannot be added to the task, because a channel with the same name is already in the task",
		-200557: "specified property cannot be set while the task is running",
		-200559: "task cannot contain a channel of the specified type, because it already contains channels of a different type",
		-200587: "requested operation could not be performed, because the specified digital lines are either reserved or the device is not present",
		-200602: "task contains physical channels on one or more devices that do not support triggering",
		-200985: "the specified event cannot be registered while the task is running",
		-50103:  "the specified resource is reserved",
		200010:  "finite acquisition or generation has been stopped before the requested number of samples were acquired or generated",
	}
)

// DecodeError returns the human readable message for a DAQmx status code
func DecodeError(code int) string {
	if s, ok := ErrorCodes[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown DAQmx status %d", code)
}

// ConfigError is an invalid or unsupported channel, timing or trigger
// description.  It is reported before any hardware is touched.
type ConfigError struct {
	Param   string
	Channel string
	Value   string
	Err     error
}

func (e *ConfigError) Error() string {
	s := "daqmx: configuration: " + e.Param
	if e.Channel != "" {
		s += " of " + e.Channel
	}
	if e.Value != "" {
		s += " (" + e.Value + ")"
	}
	return s + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DriverError is a failed call into the vendor driver
type DriverError struct {
	// Code is the DAQmx status code
	Code int

	// Message is the decoded description of Code
	Message string

	// Op is the driver procedure that failed
	Op string

	// Channel is the channel being operated on, if any
	Channel string
}

// NewDriverError builds a DriverError with the message decoded from code
func NewDriverError(code int) *DriverError {
	return &DriverError{Code: code, Message: DecodeError(code)}
}

func (e *DriverError) Error() string {
	s := fmt.Sprintf("daqmx: %d: %s", e.Code, e.Message)
	if e.Op != "" {
		s += " encountered at call to " + e.Op
	}
	if e.Channel != "" {
		s += " on " + e.Channel
	}
	return s
}

// enrich decorates a driver error with the procedure and channel.  Errors
// which are not DriverErrors are wrapped in one with a zero code.
func enrich(err error, op, channel string) error {
	if err == nil {
		return nil
	}
	var de *DriverError
	if errors.As(err, &de) {
		out := *de
		if out.Message == "" {
			out.Message = DecodeError(out.Code)
		}
		out.Op = op
		out.Channel = channel
		return &out
	}
	return &DriverError{Message: err.Error(), Op: op, Channel: channel}
}

// ShortIOError is generated when fewer samples were moved than requested.
// It is fatal for the call that produced it; no data is returned.
type ShortIOError struct {
	Op       string
	Actual   int
	Expected int
}

func (e *ShortIOError) Error() string {
	return fmt.Sprintf("daqmx: insufficient number of samples %s: %d/%d", e.Op, e.Actual, e.Expected)
}

// ShapeError is generated when a buffer does not hold samples*channels values
type ShapeError struct {
	Samples  int
	Channels int
	Len      int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("daqmx: the shape of the values is incorrect, should be %d x %d, got %d values",
		e.Samples, e.Channels, e.Len)
}

func invalidState(op string, s State) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidState, op, s)
}
