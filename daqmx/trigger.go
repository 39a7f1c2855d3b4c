package daqmx

import "strings"

// TriggerKind is the flavor of start trigger a source string selects
type TriggerKind int

const (
	// NoTrigger means the start trigger is disabled
	NoTrigger TriggerKind = iota
	// DigitalEdgeTrigger starts on an edge of a PFI terminal
	DigitalEdgeTrigger
	// AnalogEdgeTrigger starts when an analog input crosses Level
	AnalogEdgeTrigger
)

// Trigger is a start trigger
type Trigger struct {
	Enabled bool

	// Source is a PFI terminal (/Dev1/PFI0) or an analog input (Dev1/ai0)
	Source string

	Edge Edge

	// Level is the crossing voltage of an analog edge trigger
	Level float64
}

// Kind classifies the trigger by the shape of its source
func (t Trigger) Kind() (TriggerKind, error) {
	if !t.Enabled {
		return NoTrigger, nil
	}
	seg := t.Source
	if i := strings.LastIndex(seg, "/"); i >= 0 {
		seg = seg[i+1:]
	}
	switch {
	case strings.HasPrefix(seg, "PFI"):
		return DigitalEdgeTrigger, nil
	case strings.HasPrefix(seg, "ai"):
		return AnalogEdgeTrigger, nil
	default:
		return NoTrigger, &ConfigError{Param: "trigger source", Value: t.Source, Err: ErrInvalidTriggerSource}
	}
}

func (t Trigger) validate() error {
	if _, err := t.Kind(); err != nil {
		return err
	}
	if t.Enabled && t.Edge != Rising && t.Edge != Falling {
		return &ConfigError{Param: "trigger edge", Value: t.Edge.String(), Err: ErrUnknownName}
	}
	return nil
}
