package daqmx

import (
	"fmt"
	"math"
	"strings"
)

// Kind is the role of a physical channel
type Kind int

// AnalogType is the electrical quantity an analog channel measures or sources
type AnalogType int

// CounterType is the function a counter channel is used for
type CounterType int

// Termination is the input terminal configuration of an analog input
type Termination int

// ThermocoupleType is the type of a thermocouple wired to an analog input
type ThermocoupleType int

// Edge is a signal edge polarity
type Edge int

const (
	// AnalogInput is an ADC channel, ai
	AnalogInput Kind = iota
	// AnalogOutput is a DAC channel, ao
	AnalogOutput
	// CounterInput is a counter used to count edges or measure periods, ctr
	CounterInput
	// CounterOutput is a counter used to generate pulses, ctr
	CounterOutput
	// DigitalInput is one or more digital lines read as inputs
	DigitalInput
	// DigitalOutput is one or more digital lines driven as outputs
	DigitalOutput
	// Terminals is not a channel kind, it is used to enumerate routable terminals (PFI...)
	Terminals
)

const (
	// Voltage is measured or sourced in volts
	Voltage AnalogType = iota
	// Current is measured or sourced in amps
	Current
	// Thermocouple is a temperature measurement in degrees C, inputs only
	Thermocouple
)

const (
	// EdgeCounter counts edges on the counter's source terminal
	EdgeCounter CounterType = iota
	// SemiPeriod measures the time between consecutive edges in ticks
	SemiPeriod
	// ClockOutput generates a pulse train at a fixed frequency
	ClockOutput
)

const (
	// TermDefault lets the driver choose the terminal configuration
	TermDefault Termination = iota
	// TermRSE is referenced single ended
	TermRSE
	// TermNRSE is non-referenced single ended
	TermNRSE
	// TermDifferential is differential
	TermDifferential
	// TermPseudodifferential is pseudodifferential
	TermPseudodifferential
)

const (
	// TypeJ is a J type thermocouple
	TypeJ ThermocoupleType = iota
	// TypeK is a K type thermocouple
	TypeK
	// TypeN is a N type thermocouple
	TypeN
	// TypeR is a R type thermocouple
	TypeR
	// TypeS is a S type thermocouple
	TypeS
	// TypeT is a T type thermocouple
	TypeT
	// TypeB is a B type thermocouple
	TypeB
	// TypeE is a E type thermocouple
	TypeE
)

const (
	// Rising is a low to high transition
	Rising Edge = iota
	// Falling is a high to low transition
	Falling
)

var (
	kindNames         = []string{"Analog_Input", "Analog_Output", "Counter_Input", "Counter_Output", "Digital_Input", "Digital_Output", "Terminals"}
	analogNames       = []string{"Voltage", "Current", "Thermocouple"}
	counterNames      = []string{"Edge Counter", "SemiPeriod Input", "Clock Output"}
	terminationNames  = []string{"Default", "RSE", "NRSE", "Diff", "PseudoDiff"}
	thermocoupleNames = []string{"J", "K", "N", "R", "S", "T", "B", "E"}
	edgeNames         = []string{"Rising", "Falling"}
)

func name(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("<%d>", i)
	}
	return names[i]
}

func parse(names []string, s, what string) (int, error) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return i, nil
		}
	}
	return 0, &ConfigError{Param: what, Value: s, Err: ErrUnknownName}
}

func (k Kind) String() string             { return name(kindNames, int(k)) }
func (a AnalogType) String() string       { return name(analogNames, int(a)) }
func (c CounterType) String() string      { return name(counterNames, int(c)) }
func (t Termination) String() string      { return name(terminationNames, int(t)) }
func (t ThermocoupleType) String() string { return name(thermocoupleNames, int(t)) }
func (e Edge) String() string             { return name(edgeNames, int(e)) }

// ParseKind converts a string such as "Analog_Input" to a Kind.  Case insensitive.
func ParseKind(s string) (Kind, error) {
	i, err := parse(kindNames, s, "kind")
	return Kind(i), err
}

// ParseAnalogType converts "Voltage", "Current" or "Thermocouple" to an AnalogType
func ParseAnalogType(s string) (AnalogType, error) {
	i, err := parse(analogNames, s, "analog type")
	return AnalogType(i), err
}

// ParseCounterType converts "Edge Counter", "SemiPeriod Input" or "Clock Output" to a CounterType
func ParseCounterType(s string) (CounterType, error) {
	i, err := parse(counterNames, s, "counter type")
	return CounterType(i), err
}

// ParseTermination converts "Default", "RSE", "NRSE", "Diff" or "PseudoDiff" to a Termination
func ParseTermination(s string) (Termination, error) {
	i, err := parse(terminationNames, s, "termination")
	return Termination(i), err
}

// ParseThermocoupleType converts a single letter type to a ThermocoupleType
func ParseThermocoupleType(s string) (ThermocoupleType, error) {
	i, err := parse(thermocoupleNames, s, "thermocouple type")
	return ThermocoupleType(i), err
}

// ParseEdge converts "Rising" or "Falling" to an Edge
func ParseEdge(s string) (Edge, error) {
	i, err := parse(edgeNames, s, "edge")
	return Edge(i), err
}

// Channel describes one physical line or terminal and its electrical or
// counting semantics.  Which fields matter depends on Kind:
//  AnalogInput   Analog, Min, Max, Termination, Thermocouple
//  AnalogOutput  Analog, Min, Max
//  CounterInput  Counter (EdgeCounter or SemiPeriod), Edge, Max (semi period, ticks),
//                Gate and Timebase (semi period only)
//  CounterOutput Counter (ClockOutput), Frequency, DutyCycle
//  DigitalInput, DigitalOutput  nothing beyond Name
// Use the constructors rather than building the struct by hand.
type Channel struct {
	// Name is the device qualified physical channel, e.g. Dev1/ai0
	Name string

	Kind Kind

	Analog AnalogType

	Counter CounterType

	// Min and Max are the expected range in physical units
	Min, Max float64

	Termination Termination

	Thermocouple ThermocoupleType

	Edge Edge

	// Frequency is the pulse frequency of a clock output, Hz
	Frequency float64

	// DutyCycle of a clock output, (0,1).  Zero means 0.5.
	DutyCycle float64

	// Gate is the terminal whose semi periods are measured, empty for the
	// counter's default input
	Gate string

	// Timebase is the terminal whose edges are counted during each semi
	// period, empty for the counter's internal timebase
	Timebase string
}

// AIVoltage returns a voltage analog input channel
func AIVoltage(name string, min, max float64, term Termination) Channel {
	return Channel{Name: name, Kind: AnalogInput, Analog: Voltage, Min: min, Max: max, Termination: term}
}

// AICurrent returns a current analog input channel
func AICurrent(name string, min, max float64, term Termination) Channel {
	return Channel{Name: name, Kind: AnalogInput, Analog: Current, Min: min, Max: max, Termination: term}
}

// AIThermocouple returns a thermocouple channel, min and max in deg C
func AIThermocouple(name string, min, max float64, typ ThermocoupleType) Channel {
	return Channel{Name: name, Kind: AnalogInput, Analog: Thermocouple, Min: min, Max: max, Thermocouple: typ}
}

// AOVoltage returns a voltage analog output channel
func AOVoltage(name string, min, max float64) Channel {
	return Channel{Name: name, Kind: AnalogOutput, Analog: Voltage, Min: min, Max: max}
}

// AOCurrent returns a current analog output channel
func AOCurrent(name string, min, max float64) Channel {
	return Channel{Name: name, Kind: AnalogOutput, Analog: Current, Min: min, Max: max}
}

// EdgeCounterChannel returns a counter input that counts edges of the given polarity
func EdgeCounterChannel(name string, edge Edge) Channel {
	return Channel{Name: name, Kind: CounterInput, Counter: EdgeCounter, Edge: edge}
}

// SemiPeriodChannel returns a counter input measuring semi periods up to max ticks
func SemiPeriodChannel(name string, max float64) Channel {
	return Channel{Name: name, Kind: CounterInput, Counter: SemiPeriod, Max: max}
}

// GatedCounterChannel returns a semi period counter which counts the edges of
// source during each half period of the counter clock, e.g. photons between
// two edges of a Dev1/ctr0 pulse train
func GatedCounterChannel(name, clock, source string) Channel {
	return Channel{Name: name, Kind: CounterInput, Counter: SemiPeriod, Max: math.MaxUint32,
		Gate: InternalOutput(clock), Timebase: source}
}

// ClockOutputChannel returns a counter output generating a 50% duty pulse train
func ClockOutputChannel(name string, frequency float64) Channel {
	return Channel{Name: name, Kind: CounterOutput, Counter: ClockOutput, Frequency: frequency, DutyCycle: 0.5}
}

// DigitalIn returns a digital input over one or more lines, e.g. Dev1/port0/line0:3
func DigitalIn(lines string) Channel {
	return Channel{Name: lines, Kind: DigitalInput}
}

// DigitalOut returns a digital output over one or more lines
func DigitalOut(lines string) Channel {
	return Channel{Name: lines, Kind: DigitalOutput}
}

// Device returns the device prefix of the channel name
func (c Channel) Device() string {
	return DevicePrefix(c.Name)
}

func (c Channel) duty() float64 {
	if c.DutyCycle == 0 {
		return 0.5
	}
	return c.DutyCycle
}

// family groups kinds that may share one task
func (k Kind) family() string {
	switch k {
	case AnalogInput:
		return "ai"
	case AnalogOutput:
		return "ao"
	case CounterInput, CounterOutput:
		return "ctr"
	case DigitalInput:
		return "di"
	case DigitalOutput:
		return "do"
	default:
		return ""
	}
}

// Validate checks the descriptor for internal consistency.  The error, if
// any, is a *ConfigError.
func (c Channel) Validate() error {
	if c.Name == "" {
		return &ConfigError{Param: "channel", Err: ErrEmptyName}
	}
	unsupported := func() error {
		return &ConfigError{Param: "channel", Channel: c.Name,
			Value: fmt.Sprintf("%s/%s", c.Kind, c.subtype()), Err: ErrUnsupportedChannelCombination}
	}
	if (c.Gate != "" || c.Timebase != "") && !(c.Kind == CounterInput && c.Counter == SemiPeriod) {
		return unsupported()
	}
	switch c.Kind {
	case AnalogInput, AnalogOutput:
		switch c.Analog {
		case Voltage, Current:
		case Thermocouple:
			if c.Kind == AnalogOutput {
				return unsupported()
			}
			if c.Thermocouple < TypeJ || c.Thermocouple > TypeE {
				return &ConfigError{Param: "thermocouple type", Channel: c.Name, Value: c.Thermocouple.String(), Err: ErrUnknownName}
			}
		default:
			return unsupported()
		}
		if !(c.Min < c.Max) {
			return &ConfigError{Param: "range", Channel: c.Name,
				Value: fmt.Sprintf("%g,%g", c.Min, c.Max), Err: ErrInvalidRange}
		}
		if c.Kind == AnalogInput && (c.Termination < TermDefault || c.Termination > TermPseudodifferential) {
			return &ConfigError{Param: "termination", Channel: c.Name, Value: c.Termination.String(), Err: ErrUnknownName}
		}
	case CounterInput:
		switch c.Counter {
		case EdgeCounter:
		case SemiPeriod:
			if c.Max <= 0 {
				return &ConfigError{Param: "range", Channel: c.Name, Value: fmt.Sprintf("%g", c.Max), Err: ErrInvalidRange}
			}
		default:
			return unsupported()
		}
	case CounterOutput:
		if c.Counter != ClockOutput {
			return unsupported()
		}
		if c.Frequency <= 0 {
			return &ConfigError{Param: "frequency", Channel: c.Name, Value: fmt.Sprintf("%g", c.Frequency), Err: ErrInvalidTiming}
		}
		if d := c.duty(); d <= 0 || d >= 1 {
			return &ConfigError{Param: "duty cycle", Channel: c.Name, Value: fmt.Sprintf("%g", d), Err: ErrInvalidRange}
		}
	case DigitalInput, DigitalOutput:
	default:
		return unsupported()
	}
	if c.Kind == CounterInput || c.Kind == CounterOutput {
		if c.Edge != Rising && c.Edge != Falling {
			return &ConfigError{Param: "edge", Channel: c.Name, Value: c.Edge.String(), Err: ErrUnknownName}
		}
	}
	return nil
}

func (c Channel) subtype() string {
	switch c.Kind {
	case AnalogInput, AnalogOutput:
		return c.Analog.String()
	case CounterInput, CounterOutput:
		return c.Counter.String()
	default:
		return "lines"
	}
}

// validateSet checks every channel and that all of them may live in one task
func validateSet(chans []Channel) error {
	if len(chans) == 0 {
		return &ConfigError{Param: "channels", Err: ErrNoChannels}
	}
	fam := chans[0].Kind.family()
	seen := make(map[string]bool, len(chans))
	for _, c := range chans {
		if err := c.Validate(); err != nil {
			return err
		}
		if c.Kind.family() != fam {
			return &ConfigError{Param: "channels", Channel: c.Name,
				Value: fmt.Sprintf("%s mixed with %s", c.Kind, chans[0].Kind), Err: ErrUnsupportedChannelCombination}
		}
		if seen[c.Name] {
			return &ConfigError{Param: "channels", Channel: c.Name, Err: ErrDuplicateChannel}
		}
		seen[c.Name] = true
	}
	return nil
}
