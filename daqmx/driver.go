package daqmx

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TaskHandle is the driver's opaque reference to a task
type TaskHandle uint64

// Direction is input or output, used when asking a device for its limits
type Direction int

const (
	// Input is the acquisition side of a device
	Input Direction = iota
	// Output is the generation side of a device
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "Output"
	}
	return "Input"
}

// Range is a voltage span supported by a device
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r Range) String() string { return fmt.Sprintf("%g,%g", r.Min, r.Max) }

// Inventory describes the devices visible to a driver.  It answers from
// whatever the driver knows and never touches a task.
type Inventory interface {
	// Devices lists the device names, e.g. Dev1
	Devices() ([]string, error)

	// ProductType returns the model of a device, e.g. PCIe-6353
	ProductType(device string) (string, error)

	// PhysicalChannels lists the device qualified channels of a kind.
	// Terminals lists the routable terminals, e.g. /Dev1/PFI0
	PhysicalChannels(device string, kind Kind) ([]string, error)

	// MaxRate is the maximum single channel sample rate, Hz
	MaxRate(device string, dir Direction) (float64, error)

	// VoltageRanges lists the voltage ranges of the device
	VoltageRanges(device string, dir Direction) ([]Range, error)

	// DigitalTriggerSupported is true if the device accepts a digital edge start trigger
	DigitalTriggerSupported(device string) (bool, error)

	// AnalogTriggerSupported is true if the device accepts an analog edge start trigger
	AnalogTriggerSupported(device string) (bool, error)
}

// Driver is the vendor driver.  Each method maps to one DAQmx procedure.
// Errors should be *DriverError with Code set; the Task decorates them with
// the procedure and channel before returning them to callers.
//
// Event callbacks are invoked on a goroutine owned by the driver.  A nil
// callback unregisters the event.
type Driver interface {
	Inventory

	CreateTask(name string) (TaskHandle, error)
	ClearTask(h TaskHandle) error
	StartTask(h TaskHandle) error
	StopTask(h TaskHandle) error
	IsTaskDone(h TaskHandle) (bool, error)
	WaitUntilTaskDone(h TaskHandle, timeout time.Duration) error

	CreateAIVoltageChan(h TaskHandle, physical string, term Termination, min, max float64) error
	CreateAICurrentChan(h TaskHandle, physical string, term Termination, min, max float64) error
	CreateAIThrmcplChan(h TaskHandle, physical string, min, max float64, typ ThermocoupleType) error
	CreateAOVoltageChan(h TaskHandle, physical string, min, max float64) error
	CreateAOCurrentChan(h TaskHandle, physical string, min, max float64) error
	CreateCICountEdgesChan(h TaskHandle, counter string, edge Edge) error
	CreateCISemiPeriodChan(h TaskHandle, counter string, min, max float64) error
	CreateCOPulseChanFreq(h TaskHandle, counter string, freq, duty float64) error

	// SetCISemiPeriodTerm routes the terminal whose semi periods a counter measures
	SetCISemiPeriodTerm(h TaskHandle, counter, terminal string) error

	// SetCICtrTimebaseSrc routes the terminal a counter counts edges of
	SetCICtrTimebaseSrc(h TaskHandle, counter, terminal string) error

	CreateDIChan(h TaskHandle, lines string) error
	CreateDOChan(h TaskHandle, lines string) error

	CfgSampClkTiming(h TaskHandle, source string, rate float64, edge Edge, mode SampleMode, samples int) error
	CfgImplicitTiming(h TaskHandle, mode SampleMode, samples int) error
	CfgChangeDetectionTiming(h TaskHandle, rising, falling string, mode SampleMode, samples int) error
	DisableStartTrig(h TaskHandle) error
	CfgDigEdgeStartTrig(h TaskHandle, source string, edge Edge) error
	CfgAnlgEdgeStartTrig(h TaskHandle, source string, edge Edge, level float64) error

	// WriteAnalogScalarF64 writes one value to a single channel task
	WriteAnalogScalarF64(h TaskHandle, autostart bool, timeout time.Duration, value float64) error

	// WriteAnalogF64 writes samples per channel, values grouped by channel.
	// It returns the number of samples per channel written.
	WriteAnalogF64(h TaskHandle, samples int, autostart bool, timeout time.Duration, values []float64) (int, error)

	// ReadAnalogF64 fills buf, grouped by channel, and returns the number of
	// samples per channel read
	ReadAnalogF64(h TaskHandle, samples int, timeout time.Duration, buf []float64) (int, error)
	ReadCounterU32(h TaskHandle, samples int, timeout time.Duration, buf []uint32) (int, error)
	ReadDigitalLines(h TaskHandle, samples int, timeout time.Duration, buf []uint8) (int, error)
	WriteDigitalLines(h TaskHandle, samples int, autostart bool, timeout time.Duration, values []uint8) (int, error)

	// GetWriteCurrWritePos is the index of the sample most recently generated
	GetWriteCurrWritePos(h TaskHandle) (uint64, error)

	// GetCOCount is the number of pulses a counter output has generated
	GetCOCount(h TaskHandle, counter string) (uint32, error)

	RegisterDoneEvent(h TaskHandle, fn func(status error)) error
	RegisterEveryNSamplesEvent(h TaskHandle, n int, fn func()) error
	RegisterSignalEvent(h TaskHandle, fn func()) error
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]func() Driver)
)

// Register makes a driver available by name to Open.  It panics if called
// twice with the same name or a nil factory.
func Register(name string, factory func() Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if factory == nil {
		panic("daqmx: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("daqmx: Register called twice for driver " + name)
	}
	drivers[name] = factory
}

// Drivers returns a sorted list of the registered driver names
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	out := make([]string, 0, len(drivers))
	for k := range drivers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open returns a new instance of the named driver
func Open(name string) (Driver, error) {
	driversMu.RLock()
	f, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q, have %v", ErrUnknownDriver, name, Drivers())
	}
	return f(), nil
}
