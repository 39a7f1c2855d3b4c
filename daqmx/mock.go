package daqmx

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

func init() {
	Register("mock", func() Driver { return NewMockDriver(DefaultMockDevices()...) })
}

// MockDevice describes a simulated device.  Channel names are generated from
// the counts: Dev1/ai0, Dev1/ao0, Dev1/ctr0, Dev1/port0/line0, /Dev1/PFI0.
type MockDevice struct {
	Name    string
	Product string

	AI, AO, Counters, Lines, PFI int

	MaxInputRate, MaxOutputRate float64

	InputRanges, OutputRanges []Range

	DigitalTrigger, AnalogTrigger bool
}

// DefaultMockDevices is an X series card and a small USB device
func DefaultMockDevices() []MockDevice {
	return []MockDevice{
		{Name: "Dev1", Product: "PCIe-6353", AI: 32, AO: 4, Counters: 4, Lines: 32, PFI: 16,
			MaxInputRate: 1.25e6, MaxOutputRate: 2.86e6,
			InputRanges:  []Range{{-10, 10}, {-5, 5}, {-2, 2}, {-1, 1}, {-0.5, 0.5}, {-0.2, 0.2}, {-0.1, 0.1}},
			OutputRanges: []Range{{-10, 10}, {-5, 5}},
			DigitalTrigger: true, AnalogTrigger: true},
		{Name: "Dev2", Product: "USB-6001", AI: 8, AO: 2, Counters: 1, Lines: 13, PFI: 2,
			MaxInputRate: 2e4, MaxOutputRate: 5e3,
			InputRanges:  []Range{{-10, 10}},
			OutputRanges: []Range{{-10, 10}},
			DigitalTrigger: true},
	}
}

type mockChan struct {
	name  string
	kind  Kind
	freq  float64
	edges Edge

	gate     string
	timebase string
}

type mockTask struct {
	name  string
	chans []mockChan

	clocked bool
	source  string
	rate    float64
	mode    SampleMode
	samples int

	running bool
	done    bool
	run     int
	started time.Time

	written  []float64
	nWritten int

	onDone   func(error)
	onSample func()
	onN      func()
	n        int
}

func (t *mockTask) kind() Kind {
	if len(t.chans) == 0 {
		return Terminals
	}
	return t.chans[0].kind
}

// MockDriver is an in-process simulation of the DAQmx driver.  Finite tasks
// complete on timers in the same way the hardware would, counter outputs
// drive the tasks clocked on their InternalOutput terminal, and errors and
// short transfers can be injected.  It is safe for concurrent use.
type MockDriver struct {
	sync.Mutex

	devices []MockDevice
	tasks   map[TaskHandle]*mockTask
	next    TaskHandle
	calls   []string
	fail    map[string]int
	short   int

	levels map[string]float64
	lines  map[string]uint8

	// TimeScale multiplies every simulated duration.  1 is real time.
	TimeScale float64

	// CountRate is the edge rate seen by edge counters, Hz
	CountRate float64

	// Signal generates the i'th sample of an analog input
	Signal func(channel string, i int) float64
}

// NewMockDriver returns a simulated driver with the given devices
func NewMockDriver(devices ...MockDevice) *MockDriver {
	return &MockDriver{
		devices:   devices,
		tasks:     make(map[TaskHandle]*mockTask),
		fail:      make(map[string]int),
		levels:    make(map[string]float64),
		lines:     make(map[string]uint8),
		TimeScale: 1,
		CountRate: 1e3,
		Signal: func(channel string, i int) float64 {
			return math.Sin(2 * math.Pi * float64(i) / 100)
		},
	}
}

// FailNext makes the next call to the named procedure return a DriverError
// with the given code
func (m *MockDriver) FailNext(op string, code int) {
	m.Lock()
	defer m.Unlock()
	m.fail[op] = code
}

// ShortNext makes the next read or write move only n samples per channel
func (m *MockDriver) ShortNext(n int) {
	m.Lock()
	defer m.Unlock()
	m.short = n + 1
}

// OpenHandles is the number of tasks created and not yet cleared
func (m *MockDriver) OpenHandles() int {
	m.Lock()
	defer m.Unlock()
	return len(m.tasks)
}

// Calls returns the procedures called so far, "Proc taskname"
func (m *MockDriver) Calls() []string {
	m.Lock()
	defer m.Unlock()
	return append([]string(nil), m.calls...)
}

// ResetCalls empties the call log
func (m *MockDriver) ResetCalls() {
	m.Lock()
	defer m.Unlock()
	m.calls = nil
}

// Level is the value an analog output channel is presently driving
func (m *MockDriver) Level(channel string) float64 {
	m.Lock()
	defer m.Unlock()
	return m.levels[channel]
}

// SetLine sets the state of a digital line as seen by digital inputs
func (m *MockDriver) SetLine(line string, v uint8) {
	m.Lock()
	defer m.Unlock()
	m.lines[line] = v
}

// Line returns the state of a digital line
func (m *MockDriver) Line(line string) uint8 {
	m.Lock()
	defer m.Unlock()
	return m.lines[line]
}

func (m *MockDriver) scale(s float64) time.Duration {
	return secs(s * m.TimeScale)
}

// enter logs the call and returns an injected failure, if any.  Caller holds the lock.
func (m *MockDriver) enter(op string, h TaskHandle) error {
	entry := op
	if t, ok := m.tasks[h]; ok {
		entry += " " + t.name
	}
	m.calls = append(m.calls, entry)
	if code, ok := m.fail[op]; ok {
		delete(m.fail, op)
		return NewDriverError(code)
	}
	return nil
}

func (m *MockDriver) task(h TaskHandle) (*mockTask, error) {
	t, ok := m.tasks[h]
	if !ok {
		return nil, NewDriverError(-200088)
	}
	return t, nil
}

// takeShort consumes a programmed short transfer.  Caller holds the lock.
func (m *MockDriver) takeShort(n int) int {
	if m.short > 0 {
		s := m.short - 1
		m.short = 0
		if s < n {
			return s
		}
	}
	return n
}

func (m *MockDriver) device(name string) (MockDevice, error) {
	for _, d := range m.devices {
		if d.Name == name {
			return d, nil
		}
	}
	return MockDevice{}, NewDriverError(-200170)
}

// Devices implements Inventory
func (m *MockDriver) Devices() ([]string, error) {
	m.Lock()
	defer m.Unlock()
	out := make([]string, len(m.devices))
	for i, d := range m.devices {
		out[i] = d.Name
	}
	return out, nil
}

// ProductType implements Inventory
func (m *MockDriver) ProductType(device string) (string, error) {
	m.Lock()
	defer m.Unlock()
	d, err := m.device(device)
	return d.Product, err
}

func names(format string, dev string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(format, dev, i)
	}
	return out
}

func lineName(dev string, i int) string {
	return fmt.Sprintf("%s/port%d/line%d", dev, i/32, i%32)
}

// PhysicalChannels implements Inventory
func (m *MockDriver) PhysicalChannels(device string, kind Kind) ([]string, error) {
	m.Lock()
	defer m.Unlock()
	d, err := m.device(device)
	if err != nil {
		return nil, err
	}
	switch kind {
	case AnalogInput:
		return names("%s/ai%d", d.Name, d.AI), nil
	case AnalogOutput:
		return names("%s/ao%d", d.Name, d.AO), nil
	case CounterInput, CounterOutput:
		return names("%s/ctr%d", d.Name, d.Counters), nil
	case DigitalInput, DigitalOutput:
		out := make([]string, d.Lines)
		for i := range out {
			out[i] = lineName(d.Name, i)
		}
		return out, nil
	case Terminals:
		return names("/%s/PFI%d", d.Name, d.PFI), nil
	}
	return nil, NewDriverError(-200077)
}

// MaxRate implements Inventory
func (m *MockDriver) MaxRate(device string, dir Direction) (float64, error) {
	m.Lock()
	defer m.Unlock()
	d, err := m.device(device)
	if dir == Output {
		return d.MaxOutputRate, err
	}
	return d.MaxInputRate, err
}

// VoltageRanges implements Inventory
func (m *MockDriver) VoltageRanges(device string, dir Direction) ([]Range, error) {
	m.Lock()
	defer m.Unlock()
	d, err := m.device(device)
	if dir == Output {
		return d.OutputRanges, err
	}
	return d.InputRanges, err
}

// DigitalTriggerSupported implements Inventory
func (m *MockDriver) DigitalTriggerSupported(device string) (bool, error) {
	m.Lock()
	defer m.Unlock()
	d, err := m.device(device)
	return d.DigitalTrigger, err
}

// AnalogTriggerSupported implements Inventory
func (m *MockDriver) AnalogTriggerSupported(device string) (bool, error) {
	m.Lock()
	defer m.Unlock()
	d, err := m.device(device)
	return d.AnalogTrigger, err
}

// CreateTask implements Driver
func (m *MockDriver) CreateTask(name string) (TaskHandle, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("CreateTask", 0); err != nil {
		return 0, err
	}
	m.next++
	m.tasks[m.next] = &mockTask{name: name}
	return m.next, nil
}

// ClearTask implements Driver
func (m *MockDriver) ClearTask(h TaskHandle) error {
	m.Lock()
	defer m.Unlock()
	err := m.enter("ClearTask", h)
	if _, e := m.task(h); e != nil {
		return e
	}
	// the handle is gone even when clearing reports an error
	t := m.tasks[h]
	t.run++
	delete(m.tasks, h)
	return err
}

func (m *MockDriver) exists(name string, kind Kind) bool {
	d, err := m.device(DevicePrefix(name))
	if err != nil {
		return false
	}
	var n int
	var prefix string
	switch kind {
	case AnalogInput:
		n, prefix = d.AI, "ai"
	case AnalogOutput:
		n, prefix = d.AO, "ao"
	case CounterInput, CounterOutput:
		n, prefix = d.Counters, "ctr"
	default:
		// line ranges such as port0/line0:7 are accepted as long as the port exists
		rest := strings.TrimPrefix(name, d.Name+"/")
		return strings.HasPrefix(rest, "port") && d.Lines > 0
	}
	var i int
	rest := strings.TrimPrefix(name, d.Name+"/")
	if _, err := fmt.Sscanf(rest, prefix+"%d", &i); err != nil {
		return false
	}
	return i >= 0 && i < n
}

func (m *MockDriver) addChan(op string, h TaskHandle, c mockChan) error {
	m.Lock()
	defer m.Unlock()
	if err := m.enter(op, h); err != nil {
		return err
	}
	t, err := m.task(h)
	if err != nil {
		return err
	}
	if t.running {
		return NewDriverError(-200479)
	}
	if !m.exists(c.name, c.kind) {
		return NewDriverError(-200170)
	}
	if len(t.chans) > 0 && t.chans[0].kind.family() != c.kind.family() {
		return NewDriverError(-200559)
	}
	for _, o := range t.chans {
		if o.name == c.name {
			return NewDriverError(-200489)
		}
	}
	t.chans = append(t.chans, c)
	return nil
}

// CreateAIVoltageChan implements Driver
func (m *MockDriver) CreateAIVoltageChan(h TaskHandle, physical string, term Termination, min, max float64) error {
	return m.addChan("CreateAIVoltageChan", h, mockChan{name: physical, kind: AnalogInput})
}

// CreateAICurrentChan implements Driver
func (m *MockDriver) CreateAICurrentChan(h TaskHandle, physical string, term Termination, min, max float64) error {
	return m.addChan("CreateAICurrentChan", h, mockChan{name: physical, kind: AnalogInput})
}

// CreateAIThrmcplChan implements Driver
func (m *MockDriver) CreateAIThrmcplChan(h TaskHandle, physical string, min, max float64, typ ThermocoupleType) error {
	return m.addChan("CreateAIThrmcplChan", h, mockChan{name: physical, kind: AnalogInput})
}

// CreateAOVoltageChan implements Driver
func (m *MockDriver) CreateAOVoltageChan(h TaskHandle, physical string, min, max float64) error {
	return m.addChan("CreateAOVoltageChan", h, mockChan{name: physical, kind: AnalogOutput})
}

// CreateAOCurrentChan implements Driver
func (m *MockDriver) CreateAOCurrentChan(h TaskHandle, physical string, min, max float64) error {
	return m.addChan("CreateAOCurrentChan", h, mockChan{name: physical, kind: AnalogOutput})
}

// CreateCICountEdgesChan implements Driver
func (m *MockDriver) CreateCICountEdgesChan(h TaskHandle, counter string, edge Edge) error {
	return m.addChan("CreateCICountEdgesChan", h, mockChan{name: counter, kind: CounterInput, edges: edge})
}

// CreateCISemiPeriodChan implements Driver
func (m *MockDriver) CreateCISemiPeriodChan(h TaskHandle, counter string, min, max float64) error {
	return m.addChan("CreateCISemiPeriodChan", h, mockChan{name: counter, kind: CounterInput})
}

// CreateCOPulseChanFreq implements Driver
func (m *MockDriver) CreateCOPulseChanFreq(h TaskHandle, counter string, freq, duty float64) error {
	return m.addChan("CreateCOPulseChanFreq", h, mockChan{name: counter, kind: CounterOutput, freq: freq})
}

// route sets a terminal of a counter already in the task
func (m *MockDriver) route(op string, h TaskHandle, counter string, set func(*mockChan)) error {
	m.Lock()
	defer m.Unlock()
	if err := m.enter(op, h); err != nil {
		return err
	}
	t, err := m.task(h)
	if err != nil {
		return err
	}
	for i := range t.chans {
		if t.chans[i].name == counter && t.chans[i].kind == CounterInput {
			set(&t.chans[i])
			return nil
		}
	}
	return NewDriverError(-200170)
}

// SetCISemiPeriodTerm implements Driver
func (m *MockDriver) SetCISemiPeriodTerm(h TaskHandle, counter, terminal string) error {
	return m.route("SetCISemiPeriodTerm", h, counter, func(c *mockChan) { c.gate = terminal })
}

// SetCICtrTimebaseSrc implements Driver
func (m *MockDriver) SetCICtrTimebaseSrc(h TaskHandle, counter, terminal string) error {
	return m.route("SetCICtrTimebaseSrc", h, counter, func(c *mockChan) { c.timebase = terminal })
}

// CounterRouting returns the gate and timebase terminals of a counter input
// in any open task
func (m *MockDriver) CounterRouting(counter string) (gate, timebase string) {
	m.Lock()
	defer m.Unlock()
	for _, t := range m.tasks {
		for _, c := range t.chans {
			if c.name == counter && c.kind == CounterInput {
				return c.gate, c.timebase
			}
		}
	}
	return "", ""
}

// gateRate is the frequency of the running clock behind a gate terminal, or
// zero if nothing drives it.  Caller holds the lock.
func (m *MockDriver) gateRate(gate string) float64 {
	for _, o := range m.tasks {
		if o.running && o.kind() == CounterOutput && strings.EqualFold(gate, InternalOutput(o.chans[0].name)) {
			return o.chans[0].freq
		}
	}
	return 0
}

// CreateDIChan implements Driver
func (m *MockDriver) CreateDIChan(h TaskHandle, lines string) error {
	return m.addChan("CreateDIChan", h, mockChan{name: lines, kind: DigitalInput})
}

// CreateDOChan implements Driver
func (m *MockDriver) CreateDOChan(h TaskHandle, lines string) error {
	return m.addChan("CreateDOChan", h, mockChan{name: lines, kind: DigitalOutput})
}

func (m *MockDriver) setTiming(op string, h TaskHandle, source string, rate float64, mode SampleMode, samples int) error {
	m.Lock()
	defer m.Unlock()
	if err := m.enter(op, h); err != nil {
		return err
	}
	t, err := m.task(h)
	if err != nil {
		return err
	}
	if t.running {
		return NewDriverError(-200557)
	}
	if samples < 1 {
		return NewDriverError(-200077)
	}
	t.clocked, t.source, t.rate, t.mode, t.samples = true, source, rate, mode, samples
	return nil
}

// CfgSampClkTiming implements Driver
func (m *MockDriver) CfgSampClkTiming(h TaskHandle, source string, rate float64, edge Edge, mode SampleMode, samples int) error {
	return m.setTiming("CfgSampClkTiming", h, source, rate, mode, samples)
}

// CfgImplicitTiming implements Driver.  The rate is the counter frequency.
func (m *MockDriver) CfgImplicitTiming(h TaskHandle, mode SampleMode, samples int) error {
	m.Lock()
	var rate float64
	if t, ok := m.tasks[h]; ok && len(t.chans) > 0 {
		rate = t.chans[0].freq
	}
	m.Unlock()
	return m.setTiming("CfgImplicitTiming", h, "", rate, mode, samples)
}

// CfgChangeDetectionTiming implements Driver.  Changes never happen in the
// simulation, so such tasks only complete when stopped.
func (m *MockDriver) CfgChangeDetectionTiming(h TaskHandle, rising, falling string, mode SampleMode, samples int) error {
	return m.setTiming("CfgChangeDetectionTiming", h, "/"+rising+falling, 0, mode, samples)
}

func (m *MockDriver) simple(op string, h TaskHandle) error {
	m.Lock()
	defer m.Unlock()
	if err := m.enter(op, h); err != nil {
		return err
	}
	_, err := m.task(h)
	return err
}

// DisableStartTrig implements Driver
func (m *MockDriver) DisableStartTrig(h TaskHandle) error {
	return m.simple("DisableStartTrig", h)
}

// CfgDigEdgeStartTrig implements Driver
func (m *MockDriver) CfgDigEdgeStartTrig(h TaskHandle, source string, edge Edge) error {
	m.Lock()
	ok := false
	if d, err := m.device(DevicePrefix(source)); err == nil {
		ok = d.DigitalTrigger
	}
	m.Unlock()
	if err := m.simple("CfgDigEdgeStartTrig", h); err != nil {
		return err
	}
	if !ok {
		return NewDriverError(-200602)
	}
	return nil
}

// CfgAnlgEdgeStartTrig implements Driver
func (m *MockDriver) CfgAnlgEdgeStartTrig(h TaskHandle, source string, edge Edge, level float64) error {
	m.Lock()
	ok := false
	if d, err := m.device(DevicePrefix(source)); err == nil {
		ok = d.AnalogTrigger
	}
	m.Unlock()
	if err := m.simple("CfgAnlgEdgeStartTrig", h); err != nil {
		return err
	}
	if !ok {
		return NewDriverError(-200602)
	}
	return nil
}

// counterOwner returns the running task other than t generating on counter
func (m *MockDriver) counterOwner(t *mockTask, counter string) *mockTask {
	for _, o := range m.tasks {
		if o == t || !o.running {
			continue
		}
		for _, c := range o.chans {
			if c.name == counter && (c.kind == CounterInput || c.kind == CounterOutput) {
				return o
			}
		}
	}
	return nil
}

// StartTask implements Driver
func (m *MockDriver) StartTask(h TaskHandle) error {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("StartTask", h); err != nil {
		return err
	}
	t, err := m.task(h)
	if err != nil {
		return err
	}
	if t.running {
		return NewDriverError(-200479)
	}
	for _, c := range t.chans {
		if c.kind == CounterInput || c.kind == CounterOutput {
			if m.counterOwner(t, c.name) != nil {
				return NewDriverError(-50103)
			}
		}
	}
	m.start(t)
	return nil
}

// start arms timers for a task.  Caller holds the lock.
func (m *MockDriver) start(t *mockTask) {
	t.running = true
	t.done = false
	t.run++
	t.started = time.Now()
	run := t.run

	if !t.clocked {
		// on demand tasks do their work in the read or write call
		t.done = true
		return
	}
	if t.kind() == CounterOutput {
		// a counter clock drives every task waiting on its output terminal
		for _, o := range m.tasks {
			if o.running && !o.done && o.clocked && strings.EqualFold(o.source, InternalOutput(t.chans[0].name)) {
				m.arm(o, o.run, t.rate)
			}
		}
		m.arm(t, run, t.rate)
		return
	}
	if t.source == "" {
		m.arm(t, run, t.rate)
	}
	// tasks on an external clock wait for it to start
}

// arm schedules the sample events and the completion of a task generating
// at rate.  Caller holds the lock.
func (m *MockDriver) arm(t *mockTask, run int, rate float64) {
	if rate <= 0 {
		return
	}
	t.started = time.Now()
	if t.onN != nil || t.onSample != nil {
		n := t.n
		if t.onSample != nil {
			n = 1
		}
		period := m.scale(float64(n) / rate)
		var tick func()
		count := 0
		tick = func() {
			m.Lock()
			if t.run != run || !t.running {
				m.Unlock()
				return
			}
			count++
			fn := t.onN
			if t.onSample != nil {
				fn = t.onSample
			}
			again := t.mode == Continuous || (count+1)*n <= t.samples
			if again {
				time.AfterFunc(period, tick)
			}
			m.Unlock()
			if fn != nil {
				fn()
			}
		}
		if t.mode == Continuous || n <= t.samples {
			time.AfterFunc(period, tick)
		}
	}
	if t.mode == Continuous {
		return
	}
	time.AfterFunc(m.scale(float64(t.samples)/rate), func() {
		m.Lock()
		if t.run != run || !t.running {
			m.Unlock()
			return
		}
		m.finish(t)
		fn := t.onDone
		m.Unlock()
		if fn != nil {
			fn(nil)
		}
	})
}

// finish marks a finite task done and latches its outputs.  Caller holds the lock.
func (m *MockDriver) finish(t *mockTask) {
	t.done = true
	if t.kind() == AnalogOutput && t.nWritten > 0 {
		for i, c := range t.chans {
			m.levels[c.name] = t.written[i*t.nWritten+t.nWritten-1]
		}
	}
}

// StopTask implements Driver
func (m *MockDriver) StopTask(h TaskHandle) error {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("StopTask", h); err != nil {
		return err
	}
	t, err := m.task(h)
	if err != nil {
		return err
	}
	if t.running && !t.done && t.kind() == AnalogOutput && t.nWritten > 0 {
		// latch whatever was generated so far
		i := m.generated(t) - 1
		if i >= 0 {
			for k, c := range t.chans {
				m.levels[c.name] = t.written[k*t.nWritten+i]
			}
		}
	}
	t.running = false
	t.run++
	return nil
}

// generated is the number of samples a running task has moved.  Caller holds the lock.
func (m *MockDriver) generated(t *mockTask) int {
	if t.done {
		return t.samples
	}
	if !t.running {
		return 0
	}
	rate := t.rate
	if t.source != "" {
		rate = 0
		for _, o := range m.tasks {
			if o.running && o.kind() == CounterOutput && strings.EqualFold(t.source, InternalOutput(o.chans[0].name)) {
				rate = o.rate
				break
			}
		}
	}
	el := time.Since(t.started).Seconds() / m.TimeScale
	n := int(el * rate)
	if t.mode == Finite && n > t.samples {
		n = t.samples
	}
	return n
}

// IsTaskDone implements Driver
func (m *MockDriver) IsTaskDone(h TaskHandle) (bool, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("IsTaskDone", h); err != nil {
		return false, err
	}
	t, err := m.task(h)
	if err != nil {
		return false, err
	}
	return t.done || !t.running, nil
}

// WaitUntilTaskDone implements Driver
func (m *MockDriver) WaitUntilTaskDone(h TaskHandle, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		m.Lock()
		t, err := m.task(h)
		if err != nil {
			m.Unlock()
			return err
		}
		done := t.done || !t.running
		m.Unlock()
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return NewDriverError(-200474)
		}
		time.Sleep(time.Millisecond)
	}
}

// WriteAnalogScalarF64 implements Driver
func (m *MockDriver) WriteAnalogScalarF64(h TaskHandle, autostart bool, timeout time.Duration, value float64) error {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("WriteAnalogScalarF64", h); err != nil {
		return err
	}
	t, err := m.task(h)
	if err != nil {
		return err
	}
	if t.kind() != AnalogOutput || len(t.chans) != 1 {
		return NewDriverError(-200428)
	}
	m.levels[t.chans[0].name] = value
	return nil
}

// WriteAnalogF64 implements Driver
func (m *MockDriver) WriteAnalogF64(h TaskHandle, samples int, autostart bool, timeout time.Duration, values []float64) (int, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("WriteAnalogF64", h); err != nil {
		return 0, err
	}
	t, err := m.task(h)
	if err != nil {
		return 0, err
	}
	if t.kind() != AnalogOutput || len(values) != samples*len(t.chans) {
		return 0, NewDriverError(-200428)
	}
	n := m.takeShort(samples)
	t.written = append([]float64(nil), values...)
	t.nWritten = samples
	if !t.clocked {
		// on demand: the last sample of each channel is what stays on the pins
		for i, c := range t.chans {
			m.levels[c.name] = values[i*samples+n-1]
		}
	}
	if autostart && !t.running {
		m.start(t)
	}
	return n, nil
}

// ReadAnalogF64 implements Driver
func (m *MockDriver) ReadAnalogF64(h TaskHandle, samples int, timeout time.Duration, buf []float64) (int, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("ReadAnalogF64", h); err != nil {
		return 0, err
	}
	t, err := m.task(h)
	if err != nil {
		return 0, err
	}
	if t.kind() != AnalogInput || len(buf) < samples*len(t.chans) {
		return 0, NewDriverError(-200428)
	}
	n := m.takeShort(samples)
	for k, c := range t.chans {
		for i := 0; i < n; i++ {
			buf[k*samples+i] = m.Signal(c.name, i)
		}
	}
	return n, nil
}

// ReadCounterU32 implements Driver
func (m *MockDriver) ReadCounterU32(h TaskHandle, samples int, timeout time.Duration, buf []uint32) (int, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("ReadCounterU32", h); err != nil {
		return 0, err
	}
	t, err := m.task(h)
	if err != nil {
		return 0, err
	}
	if t.kind() != CounterInput || len(buf) < samples*len(t.chans) {
		return 0, NewDriverError(-200428)
	}
	if !t.running {
		m.start(t)
	}
	n := m.takeShort(samples)
	el := time.Since(t.started).Seconds() / m.TimeScale
	for k, c := range t.chans {
		v := uint32(el * m.CountRate)
		if c.gate != "" {
			// edges of the timebase during one half period of the gate
			f := m.gateRate(c.gate)
			if f <= 0 {
				return 0, NewDriverError(-200474)
			}
			v = uint32(m.CountRate / (2 * f))
		}
		for i := 0; i < n; i++ {
			buf[k*samples+i] = v
		}
	}
	return n, nil
}

// ReadDigitalLines implements Driver
func (m *MockDriver) ReadDigitalLines(h TaskHandle, samples int, timeout time.Duration, buf []uint8) (int, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("ReadDigitalLines", h); err != nil {
		return 0, err
	}
	t, err := m.task(h)
	if err != nil {
		return 0, err
	}
	if t.kind() != DigitalInput {
		return 0, NewDriverError(-200428)
	}
	n := m.takeShort(samples)
	for i := range buf {
		buf[i] = 0
		if i < len(t.chans) {
			buf[i] = m.lines[t.chans[i].name]
		}
	}
	return n, nil
}

// WriteDigitalLines implements Driver
func (m *MockDriver) WriteDigitalLines(h TaskHandle, samples int, autostart bool, timeout time.Duration, values []uint8) (int, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("WriteDigitalLines", h); err != nil {
		return 0, err
	}
	t, err := m.task(h)
	if err != nil {
		return 0, err
	}
	if t.kind() != DigitalOutput {
		return 0, NewDriverError(-200428)
	}
	n := m.takeShort(samples)
	for i, v := range values {
		if i < len(t.chans) {
			m.lines[t.chans[i].name] = v
		}
	}
	return n, nil
}

// GetWriteCurrWritePos implements Driver.  It is the index of the sample most
// recently generated.
func (m *MockDriver) GetWriteCurrWritePos(h TaskHandle) (uint64, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("GetWriteCurrWritePos", h); err != nil {
		return 0, err
	}
	t, err := m.task(h)
	if err != nil {
		return 0, err
	}
	n := m.generated(t)
	if n > t.nWritten {
		n = t.nWritten
	}
	if n < 1 {
		return 0, nil
	}
	return uint64(n - 1), nil
}

// GetCOCount implements Driver
func (m *MockDriver) GetCOCount(h TaskHandle, counter string) (uint32, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("GetCOCount", h); err != nil {
		return 0, err
	}
	t, err := m.task(h)
	if err != nil {
		return 0, err
	}
	if t.kind() != CounterOutput {
		return 0, NewDriverError(-200428)
	}
	return uint32(m.generated(t)), nil
}

// RegisterDoneEvent implements Driver
func (m *MockDriver) RegisterDoneEvent(h TaskHandle, fn func(status error)) error {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("RegisterDoneEvent", h); err != nil {
		return err
	}
	t, err := m.task(h)
	if err != nil {
		return err
	}
	if t.running {
		return NewDriverError(-200985)
	}
	t.onDone = fn
	return nil
}

// RegisterEveryNSamplesEvent implements Driver
func (m *MockDriver) RegisterEveryNSamplesEvent(h TaskHandle, n int, fn func()) error {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("RegisterEveryNSamplesEvent", h); err != nil {
		return err
	}
	t, err := m.task(h)
	if err != nil {
		return err
	}
	if t.running {
		return NewDriverError(-200985)
	}
	t.onN, t.n = fn, n
	return nil
}

// RegisterSignalEvent implements Driver
func (m *MockDriver) RegisterSignalEvent(h TaskHandle, fn func()) error {
	m.Lock()
	defer m.Unlock()
	if err := m.enter("RegisterSignalEvent", h); err != nil {
		return err
	}
	t, err := m.task(h)
	if err != nil {
		return err
	}
	if t.running {
		return NewDriverError(-200985)
	}
	t.onSample = fn
	return nil
}
