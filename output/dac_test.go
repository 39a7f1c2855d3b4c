package output_test

import (
	"errors"
	"testing"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/output"
)

func setup(t *testing.T, channels ...string) (*daqmx.MockDriver, *output.DAC) {
	t.Helper()
	m := daqmx.NewMockDriver(daqmx.DefaultMockDevices()...)
	d, err := output.New(m, daqmx.NewCatalog(m), channels...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return m, d
}

func TestParseRange(t *testing.T) {
	r, err := output.ParseRange("-5, 5")
	if err != nil {
		t.Fatal(err)
	}
	if r.Min != -5 || r.Max != 5 {
		t.Errorf("expected -5,5 got %v", r)
	}
	for _, s := range []string{"5", "a,b", "5,-5", "1,2,3"} {
		if _, err := output.ParseRange(s); !errors.Is(err, daqmx.ErrInvalidRange) {
			t.Errorf("%q: expected ErrInvalidRange got %v", s, err)
		}
	}
}

func TestNewErrors(t *testing.T) {
	m := daqmx.NewMockDriver(daqmx.DefaultMockDevices()...)
	cat := daqmx.NewCatalog(m)
	if _, err := output.New(m, cat); !errors.Is(err, daqmx.ErrNoChannels) {
		t.Errorf("expected ErrNoChannels got %v", err)
	}
	if _, err := output.New(m, cat, "Dev1/ao0", "Dev2/ao0"); !errors.Is(err, daqmx.ErrUnsupportedChannelCombination) {
		t.Errorf("expected ErrUnsupportedChannelCombination got %v", err)
	}
	if _, err := output.New(m, cat, "Dev1/ao0", "Dev1/ao0"); !errors.Is(err, daqmx.ErrDuplicateChannel) {
		t.Errorf("expected ErrDuplicateChannel got %v", err)
	}
	if _, err := output.New(m, cat, "Dev1/ao9"); !errors.Is(err, daqmx.ErrUnknownName) {
		t.Errorf("expected ErrUnknownName got %v", err)
	}
}

func TestOutput(t *testing.T) {
	m, d := setup(t, "Dev1/ao0", "Dev1/ao1")
	if err := d.Output(1, 12); err != nil {
		t.Fatal(err)
	}
	if l := m.Level("Dev1/ao1"); l != 10 {
		t.Errorf("expected the output clamped to 10 got %v", l)
	}
	if err := d.Output(0, 2.5); err != nil {
		t.Fatal(err)
	}
	if l0, l1 := m.Level("Dev1/ao0"), m.Level("Dev1/ao1"); l0 != 2.5 || l1 != 10 {
		t.Errorf("expected 2.5 and 10 got %v and %v", l0, l1)
	}
	if err := d.Output(2, 1); !errors.Is(err, output.ErrNoChannel) {
		t.Errorf("expected ErrNoChannel got %v", err)
	}
}

func TestOutputDN16(t *testing.T) {
	m, d := setup(t, "Dev1/ao0")
	d.OutputDN16(0, 65535)
	if l := m.Level("Dev1/ao0"); l != 10 {
		t.Errorf("expected 10 got %v", l)
	}
	d.OutputDN16(0, 0)
	if l := m.Level("Dev1/ao0"); l != -10 {
		t.Errorf("expected -10 got %v", l)
	}
}

func TestOutputMulti(t *testing.T) {
	m, d := setup(t, "Dev1/ao0", "Dev1/ao1", "Dev1/ao2")
	if err := d.OutputMulti([]int{2, 0}, []float64{1, -1}); err != nil {
		t.Fatal(err)
	}
	if l0, l2 := m.Level("Dev1/ao0"), m.Level("Dev1/ao2"); l0 != -1 || l2 != 1 {
		t.Errorf("expected -1 and 1 got %v and %v", l0, l2)
	}
	var shape *daqmx.ShapeError
	if err := d.OutputMulti([]int{0, 1}, []float64{1}); !errors.As(err, &shape) {
		t.Errorf("expected a ShapeError got %v", err)
	}
	if err := d.OutputMultiDN16([]int{1}, []uint16{65535}); err != nil {
		t.Fatal(err)
	}
	if l := m.Level("Dev1/ao1"); l != 10 {
		t.Errorf("expected 10 got %v", l)
	}
}

func TestSetRange(t *testing.T) {
	m, d := setup(t, "Dev1/ao0")
	d.Output(0, 8)
	if err := d.SetRange(0, "-3,3"); !errors.Is(err, daqmx.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for an unsupported range got %v", err)
	}
	if err := d.SetRange(0, "-5,5"); err != nil {
		t.Fatal(err)
	}
	rng, _ := d.GetRange(0)
	if rng != "-5,5" {
		t.Errorf("expected -5,5 got %s", rng)
	}
	d.Output(0, 8)
	if l := m.Level("Dev1/ao0"); l != 5 {
		t.Errorf("expected the output clamped to 5 got %v", l)
	}
	if ch := d.Task().Channels(); ch[0].Max != 5 {
		t.Errorf("expected the task reconfigured for the new range got %v", ch[0])
	}
}

func TestModes(t *testing.T) {
	_, d := setup(t, "Dev1/ao0")
	if err := d.SetOperatingMode(0, "burst"); !errors.Is(err, daqmx.ErrUnknownName) {
		t.Errorf("expected ErrUnknownName got %v", err)
	}
	d.SetOperatingMode(0, "Waveform")
	if mode, _ := d.GetOperatingMode(0); mode != output.Waveform {
		t.Errorf("expected waveform got %s", mode)
	}
	if err := d.SetTriggerMode(0, "Dev1/ctr0"); !errors.Is(err, daqmx.ErrInvalidTriggerSource) {
		t.Errorf("expected ErrInvalidTriggerSource got %v", err)
	}
	d.SetTriggerMode(0, "/Dev1/PFI0")
	if mode, _ := d.GetTriggerMode(0); mode != "/Dev1/PFI0" {
		t.Errorf("expected /Dev1/PFI0 got %s", mode)
	}
	d.SetTriggerMode(0, "SOFTWARE")
	if mode, _ := d.GetTriggerMode(0); mode != output.Software {
		t.Errorf("expected software got %s", mode)
	}
}

func TestWaveformPlayback(t *testing.T) {
	m, d := setup(t, "Dev1/ao0", "Dev1/ao1")
	if err := d.StartWaveform(); !errors.Is(err, output.ErrNoWaveform) {
		t.Errorf("expected ErrNoWaveform got %v", err)
	}
	d.Output(1, 4)
	d.SetOperatingMode(0, output.Waveform)
	if err := d.PopulateWaveform(0, []float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := d.StartWaveform(); err != nil {
		t.Fatal(err)
	}
	if !d.Playing() {
		t.Error("expected playback")
	}
	if clk, ok := d.Task().Timing().(daqmx.Clock); !ok || !clk.Continuous || clk.Frequency != 1000 {
		t.Errorf("expected a continuous 1 kHz clock got %v", d.Task().Timing())
	}
	if err := d.Output(1, 0); !errors.Is(err, output.ErrPlaying) {
		t.Errorf("expected ErrPlaying got %v", err)
	}
	if err := d.StopWaveform(); err != nil {
		t.Fatal(err)
	}
	if l0, l1 := m.Level("Dev1/ao0"), m.Level("Dev1/ao1"); l0 != 3 || l1 != 4 {
		t.Errorf("expected the waveform to rest on 3 and the single channel at 4, got %v and %v", l0, l1)
	}
	if err := d.StopWaveform(); err != nil {
		t.Errorf("expected stopping twice to be harmless got %v", err)
	}
}

func TestWaveformLengthsMustMatch(t *testing.T) {
	_, d := setup(t, "Dev1/ao0", "Dev1/ao1")
	d.SetOperatingMode(0, output.Waveform)
	d.SetOperatingMode(1, output.Waveform)
	d.PopulateWaveform(0, []float64{1, 2, 3})
	d.PopulateWaveform(1, []float64{1, 2})
	var shape *daqmx.ShapeError
	if err := d.StartWaveform(); !errors.As(err, &shape) {
		t.Errorf("expected a ShapeError got %v", err)
	}
}

func TestSynthesize(t *testing.T) {
	_, d := setup(t, "Dev1/ao0")
	d.SetOperatingMode(0, output.Waveform)
	if err := d.Synthesize(0, daqmx.Waveform{Shape: daqmx.DC, Offset: 2}, 4); err != nil {
		t.Fatal(err)
	}
	if err := d.StartWaveform(); err != nil {
		t.Fatalf("expected a DC waveform padded to 4 samples, got %v", err)
	}
	d.StopWaveform()
}

func TestTimerPeriod(t *testing.T) {
	_, d := setup(t, "Dev2/ao0")
	if err := d.SetTimerPeriod(100000); !errors.Is(err, daqmx.ErrInvalidTiming) {
		t.Errorf("expected 10 kHz to be too fast for Dev2 got %v", err)
	}
	if err := d.SetTimerPeriod(0); !errors.Is(err, daqmx.ErrInvalidTiming) {
		t.Errorf("expected ErrInvalidTiming got %v", err)
	}
	if err := d.SetTimerPeriod(500000); err != nil {
		t.Fatal(err)
	}
	if ns, _ := d.GetTimerPeriod(); ns != 500000 {
		t.Errorf("expected 500000 got %d", ns)
	}
}

func TestPort(t *testing.T) {
	m := daqmx.NewMockDriver(daqmx.DefaultMockDevices()...)
	p, err := output.NewPort(m, "Dev1/port0/line0", "Dev1/port0/line1", "Dev1/port0/line2")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if err := p.SetLine(2, true); err != nil {
		t.Fatal(err)
	}
	if m.Line("Dev1/port0/line2") != 1 {
		t.Error("expected line 2 high")
	}
	b, err := p.Read()
	if err != nil {
		t.Fatal(err)
	}
	if b != 4 {
		t.Errorf("expected 4 got %d", b)
	}
	m.SetLine("Dev1/port0/line0", 1)
	if hi, _ := p.GetLine(0); !hi {
		t.Error("expected line 0 read back high")
	}
	if err := p.SetLine(3, true); !errors.Is(err, output.ErrNoChannel) {
		t.Errorf("expected ErrNoChannel got %v", err)
	}
	if _, err := output.NewPort(m); err == nil {
		t.Error("expected an error for a port with no lines")
	}
}
