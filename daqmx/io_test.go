package daqmx_test

import (
	"errors"
	"testing"
	"time"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
)

func TestScalarWrite(t *testing.T) {
	m := newMock()
	task := daqmx.NewTask(m, "ao")
	defer task.Close()
	err := task.Configure([]daqmx.Channel{daqmx.AOVoltage("Dev1/ao0", -10, 10)},
		daqmx.Clock{Frequency: 1000, SampleCount: 1}, daqmx.Trigger{})
	if err != nil {
		t.Fatal(err)
	}
	m.ResetCalls()
	n, err := task.WriteAnalog(1, 1, []float64{2.5}, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 got %d", n)
	}
	calls := m.Calls()
	if len(calls) != 1 || calls[0] != "WriteAnalogScalarF64 ao" {
		t.Errorf("expected exactly one scalar write got %v", calls)
	}
	if lvl := m.Level("Dev1/ao0"); lvl != 2.5 {
		t.Errorf("expected 2.5 got %v", lvl)
	}
	last, err := task.LastWrite()
	if err != nil || last != 2.5 {
		t.Errorf("expected last write 2.5 got %v %v", last, err)
	}
}

func TestWriteShapeErrorMakesNoCall(t *testing.T) {
	m := newMock()
	task := daqmx.NewTask(m, "ao")
	defer task.Close()
	task.Configure([]daqmx.Channel{daqmx.AOVoltage("Dev1/ao0", -10, 10), daqmx.AOVoltage("Dev1/ao1", -10, 10)},
		daqmx.Clock{Frequency: 1000, SampleCount: 10}, daqmx.Trigger{})
	m.ResetCalls()
	for _, vals := range [][]float64{nil, make([]float64, 19), make([]float64, 21)} {
		_, err := task.WriteAnalog(10, 2, vals, false)
		var se *daqmx.ShapeError
		if !errors.As(err, &se) {
			t.Errorf("expected *ShapeError for %d values got %v", len(vals), err)
		}
	}
	if calls := m.Calls(); len(calls) != 0 {
		t.Errorf("expected no driver calls got %v", calls)
	}
}

func TestChannelCountMustMatchTask(t *testing.T) {
	m := newMock()
	ao := daqmx.NewTask(m, "ao")
	defer ao.Close()
	ao.Configure([]daqmx.Channel{daqmx.AOVoltage("Dev1/ao0", -10, 10), daqmx.AOVoltage("Dev1/ao1", -10, 10)},
		daqmx.Clock{Frequency: 1000, SampleCount: 2}, daqmx.Trigger{})
	ai := daqmx.NewTask(m, "ai")
	defer ai.Close()
	clk := daqmx.Clock{Frequency: 1000, SampleCount: 10}
	ai.Configure([]daqmx.Channel{daqmx.AIVoltage("Dev1/ai0", -10, 10, daqmx.TermDefault)}, clk, daqmx.Trigger{})
	ctr := daqmx.NewTask(m, "ctr")
	defer ctr.Close()
	ctr.Configure([]daqmx.Channel{daqmx.EdgeCounterChannel("Dev1/ctr0", daqmx.Rising)}, nil, daqmx.Trigger{})
	m.ResetCalls()

	var se *daqmx.ShapeError
	if _, err := ao.WriteAnalog(2, 1, []float64{1, 2}, false); !errors.As(err, &se) {
		t.Errorf("expected *ShapeError writing 1 of 2 channels got %v", err)
	}
	if _, err := ai.ReadAnalog(2, clk); !errors.As(err, &se) {
		t.Errorf("expected *ShapeError reading 2 of 1 channels got %v", err)
	}
	if _, err := ctr.ReadCounterContinuous(3, time.Second); !errors.As(err, &se) {
		t.Errorf("expected *ShapeError reading 3 of 1 counters got %v", err)
	}
	if calls := m.Calls(); len(calls) != 0 {
		t.Errorf("expected no driver calls got %v", calls)
	}
}

func TestWriteBeforeConfigure(t *testing.T) {
	task := daqmx.NewTask(newMock(), "ao")
	_, err := task.WriteAnalog(1, 1, []float64{1}, true)
	if !errors.Is(err, daqmx.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState got %v", err)
	}
}

func TestBufferedShortWrite(t *testing.T) {
	m := newMock()
	task := daqmx.NewTask(m, "ao")
	defer task.Close()
	task.Configure([]daqmx.Channel{daqmx.AOVoltage("Dev1/ao0", -10, 10)},
		daqmx.Clock{Frequency: 1000, SampleCount: 10}, daqmx.Trigger{})
	m.ShortNext(7)
	_, err := task.WriteAnalog(10, 1, make([]float64, 10), false)
	var se *daqmx.ShortIOError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ShortIOError got %v", err)
	}
	if se.Actual != 7 || se.Expected != 10 {
		t.Errorf("expected 7/10 got %d/%d", se.Actual, se.Expected)
	}
}

func TestReadAnalog(t *testing.T) {
	m := newMock()
	task := daqmx.NewTask(m, "ai")
	defer task.Close()
	clk := daqmx.Clock{Frequency: 1000, SampleCount: 100}
	err := task.Configure([]daqmx.Channel{daqmx.AIVoltage("Dev1/ai0", -10, 10, daqmx.TermDefault)}, clk, daqmx.Trigger{})
	if err != nil {
		t.Fatal(err)
	}
	task.Start()
	data, err := task.ReadAnalog(1, clk)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 100 {
		t.Errorf("expected 100 samples got %d", len(data))
	}

	m.ShortNext(60)
	data, err = task.ReadAnalog(1, clk)
	var se *daqmx.ShortIOError
	if !errors.As(err, &se) || se.Actual != 60 || se.Expected != 100 {
		t.Errorf("expected short read 60/100 got %v", err)
	}
	if data != nil {
		t.Errorf("expected no data with a short read, got %d samples", len(data))
	}
}

func TestReadTimeout(t *testing.T) {
	clk := daqmx.Clock{Frequency: 1000, SampleCount: 100}
	if to := clk.ReadTimeout(); to != 200*time.Millisecond {
		t.Errorf("expected 200ms got %v", to)
	}
}

func TestReadCounterStops(t *testing.T) {
	m := newMock()
	task := daqmx.NewTask(m, "ctr")
	defer task.Close()
	task.Configure([]daqmx.Channel{daqmx.EdgeCounterChannel("Dev1/ctr0", daqmx.Rising)}, nil, daqmx.Trigger{})
	task.Start()
	if _, err := task.ReadCounter(1, 0.1); err != nil {
		t.Fatal(err)
	}
	if task.State() != daqmx.Stopped {
		t.Errorf("expected %v got %v", daqmx.Stopped, task.State())
	}

	m.ShortNext(0)
	data, err := task.ReadCounter(1, 0.1)
	var se *daqmx.ShortIOError
	if !errors.As(err, &se) || data != nil {
		t.Errorf("expected a short read and no data, got %v %v", data, err)
	}
	if task.State() != daqmx.Stopped {
		t.Errorf("expected a failed read to stop the task too, got %v", task.State())
	}
}

func TestReadCounterContinuousKeepsRunning(t *testing.T) {
	m := newMock()
	task := daqmx.NewTask(m, "ctr")
	defer task.Close()
	task.Configure([]daqmx.Channel{daqmx.EdgeCounterChannel("Dev1/ctr0", daqmx.Rising)}, nil, daqmx.Trigger{})
	task.Start()
	time.Sleep(5 * time.Millisecond)
	a, err := task.ReadCounterContinuous(1, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	b, _ := task.ReadCounterContinuous(1, time.Second)
	if b[0] < a[0] {
		t.Errorf("expected the count to keep increasing, got %d then %d", a[0], b[0])
	}
	if task.State() != daqmx.Running {
		t.Errorf("expected %v got %v", daqmx.Running, task.State())
	}
}

func TestDigitalLoopback(t *testing.T) {
	m := newMock()
	do := daqmx.NewTask(m, "do")
	di := daqmx.NewTask(m, "di")
	defer do.Close()
	defer di.Close()
	do.Configure([]daqmx.Channel{daqmx.DigitalOut("Dev1/port0/line0"), daqmx.DigitalOut("Dev1/port0/line1")}, nil, daqmx.Trigger{})
	di.Configure([]daqmx.Channel{daqmx.DigitalIn("Dev1/port0/line0"), daqmx.DigitalIn("Dev1/port0/line1")}, nil, daqmx.Trigger{})
	if err := do.WriteDigital(2, []uint8{0, 7}, true); err != nil {
		t.Fatal(err)
	}
	got, err := di.ReadDigital(2)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0 || got[1] != 1 {
		t.Errorf("expected [0 1] got %v", got)
	}
	if err := do.WriteDigital(3, []uint8{1}, true); err == nil {
		t.Error("expected a shape error")
	}
}

func TestLastWriteBuffered(t *testing.T) {
	m := newMock()
	task := daqmx.NewTask(m, "ao")
	defer task.Close()
	clk := daqmx.Clock{Frequency: 1000, SampleCount: 4}
	task.Configure([]daqmx.Channel{daqmx.AOVoltage("Dev1/ao0", -10, 10)}, clk, daqmx.Trigger{})
	if v, _ := task.LastWrite(); v != 0 {
		t.Errorf("expected 0 before any write got %v", v)
	}
	task.WriteAnalog(4, 1, []float64{1, 2, 3, 4}, true)
	if err := task.WaitUntilDone(time.Second); err != nil {
		t.Fatal(err)
	}
	v, err := task.LastWrite()
	if err != nil {
		t.Fatal(err)
	}
	if v != 4 {
		t.Errorf("expected 4 got %v", v)
	}
}
