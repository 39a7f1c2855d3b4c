package sharedclock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/sharedclock"
)

func setup(timeScale float64) (*daqmx.MockDriver, *sharedclock.Coordinator) {
	m := daqmx.NewMockDriver(daqmx.DefaultMockDevices()...)
	m.TimeScale = timeScale
	return m, sharedclock.New(m, daqmx.NewCatalog(m), "Dev1/ctr0", 1000)
}

func wait(t *testing.T, c *sharedclock.Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestClockSourceIsInternalOutput(t *testing.T) {
	_, c := setup(0.01)
	defer c.Close()
	clk, err := c.SetUpClock(5)
	if err != nil {
		t.Fatal(err)
	}
	if clk.Source != "/Dev1/ctr0InternalOutput" {
		t.Errorf("expected /Dev1/ctr0InternalOutput got %s", clk.Source)
	}
	if clk.SampleCount != 6 {
		t.Errorf("expected 6 pulses got %d", clk.SampleCount)
	}
	if err := c.UpdateChannels(daqmx.AOVoltage("Dev1/ao0", -10, 10), "x", clk); err != nil {
		t.Fatal(err)
	}
	got, ok := c.AnalogTask().Timing().(daqmx.Clock)
	if !ok || got.Source != clk.Source {
		t.Errorf("expected the analog task to sample on %s got %v", clk.Source, c.AnalogTask().Timing())
	}
	if _, ok := c.ClockTask().Timing().(daqmx.Implicit); !ok {
		t.Errorf("expected implicit timing on the clock got %v", c.ClockTask().Timing())
	}
}

func TestSetUpClockRejectsZeroSteps(t *testing.T) {
	_, c := setup(0.01)
	if _, err := c.SetUpClock(0); !errors.Is(err, daqmx.ErrInvalidTiming) {
		t.Errorf("expected ErrInvalidTiming got %v", err)
	}
}

func TestOtherAxesHeld(t *testing.T) {
	m, c := setup(0.01)
	defer c.Close()
	clk, _ := c.SetUpClock(3)
	c.UpdateChannels(daqmx.AOVoltage("Dev1/ao0", -10, 10), "x", clk)
	c.UpdateChannels(daqmx.AOVoltage("Dev1/ao1", -10, 10), "y", clk)
	// put y somewhere first
	if err := c.SetUpVoltageArray([]float64{0.5, 1, 1.5, 1.5}, "y"); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteVoltages(); err != nil {
		t.Fatal(err)
	}
	c.ClockTask().Start()
	c.AnalogTask().WaitUntilDone(time.Second)

	clk, err := c.SetUpClock(3)
	if err != nil {
		t.Fatal(err)
	}
	c.UpdateChannels(daqmx.AOVoltage("Dev1/ao0", -10, 10), "x", clk)
	if err := c.SetUpVoltageArray([]float64{1, 2, 3, 3}, "x"); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteVoltages(); err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Applied("y"); v != 1.5 {
		t.Errorf("expected y to stay at 1.5 got %v", v)
	}
	if v, _ := c.Applied("x"); v != 3 {
		t.Errorf("expected x at 3 got %v", v)
	}
	c.ClockTask().Start()
	c.AnalogTask().WaitUntilDone(time.Second)
	if lx, ly := m.Level("Dev1/ao0"), m.Level("Dev1/ao1"); lx != 3 || ly != 1.5 {
		t.Errorf("expected outputs 3 and 1.5 got %v and %v", lx, ly)
	}
}

func TestMove(t *testing.T) {
	m, c := setup(0.01)
	defer c.Close()
	x := daqmx.AOVoltage("Dev1/ao0", -10, 10)
	y := daqmx.AOVoltage("Dev1/ao1", -10, 10)

	queued, err := c.Move("y", y, []float64{1.5})
	if err != nil || queued {
		t.Fatalf("expected a synchronous move got %v %v", queued, err)
	}
	if c.Locked() {
		t.Error("expected a single value move to finish before returning")
	}
	if _, err := c.Move("x", x, []float64{0, 0.5, 1}); err != nil {
		t.Fatal(err)
	}
	if !c.Locked() {
		t.Error("expected a stepped move to hold the lock")
	}
	wait(t, c)
	if c.Locked() {
		t.Error("expected the lock released after completion")
	}
	if v, _ := c.Applied("x"); v != 1 {
		t.Errorf("expected x at 1 got %v", v)
	}
	if v, _ := c.Applied("y"); v != 1.5 {
		t.Errorf("expected y held at 1.5 got %v", v)
	}
	if lx, ly := m.Level("Dev1/ao0"), m.Level("Dev1/ao1"); lx != 1 || ly != 1.5 {
		t.Errorf("expected outputs 1 and 1.5 got %v and %v", lx, ly)
	}
	if c.ClockTask().State() != daqmx.Unconfigured {
		t.Errorf("expected the counter released after the move, clock is %v", c.ClockTask().State())
	}
}

func TestMoveQueuedAndReplayed(t *testing.T) {
	m, c := setup(0.01)
	defer c.Close()
	x := daqmx.AOVoltage("Dev1/ao0", -10, 10)
	if _, err := c.Move("x", x, []float64{0, 1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	queued, err := c.Move("x", x, []float64{3, 2})
	if err != nil {
		t.Fatal(err)
	}
	if !queued || c.Pending() != 1 {
		t.Fatalf("expected the second move queued, pending %d", c.Pending())
	}
	wait(t, c)
	if c.Pending() != 0 {
		t.Errorf("expected the queue replayed, %d left", c.Pending())
	}
	if v, _ := c.Applied("x"); v != 2 {
		t.Errorf("expected x at 2 got %v", v)
	}
	if l := m.Level("Dev1/ao0"); l != 2 {
		t.Errorf("expected output 2 got %v", l)
	}
}

func TestCapacityExceeded(t *testing.T) {
	m := daqmx.NewMockDriver(daqmx.DefaultMockDevices()...)
	m.TimeScale = 0.01
	c := sharedclock.New(m, daqmx.NewCatalog(m), "Dev2/ctr0", 1000)
	defer c.Close()
	clk, err := c.SetUpClock(2)
	if err != nil {
		t.Fatal(err)
	}
	for i, name := range []string{"Dev2/ao0", "Dev2/ao1", "Dev2/ao2"} {
		axis := string(rune('a' + i))
		if err := c.UpdateChannels(daqmx.AOVoltage(name, -10, 10), axis, clk); err != nil {
			t.Fatalf("expected capacity to be logged, not returned, got %v", err)
		}
	}
	if axes := c.Axes(); len(axes) != 2 {
		t.Errorf("expected the third axis abandoned, have %v", axes)
	}
	if n := len(c.AnalogTask().Channels()); n != 2 {
		t.Errorf("expected the previous two channel configuration kept, have %d", n)
	}
	if _, ok := c.Applied("c"); ok {
		t.Error("expected no applied value for an abandoned axis")
	}
	_, err = c.Move("c", daqmx.AOVoltage("Dev2/ao2", -10, 10), []float64{0, 1})
	if !errors.Is(err, daqmx.ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded got %v", err)
	}
	if c.Locked() {
		t.Error("expected a failed move to release the lock")
	}
}

func TestStopNeverFails(t *testing.T) {
	_, c := setup(1)
	c.Stop()
	x := daqmx.AOVoltage("Dev1/ao0", -10, 10)
	c.Move("x", x, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	c.Move("x", x, []float64{9, 0})
	c.Stop()
	if c.Locked() || c.Pending() != 0 {
		t.Errorf("expected stop to clear the lock and the queue, locked %v pending %d", c.Locked(), c.Pending())
	}
	if st := c.ClockTask().State(); st == daqmx.Running {
		t.Errorf("expected the clock stopped got %v", st)
	}
	c.Stop()
	if err := c.Close(); err != nil {
		t.Error(err)
	}
}

func TestClockBusy(t *testing.T) {
	m := daqmx.NewMockDriver(daqmx.DefaultMockDevices()...)
	c := sharedclock.New(m, daqmx.NewCatalog(m), "Dev1/ctr0", 10)
	defer c.Close()
	c.WaitTimeout = 20 * time.Millisecond
	if _, err := c.SetUpClock(20); err != nil {
		t.Fatal(err)
	}
	if err := c.ClockTask().Start(); err != nil {
		t.Fatal(err)
	}
	_, err := c.SetUpClock(5)
	if !errors.Is(err, sharedclock.ErrClockBusy) {
		t.Errorf("expected ErrClockBusy got %v", err)
	}
}

func TestPositionWhileMoving(t *testing.T) {
	_, c := setup(1)
	defer c.Close()
	x := daqmx.AOVoltage("Dev1/ao0", -10, 10)
	if _, err := c.Move("x", x, []float64{1, 2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}
	p, err := c.Position("x")
	if err != nil {
		t.Fatal(err)
	}
	if p < 1 || p > 5 {
		t.Errorf("expected a position on the path got %v", p)
	}
	wait(t, c)
	if p, _ := c.Position("x"); p != 5 {
		t.Errorf("expected 5 got %v", p)
	}
	if _, err := c.Position("z"); !errors.Is(err, daqmx.ErrUnknownName) {
		t.Errorf("expected ErrUnknownName got %v", err)
	}
}
