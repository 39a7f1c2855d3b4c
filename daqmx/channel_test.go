package daqmx_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
)

func ExampleInternalOutput() {
	fmt.Println(daqmx.InternalOutput("Dev1/ctr0"))
	// Output: /Dev1/ctr0InternalOutput
}

func ExampleDevicePrefix() {
	fmt.Println(daqmx.DevicePrefix("Dev1/ai0"), daqmx.DevicePrefix("/Dev2/PFI3"), daqmx.DevicePrefix("Dev3"))
	// Output: Dev1 Dev2 Dev3
}

func ExampleParseCounterType() {
	c, _ := daqmx.ParseCounterType("clock output")
	fmt.Println(c == daqmx.ClockOutput, c)
	// Output: true Clock Output
}

func TestParseUnknown(t *testing.T) {
	_, err := daqmx.ParseKind("Analog_Sideways")
	if !errors.Is(err, daqmx.ErrUnknownName) {
		t.Errorf("expected ErrUnknownName got %v", err)
	}
}

func TestKindRoundTrip(t *testing.T) {
	for k := daqmx.AnalogInput; k <= daqmx.Terminals; k++ {
		got, err := daqmx.ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("expected %v got %v %v", k, got, err)
		}
	}
}

func TestClockOutputDuty(t *testing.T) {
	c := daqmx.ClockOutputChannel("Dev1/ctr0", 100)
	if c.DutyCycle != 0.5 {
		t.Errorf("expected 0.5 got %v", c.DutyCycle)
	}
	c.DutyCycle = 1
	if err := c.Validate(); !errors.Is(err, daqmx.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange got %v", err)
	}
	c.DutyCycle = 0
	if err := c.Validate(); err != nil {
		t.Errorf("expected a zero duty to default, got %v", err)
	}
}

func TestValidateEmptyName(t *testing.T) {
	err := daqmx.AOVoltage("", -1, 1).Validate()
	if !errors.Is(err, daqmx.ErrEmptyName) {
		t.Errorf("expected ErrEmptyName got %v", err)
	}
}

func TestSemiPeriodNeedsMax(t *testing.T) {
	err := daqmx.SemiPeriodChannel("Dev1/ctr0", 0).Validate()
	if !errors.Is(err, daqmx.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange got %v", err)
	}
}

func TestTriggerKind(t *testing.T) {
	cases := []struct {
		src  string
		kind daqmx.TriggerKind
		err  bool
	}{
		{"/Dev1/PFI0", daqmx.DigitalEdgeTrigger, false},
		{"PFI3", daqmx.DigitalEdgeTrigger, false},
		{"Dev1/ai4", daqmx.AnalogEdgeTrigger, false},
		{"Dev1/ao0", daqmx.NoTrigger, true},
		{"", daqmx.NoTrigger, true},
	}
	for _, tc := range cases {
		k, err := daqmx.Trigger{Enabled: true, Source: tc.src}.Kind()
		if k != tc.kind || (err != nil) != tc.err {
			t.Errorf("%q: expected %v,%v got %v,%v", tc.src, tc.kind, tc.err, k, err)
		}
	}
	if k, err := (daqmx.Trigger{Source: "nonsense"}).Kind(); k != daqmx.NoTrigger || err != nil {
		t.Errorf("expected a disabled trigger to ignore its source, got %v %v", k, err)
	}
}

func TestDriverErrorMessage(t *testing.T) {
	err := daqmx.NewDriverError(-200479)
	if err.Message != daqmx.ErrorCodes[-200479] {
		t.Errorf("expected %q got %q", daqmx.ErrorCodes[-200479], err.Message)
	}
	if s := daqmx.DecodeError(-1); s != "unknown DAQmx status -1" {
		t.Errorf("expected an unknown status message got %q", s)
	}
}

func TestOpenRegistry(t *testing.T) {
	drv, err := daqmx.Open("mock")
	if err != nil {
		t.Fatal(err)
	}
	devs, _ := drv.Devices()
	if len(devs) == 0 {
		t.Error("expected the mock to list devices")
	}
	if _, err := daqmx.Open("nidaqmx-on-the-moon"); !errors.Is(err, daqmx.ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver got %v", err)
	}
}
