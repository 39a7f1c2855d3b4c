package util_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/nasa-jpl/golab-daqmx/util"
)

func ExampleArange() {
	fmt.Println(util.Arange(0, 350, 100))
	fmt.Println(util.Arange(300, 0, 100))
	// Output:
	// [0 100 200 300]
	// [300 200 100]
}

func ExampleSetBit_msb() {
	out := util.SetBit(0, 7, true)
	fmt.Printf("%08b\n", out)
	// Output: 10000000
}

func ExampleSetBit_lsb() {
	out := util.SetBit(255, 0, false)
	fmt.Printf("%08b\n", out)
	// Output: 11111110
}

func TestGetBit(t *testing.T) {
	var b byte = 0x05
	for i, expected := range []bool{true, false, true, false} {
		if got := util.GetBit(b, uint(i)); got != expected {
			t.Errorf("bit %d: expected %v got %v", i, expected, got)
		}
	}
}

func TestUniqueString(t *testing.T) {
	inp := []string{"a", "b", "c", "a"}
	expected := []string{"a", "b", "c"}
	output := util.UniqueString(inp)
	if len(output) != len(expected) {
		t.Fatalf("expected %v got %v", expected, output)
	}
	for i := 0; i < len(output); i++ {
		if output[i] != expected[i] {
			t.Errorf("expected %s got %s", expected[i], output[i])
		}
	}
}

func TestFloatSliceToCSV(t *testing.T) {
	inp := []float64{1, 2.5, -3}
	expected := "1,2.5,-3"
	out := util.FloatSliceToCSV(inp)
	if expected != out {
		t.Errorf("expected %s got %s", expected, out)
	}
}

func TestClampHigh(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = 20.
	)
	clamped := util.Clamp(input, low, high)
	if clamped != high {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestClampLow(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = -1.
	)
	clamped := util.Clamp(input, low, high)
	if clamped != low {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestLimiter(t *testing.T) {
	l := util.Limiter{Min: -1, Max: 1}
	if !l.Check(1) || l.Check(1.01) {
		t.Error("expected the limits to be inclusive")
	}
	if c := l.Clamp(-5); c != -1 {
		t.Errorf("expected -1 got %v", c)
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}
