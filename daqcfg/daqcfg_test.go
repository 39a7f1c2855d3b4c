package daqcfg_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nasa-jpl/golab-daqmx/acquire"
	"github.com/nasa-jpl/golab-daqmx/daqcfg"
	"github.com/nasa-jpl/golab-daqmx/daqmx"
)

const tree = `
Devices:
  - Name: Dev1
    Product: PCIe-6353
    Modules:
      - Name: Dev1
        Product: PCIe-6353
        AI:
          - Name: ai0
            Type: Voltage
            Min: -5
            Max: 5
            Termination: Diff
          - Name: ai1
            Type: Thermocouple
            Min: 0
            Max: 200
            Thermocouple: K
          - Name: ai2
            Type: Voltage
            Min: 5
            Max: -5
  - Name: cDAQ9
    Product: cDAQ-9174
    Modules:
      - Name: cDAQ9Mod1
        Product: NI 9205
`

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "daqcfg")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestCheck(t *testing.T) {
	c, err := daqcfg.LoadYaml(strings.NewReader(tree))
	if err != nil {
		t.Fatal(err)
	}
	all, err := c.Channels()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 channels in the tree got %d", len(all))
	}
	m := daqmx.NewMockDriver(daqmx.DefaultMockDevices()...)
	chans := c.Check(daqmx.NewCatalog(m))
	if len(chans) != 2 {
		t.Fatalf("expected the inverted range and the missing chassis left out, got %v", chans)
	}
	if chans[0].Name != "Dev1/ai0" || chans[0].Termination != daqmx.TermDifferential {
		t.Errorf("expected Dev1/ai0 differential got %+v", chans[0])
	}
	if chans[1].Analog != daqmx.Thermocouple || chans[1].Thermocouple != daqmx.TypeK {
		t.Errorf("expected a type K thermocouple got %+v", chans[1])
	}
}

func TestChannelsRejectsBadType(t *testing.T) {
	c := daqcfg.Config{Devices: []daqcfg.Device{{Modules: []daqcfg.Module{{Name: "Dev1", AI: []daqcfg.AIChannel{{Name: "ai0", Type: "Pressure"}}}}}}}
	if _, err := c.Channels(); err == nil {
		t.Error("expected an error for an unknown analog type")
	}
}

func TestLoadDefaults(t *testing.T) {
	_, c, err := daqcfg.Load(filepath.Join(tempDir(t), "missing.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr != ":8000" || c.Driver != "mock" {
		t.Errorf("expected the defaults got %s %s", c.Addr, c.Driver)
	}
	if c.Scanner.Frequency != 100 {
		t.Errorf("expected a 100 Hz step clock got %v", c.Scanner.Frequency)
	}
	if len(c.Scanner.Axes) != 3 || c.Scanner.Axes[1].Channel != "Dev1/ao1" {
		t.Errorf("expected three axes got %+v", c.Scanner.Axes)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(tempDir(t), "daqsrv.yml")
	body := "Addr: \":9000\"\nScanner:\n  Frequency: 250\nAcquire:\n  Samples: 20\n  Channels: [Dev1/ai4]\n"
	if err := ioutil.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("DAQ_SCANNER_CLOCKCHANNEL", "Dev1/ctr2")
	defer os.Unsetenv("DAQ_SCANNER_CLOCKCHANNEL")

	k, c, err := daqcfg.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr != ":9000" || c.Scanner.Frequency != 250 {
		t.Errorf("expected the file to override the defaults got %s %v", c.Addr, c.Scanner.Frequency)
	}
	if c.Scanner.ClockChannel != "Dev1/ctr2" {
		t.Errorf("expected the environment to override the clock got %s", c.Scanner.ClockChannel)
	}
	s, err := acquire.FromSettings(k, "Acquire")
	if err != nil {
		t.Fatal(err)
	}
	if s.Samples != 20 || len(s.Channels) != 1 || s.Channels[0] != "Dev1/ai4" || s.Rate != 1000 {
		t.Errorf("expected 20 samples of Dev1/ai4 at the default rate got %+v", s)
	}
}

func TestWriteYamlRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := daqcfg.WriteYaml(&buf, daqcfg.Default()); err != nil {
		t.Fatal(err)
	}
	c, err := daqcfg.LoadYaml(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if c.Output.TimerPeriod != 1000000 || c.Scanner.Axes[2].Name != "Z" {
		t.Errorf("expected the defaults back got %+v", c)
	}
}
