// Package daqcfg holds the configuration of a DAQ server.
//
// Configuration is layered with koanf: the defaults of Default, then a YAML
// file, then environment variables prefixed DAQ_.  An environment variable
// names a key case insensitively with _ for the . separator, e.g.
// DAQ_SCANNER_FREQUENCY=50 sets Scanner.Frequency.
package daqcfg

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/golab-daqmx/acquire"
	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/scanner"
)

// EnvPrefix is the prefix of environment overrides
const EnvPrefix = "DAQ_"

// AIChannel is an analog input of a module
type AIChannel struct {
	// Name is the channel on the module, e.g. ai0
	Name string `yaml:"Name" koanf:"Name"`

	// Type is Voltage, Current or Thermocouple
	Type string `yaml:"Type" koanf:"Type"`

	Min float64 `yaml:"Min" koanf:"Min"`
	Max float64 `yaml:"Max" koanf:"Max"`

	// Termination of voltage and current channels, e.g. Diff
	Termination string `yaml:"Termination" koanf:"Termination"`

	// Thermocouple type, e.g. K
	Thermocouple string `yaml:"Thermocouple" koanf:"Thermocouple"`
}

// Module is a card of a chassis, or the device itself for a plug in board
type Module struct {
	Name    string      `yaml:"Name" koanf:"Name"`
	Product string      `yaml:"Product" koanf:"Product"`
	AI      []AIChannel `yaml:"AI" koanf:"AI"`
}

// Device is a chassis or board the driver reports
type Device struct {
	Name    string   `yaml:"Name" koanf:"Name"`
	Product string   `yaml:"Product" koanf:"Product"`
	Modules []Module `yaml:"Modules" koanf:"Modules"`
}

// Scanner configures the shared clock coordinator and its axes
type Scanner struct {
	// Endpoint the axes are served under, empty to disable
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// ClockChannel is the counter generating the step clock, e.g. Dev1/ctr0
	ClockChannel string `yaml:"ClockChannel" koanf:"ClockChannel"`

	// Frequency of the step clock, Hz
	Frequency float64 `yaml:"Frequency" koanf:"Frequency"`

	Axes []scanner.Axis `yaml:"Axes" koanf:"Axes"`
}

// Output configures an analog output card
type Output struct {
	Endpoint string   `yaml:"Endpoint" koanf:"Endpoint"`
	Channels []string `yaml:"Channels" koanf:"Channels"`

	// TimerPeriod is the playback sample period, ns
	TimerPeriod uint32 `yaml:"TimerPeriod" koanf:"TimerPeriod"`
}

// Acquire configures a viewer.  Its keys are read by acquire.FromSettings.
type Acquire struct {
	Endpoint    string   `yaml:"Endpoint" koanf:"Endpoint"`
	Kind        string   `yaml:"Kind" koanf:"Kind"`
	Channels    []string `yaml:"Channels" koanf:"Channels"`
	Min         float64  `yaml:"Min" koanf:"Min"`
	Max         float64  `yaml:"Max" koanf:"Max"`
	Termination string   `yaml:"Termination" koanf:"Termination"`
	Rate        float64  `yaml:"Rate" koanf:"Rate"`
	Samples     int      `yaml:"Samples" koanf:"Samples"`

	// ClockChannel gates counters by a clock at Rate, Source is what they count
	ClockChannel string `yaml:"ClockChannel" koanf:"ClockChannel"`
	Source       string `yaml:"Source" koanf:"Source"`

	// Period between grabs of the continuous viewer, ms.  Zero disables it.
	Period int `yaml:"Period" koanf:"Period"`
}

// Config is the whole configuration of a server
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Driver is the registered driver name, e.g. mock
	Driver string `yaml:"Driver" koanf:"Driver"`

	Devices []Device `yaml:"Devices" koanf:"Devices"`

	Scanner Scanner `yaml:"Scanner" koanf:"Scanner"`

	Output Output `yaml:"Output" koanf:"Output"`

	Acquire Acquire `yaml:"Acquire" koanf:"Acquire"`
}

// Default is a mock driver with three scanner axes, four outputs and two
// inputs of Dev1
func Default() Config {
	setup := acquire.DefaultSetup()
	return Config{
		Addr:   ":8000",
		Driver: "mock",
		Scanner: Scanner{
			Endpoint:     "scanner",
			ClockChannel: "Dev1/ctr0",
			Frequency:    float64(1e9 / scanner.DefaultStepTime.Nanoseconds()),
			Axes: []scanner.Axis{
				{Name: "X", Channel: "Dev1/ao0", StepSize: scanner.DefaultStepSize, Conversion: scanner.DefaultConversion},
				{Name: "Y", Channel: "Dev1/ao1", StepSize: scanner.DefaultStepSize, Conversion: scanner.DefaultConversion},
				{Name: "Z", Channel: "Dev1/ao2", StepSize: scanner.DefaultStepSize, Conversion: scanner.DefaultConversion},
			},
		},
		Output: Output{
			Endpoint:    "output",
			Channels:    []string{"Dev1/ao3"},
			TimerPeriod: 1000000,
		},
		Acquire: Acquire{
			Endpoint: "acquire",
			Kind:     setup.Kind.String(),
			Channels: []string{"Dev1/ai0", "Dev1/ai1"},
			Min:      setup.Min,
			Max:      setup.Max,
			Rate:     setup.Rate,
			Samples:  setup.Samples,
		},
	}
}

// Load layers the defaults, the YAML file at path and the environment.  A
// missing file is not an error.
func Load(path string) (*koanf.Koanf, Config, error) {
	k := koanf.New(".")
	var c Config
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return k, c, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return k, c, fmt.Errorf("daqcfg: loading %s: %w", path, err)
		}
	}
	keys := make(map[string]string)
	for _, key := range k.Keys() {
		keys[strings.ToLower(key)] = key
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.Replace(strings.TrimPrefix(s, EnvPrefix), "_", ".", -1))
		if key, ok := keys[s]; ok {
			return key
		}
		log.Printf("daqcfg: %s%s does not name a configuration key, ignored\n", EnvPrefix, s)
		return ""
	}), nil)
	if err != nil {
		return k, c, err
	}
	err = k.Unmarshal("", &c)
	return k, c, err
}

// LoadYaml reads a configuration from YAML alone, on top of the defaults
func LoadYaml(r io.Reader) (Config, error) {
	c := Default()
	err := yml.NewDecoder(r).Decode(&c)
	return c, err
}

// WriteYaml encodes c as YAML, the format Load reads
func WriteYaml(w io.Writer, c Config) error {
	return yml.NewEncoder(w).Encode(c)
}

// Channels returns the analog input descriptors of the device tree
func (c Config) Channels() ([]daqmx.Channel, error) {
	var out []daqmx.Channel
	for _, d := range c.Devices {
		for _, m := range d.Modules {
			for _, ai := range m.AI {
				ch, err := ai.channel(m.Name)
				if err != nil {
					return nil, err
				}
				out = append(out, ch)
			}
		}
	}
	return out, nil
}

func (ai AIChannel) channel(module string) (daqmx.Channel, error) {
	name := module + "/" + ai.Name
	typ, err := daqmx.ParseAnalogType(ai.Type)
	if err != nil {
		return daqmx.Channel{}, err
	}
	if typ == daqmx.Thermocouple {
		tc, err := daqmx.ParseThermocoupleType(ai.Thermocouple)
		if err != nil {
			return daqmx.Channel{}, err
		}
		return daqmx.AIThermocouple(name, ai.Min, ai.Max, tc), nil
	}
	term := daqmx.TermDefault
	if ai.Termination != "" {
		if term, err = daqmx.ParseTermination(ai.Termination); err != nil {
			return daqmx.Channel{}, err
		}
	}
	if typ == daqmx.Current {
		return daqmx.AICurrent(name, ai.Min, ai.Max, term), nil
	}
	return daqmx.AIVoltage(name, ai.Min, ai.Max, term), nil
}

// Check walks the device tree against what the driver reports.  Devices and
// modules which are missing or of the wrong product are logged and left out,
// as are channels which do not validate.  The channels of everything present
// are returned.
func (c Config) Check(cat *daqmx.Catalog) []daqmx.Channel {
	var out []daqmx.Channel
	for _, d := range c.Devices {
		if err := cat.CheckProduct(d.Name, d.Product); err != nil {
			log.Printf("daqcfg: device %s not detected: %v\n", d.Name, err)
			continue
		}
		for _, m := range d.Modules {
			if err := cat.CheckProduct(m.Name, m.Product); err != nil {
				log.Printf("daqcfg: module %s not detected: %v\n", m.Name, err)
				continue
			}
			for _, ai := range m.AI {
				ch, err := ai.channel(m.Name)
				if err == nil {
					err = ch.Validate()
				}
				if err != nil {
					log.Printf("daqcfg: channel %s/%s: %v\n", m.Name, ai.Name, err)
					continue
				}
				out = append(out, ch)
			}
		}
	}
	log.Printf("daqcfg: %d channels from the configuration\n", len(out))
	return out
}
