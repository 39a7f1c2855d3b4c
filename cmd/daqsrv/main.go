package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/knadh/koanf"
	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/golab-daqmx/daqcfg"
	"github.com/nasa-jpl/golab-daqmx/daqmx"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "daqsrv.yml"

	k   *koanf.Koanf
	cfg daqcfg.Config
)

func setupconfig() {
	var err error
	k, cfg, err = daqcfg.Load(ConfigFileName)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
}

func root() {
	str := `daqsrv exposes NI-DAQmx hardware over HTTP: piezo scanner axes stepped
by a shared counter clock, analog outputs with waveform playback, and analog or
counter acquisition.

Usage:
	daqsrv <command>

Commands:
	run
	help
	mkconf
	conf
	drivers
	version`
	fmt.Println(str)
}

func help() {
	str := `daqsrv is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

Any key may be overridden by an environment variable prefixed DAQ_, with _ in
place of the . between sections, e.g. DAQ_SCANNER_FREQUENCY=50.

Sections:
- Driver: the registered driver to open, see the drivers command
- Devices: the expected device tree.  Devices and modules which are not
  detected are logged and left out.
- Scanner: the clock counter, its frequency in Hz, and the axes.  Each axis
  has a Name, an analog output Channel, a StepSize in nm, a Conversion in nm/V
  and optional Limits.
- Output: analog output Channels and the playback TimerPeriod in ns
- Acquire: Kind (Analog_Input or Counter_Input), Channels, Rate in Hz,
  Samples per grab, and a Period in ms for continuous acquisition (0 is off).
  Analog Channels left empty read the detected voltage inputs of Devices.
  Counters gated by a clock also take a ClockChannel (e.g. Dev1/ctr0) and the
  Source terminal whose edges are counted (e.g. /Dev1/PFI0).

An empty Endpoint disables that section.

Endpoints are listed at /endpoints once running.`
	fmt.Println(str)
}

func mkconf() {
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := daqcfg.WriteYaml(f, cfg); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	err := yml.NewEncoder(os.Stdout).Encode(cfg)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("daqsrv version %v\n", Version)
}

func pdrivers() {
	fmt.Println(strings.Join(daqmx.Drivers(), "\n"))
}

func run() {
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := BuildMux(ctx, k, cfg)
	if err != nil {
		log.Fatal(err)
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGABRT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
		srv.Close()
		os.Exit(0)
	}()
	log.Println("now listening for requests at ", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, srv.Root))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "drivers":
		pdrivers()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
