package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"

	"github.com/nasa-jpl/golab-daqmx/acquire"
	"github.com/nasa-jpl/golab-daqmx/daqcfg"
	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/generichttp"
	"github.com/nasa-jpl/golab-daqmx/generichttp/daq"
	"github.com/nasa-jpl/golab-daqmx/generichttp/motion"
	"github.com/nasa-jpl/golab-daqmx/output"
	"github.com/nasa-jpl/golab-daqmx/scanner"
	"github.com/nasa-jpl/golab-daqmx/server/middleware/locker"
	"github.com/nasa-jpl/golab-daqmx/sharedclock"
)

// Server is everything run serves, and what to release at exit
type Server struct {
	Root    chi.Router
	Coord   *sharedclock.Coordinator
	Scanner *scanner.Controller
	DAC     *output.DAC
	Viewer  *acquire.Viewer

	closers []func() error
}

// Close releases the hardware
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Println("close:", err)
		}
	}
}

// logSink logs the status of the continuous viewer.  The blocks themselves
// are served from /last.
type logSink struct{}

func (logSink) Data(acquire.Data) {}

func (logSink) Status(msg string) { log.Printf("viewer: %s\n", msg) }

// LoadWaveform loads a CSV file into the DAC buffers, for on-demand playback
func LoadWaveform(dac *output.DAC, name string, period time.Duration) error {
	if period <= 0 {
		return errors.New("LoadWaveform: period must be positive")
	}
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return daq.LoadCSVFloats(dac, f, uint32(period.Nanoseconds()))
}

// withDetected fills an analog setup without channels with the voltage
// inputs of the device tree which were detected
func withDetected(s acquire.Setup, present []daqmx.Channel) acquire.Setup {
	if s.Kind != daqmx.AnalogInput || len(s.Channels) != 0 {
		return s
	}
	for _, ch := range present {
		if ch.Kind == daqmx.AnalogInput && ch.Analog == daqmx.Voltage {
			s.Channels = append(s.Channels, ch.Name)
		}
	}
	if len(s.Channels) != 0 {
		log.Printf("acquire: reading the detected inputs %v\n", s.Channels)
	}
	return s
}

// mount binds the routes of httper behind a lock at endpoint and records them
// in the graph served at /endpoints
func mount(root chi.Router, graph map[string][]string, endpoint string, httper generichttp.HTTPer, lock locker.ManipulableLock, mw ...func(http.Handler) http.Handler) {
	hndlS := generichttp.SubMuxSanitize(endpoint)
	locker.Inject(httper, lock)
	graph[hndlS] = httper.RT().Endpoints()
	r := chi.NewRouter()
	r.Use(mw...)
	r.Use(lock.Check)
	httper.RT().Bind(r)
	root.Mount(hndlS, r)
	log.Printf("%s available via HTTP at %s\n", endpoint, hndlS)
}

// BuildMux opens the driver and builds the scanner, output and acquisition
// nodes of the configuration.  An empty endpoint leaves its node out.
// Background loops run until ctx is done.
func BuildMux(ctx context.Context, k *koanf.Koanf, c daqcfg.Config) (*Server, error) {
	drv, err := daqmx.Open(c.Driver)
	if err != nil {
		return nil, err
	}
	cat := daqmx.NewCatalog(drv)
	present := c.Check(cat)

	s := &Server{}
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	graph := map[string][]string{}

	if c.Scanner.Endpoint != "" {
		coord := sharedclock.New(drv, cat, c.Scanner.ClockChannel, c.Scanner.Frequency)
		s.closers = append(s.closers, coord.Close)
		ctl, err := scanner.New(coord, c.Scanner.Axes...)
		if err != nil {
			s.Close()
			return nil, err
		}
		go coord.Run(ctx)
		s.Coord, s.Scanner = coord, ctl

		httper := motion.NewHTTPMotionController(ctl)
		limiter := motion.LimitMiddleware{Limits: ctl.Limits(), Mov: ctl}
		limiter.Inject(httper)
		mount(root, graph, c.Scanner.Endpoint, httper, locker.NewAL(), limiter.Check)
	}

	if c.Output.Endpoint != "" {
		dac, err := output.New(drv, cat, c.Output.Channels...)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, dac.Close)
		if err := dac.SetTimerPeriod(c.Output.TimerPeriod); err != nil {
			p, _ := dac.GetTimerPeriod()
			log.Printf("output: timer period %d ns: %v, keeping %d\n", c.Output.TimerPeriod, err, p)
		}
		s.DAC = dac

		httper := daq.NewHTTPDAC(dac)
		rt := httper.RT()
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/status"}] = func(w http.ResponseWriter, r *http.Request) {
			generichttp.JSON(w, dac.Status())
		}
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/load-waveform"}] = func(w http.ResponseWriter, r *http.Request) {
			type msg struct {
				Filename string `json:"filename"`
				Periodns int64  `json:"period_ns"`
			}
			var input msg
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			err := LoadWaveform(dac, input.Filename, time.Duration(input.Periodns)*time.Nanosecond)
			generichttp.Reply(w, err)
		}
		mount(root, graph, c.Output.Endpoint, httper, locker.New())
	}

	if c.Acquire.Endpoint != "" {
		viewer := acquire.NewViewer(drv, "acquire")
		s.closers = append(s.closers, viewer.Close)
		setup, err := acquire.FromSettings(k, "Acquire")
		if err == nil {
			setup = withDetected(setup, present)
			err = viewer.Configure(setup)
		}
		if err != nil {
			// the setup can still be fixed over HTTP
			log.Println("acquire: initial setup not applied:", err)
		}
		s.Viewer = viewer

		httper := daq.NewHTTPADC(viewer)
		for mp, h := range daq.HTTPCatalog(cat) {
			httper.RT()[mp] = h
		}
		mount(root, graph, c.Acquire.Endpoint, httper, locker.New())
		if c.Acquire.Period > 0 {
			go viewer.Run(ctx, time.Duration(c.Acquire.Period)*time.Millisecond, logSink{})
		}
	}

	if len(graph) == 0 {
		log.Println("no endpoints configured")
	}
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		generichttp.JSON(w, graph)
	})
	s.Root = root
	return s, nil
}
