package daq_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"

	"github.com/nasa-jpl/golab-daqmx/acquire"
	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/generichttp/daq"
	"github.com/nasa-jpl/golab-daqmx/output"
)

var (
	_ daq.WaveformDAC = (*output.DAC)(nil)
	_ daq.RangedDAC   = (*output.DAC)(nil)
	_ daq.Timer       = (*output.DAC)(nil)
	_ daq.Synthesizer = (*output.DAC)(nil)
	_ daq.Configurer  = (*acquire.Viewer)(nil)
	_ daq.Recorder    = (*acquire.Viewer)(nil)
)

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func dacRouter(t *testing.T) (*daqmx.MockDriver, *output.DAC, chi.Router) {
	t.Helper()
	m := daqmx.NewMockDriver(daqmx.DefaultMockDevices()...)
	d, err := output.New(m, daqmx.NewCatalog(m), "Dev1/ao0", "Dev1/ao1")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	r := chi.NewRouter()
	daq.NewHTTPDAC(d).RT().Bind(r)
	return m, d, r
}

func TestOutputRoutes(t *testing.T) {
	m, _, r := dacRouter(t)
	if w := do(r, http.MethodPost, "/output", `{"channel": 1, "voltage": 2.5}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d %s", w.Code, w.Body)
	}
	if l := m.Level("Dev1/ao1"); l != 2.5 {
		t.Errorf("expected 2.5 got %v", l)
	}
	if w := do(r, http.MethodPost, "/output-multi", `{"channel": [0, 1], "voltage": [1, 2]}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d %s", w.Code, w.Body)
	}
	if l := m.Level("Dev1/ao0"); l != 1 {
		t.Errorf("expected 1 got %v", l)
	}
	if w := do(r, http.MethodPost, "/output", `{"channel": 7, "voltage": 1}`); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for a missing channel got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/output", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 got %d", w.Code)
	}
}

func TestRangeRoutes(t *testing.T) {
	_, _, r := dacRouter(t)
	if w := do(r, http.MethodPost, "/range", `{"channel": 0, "range": "-5,5"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d %s", w.Code, w.Body)
	}
	w := do(r, http.MethodGet, "/range?channel=0&format=text", "")
	if w.Body.String() != "-5,5" {
		t.Errorf("expected -5,5 got %s", w.Body)
	}
	if w := do(r, http.MethodGet, "/range", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a channel got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/range", `{"channel": 0}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a range got %d", w.Code)
	}
}

func TestPlaybackRoutes(t *testing.T) {
	m, d, r := dacRouter(t)
	do(r, http.MethodPost, "/operating-mode", `{"channel": 0, "operatingMode": "waveform"}`)
	csv := "0\n1\n2\n3\n"
	if w := do(r, http.MethodPost, "/playback/upload/float/csv", csv); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d %s", w.Code, w.Body)
	}
	if w := do(r, http.MethodPost, "/playback/start", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d %s", w.Code, w.Body)
	}
	if !d.Playing() {
		t.Fatal("expected playback")
	}
	if w := do(r, http.MethodPost, "/playback/stop", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d %s", w.Code, w.Body)
	}
	if d.Playing() {
		t.Error("expected /playback/stop to stop playback")
	}
	if l := m.Level("Dev1/ao0"); l != 3 {
		t.Errorf("expected 3 got %v", l)
	}
	if w := do(r, http.MethodPost, "/playback/upload/float/csv", "a,b\n1,2\n"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad header got %d", w.Code)
	}
}

func TestTimerAndSynthesize(t *testing.T) {
	_, d, r := dacRouter(t)
	if w := do(r, http.MethodPost, "/timer-period", `{"uint32": 2000000}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d %s", w.Code, w.Body)
	}
	w := do(r, http.MethodGet, "/timer-period", "")
	if body := strings.TrimSpace(w.Body.String()); body != `{"uint32":2000000}` {
		t.Errorf("expected {\"uint32\":2000000} got %s", body)
	}
	d.SetOperatingMode(1, output.Waveform)
	body := `{"channel": 1, "samples": 8, "waveform": {"shape": "sinus", "frequency": 50, "amplitude": 1}}`
	if w := do(r, http.MethodPost, "/playback/synthesize", body); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d %s", w.Code, w.Body)
	}
	if w := do(r, http.MethodPost, "/playback/synthesize", `{"waveform": {"shape": "square"}}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown shape got %d", w.Code)
	}
}

func TestParseWaveformCSV(t *testing.T) {
	data, err := daq.ParseWaveformCSV(strings.NewReader("2,0\n1,4\n2,5\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2 || data[0].Channel != 2 || data[1].Waveform[1] != 5 {
		t.Errorf("expected channels 2 and 0 with two samples each got %+v", data)
	}
	if _, err := daq.ParseWaveformCSV(strings.NewReader("")); err == nil {
		t.Error("expected an error for an empty CSV")
	}
}

func adcRouter(t *testing.T) chi.Router {
	t.Helper()
	m := daqmx.NewMockDriver(daqmx.DefaultMockDevices()...)
	v := acquire.NewViewer(m, "viewer")
	t.Cleanup(func() { v.Close() })
	s := acquire.DefaultSetup()
	s.Channels = []string{"Dev1/ai0", "Dev1/ai1"}
	s.Samples = 10
	if err := v.Configure(s); err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	daq.NewHTTPADC(v).RT().Bind(r)
	daq.HTTPCatalog(daqmx.NewCatalog(m)).Bind(r)
	return r
}

func TestGrabRoutes(t *testing.T) {
	r := adcRouter(t)
	w := do(r, http.MethodGet, "/grab", "")
	var d acquire.Data
	if err := json.NewDecoder(w.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if d.Channels != 2 || len(d.Values) != 20 {
		t.Errorf("expected 2 channels of 10 got %d, %d values", d.Channels, len(d.Values))
	}

	w = do(r, http.MethodGet, "/grab/csv", "")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "Dev1/ai1,") {
		t.Errorf("expected a line per channel got %q", lines)
	}

	var last acquire.Data
	json.NewDecoder(do(r, http.MethodGet, "/last", "").Body).Decode(&last)
	if last.Samples != 10 {
		t.Errorf("expected the last grab of 10 samples got %d", last.Samples)
	}

	if w := do(r, http.MethodGet, "/grab?timeout=soon", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad timeout got %d", w.Code)
	}
}

func TestGrabFITS(t *testing.T) {
	r := adcRouter(t)
	w := do(r, http.MethodGet, "/grab/fits", "")
	if ct := w.Header().Get("Content-Type"); ct != "image/fits" {
		t.Fatalf("expected image/fits got %s", ct)
	}
	f, err := fitsio.Open(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	im := f.HDU(0).(fitsio.Image)
	if axes := im.Header().Axes(); len(axes) != 2 || axes[0] != 10 || axes[1] != 2 {
		t.Errorf("expected 10x2 axes got %v", axes)
	}
	if c := im.Header().Get("CHAN1"); c == nil || c.Value != "Dev1/ai1" {
		t.Errorf("expected CHAN1 = Dev1/ai1 got %v", c)
	}
}

func TestSetupRoutes(t *testing.T) {
	r := adcRouter(t)
	if w := do(r, http.MethodPost, "/setup", `{"samples": 5}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d %s", w.Code, w.Body)
	}
	w := do(r, http.MethodGet, "/setup", "")
	var s acquire.Setup
	json.NewDecoder(w.Body).Decode(&s)
	if s.Samples != 5 || len(s.Channels) != 2 {
		t.Errorf("expected 5 samples on the same channels got %+v", s)
	}
	if w := do(r, http.MethodPost, "/setup", `{"channels": []}`); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for no channels got %d", w.Code)
	}
}

func TestCatalogRoutes(t *testing.T) {
	r := adcRouter(t)
	var devs []string
	json.NewDecoder(do(r, http.MethodGet, "/catalog/devices", "").Body).Decode(&devs)
	if len(devs) != 2 {
		t.Errorf("expected 2 devices got %v", devs)
	}
	var chans []string
	json.NewDecoder(do(r, http.MethodGet, "/catalog/channels?device=Dev2&kind=Analog_Output", "").Body).Decode(&chans)
	if len(chans) != 2 || chans[0] != "Dev2/ao0" {
		t.Errorf("expected Dev2/ao0 and Dev2/ao1 got %v", chans)
	}
	if w := do(r, http.MethodGet, "/catalog/channels?kind=bogus", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 got %d", w.Code)
	}
	var src []string
	json.NewDecoder(do(r, http.MethodGet, "/catalog/trigger-sources?device=Dev2", "").Body).Decode(&src)
	if len(src) != 2 {
		t.Errorf("expected 2 sources got %v", src)
	}
	var ranges []daqmx.Range
	json.NewDecoder(do(r, http.MethodGet, "/catalog/ranges?device=Dev1&dir=output", "").Body).Decode(&ranges)
	if len(ranges) != 2 {
		t.Errorf("expected 2 output ranges got %v", ranges)
	}
}
