// Package daq provides a generic HTTP interface to ADC and DAC devices
//
// This is not the last word in speed, due to HTTP having reasonable latency in
// most client languages, but it is the last word in ease of use.
package daq

import (
	"encoding/csv"
	"errors"
	"fmt"
	"go/types"
	"io"
	"net/http"
	"strconv"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/generichttp"
)

// DAC is a model for simple digital to analog converter
type DAC interface {
	// Output sends a voltage on a given channel
	Output(int, float64) error

	// OutputDN16 sends a data number on a given channel
	OutputDN16(int, uint16) error
}

// MultiChannelDAC allows multiple channels to be written at once
type MultiChannelDAC interface {
	DAC

	// OutputMulti writes a sequence of voltages to a sequence of channels
	OutputMulti([]int, []float64) error

	// OutputMultiDN16 outputs a sequence of data numbers to a sequence of channels
	OutputMultiDN16([]int, []uint16) error
}

// RangedDAC has a selectable output range per channel
type RangedDAC interface {
	// SetRange sets the output range of a DAC channel, "min,max"
	SetRange(int, string) error

	// GetRange returns the output range of a DAC channel
	GetRange(int) (string, error)
}

// WaveformDAC is a DAC which allows waveform playback
type WaveformDAC interface {
	MultiChannelDAC

	SetOperatingMode(int, string) error

	GetOperatingMode(int) (string, error)

	SetTriggerMode(int, string) error

	GetTriggerMode(int) (string, error)

	PopulateWaveform(int, []float64) error

	StartWaveform() error

	StopWaveform() error
}

// Timer describes a clock
type Timer interface {
	SetTimerPeriod(uint32) error

	GetTimerPeriod() (uint32, error)
}

// Synthesizer fills a channel's waveform buffer from a shape
type Synthesizer interface {
	Synthesize(int, daqmx.Waveform, int) error
}

// HTTPDAC holds the routes of a DAC
type HTTPDAC struct {
	DAC

	RouteTable generichttp.RouteTable
}

// NewHTTPDAC returns the routes for every interface d satisfies
func NewHTTPDAC(d DAC) HTTPDAC {
	rt := generichttp.RouteTable{}
	HTTPBasicDAC(d, rt)
	if m, ok := d.(MultiChannelDAC); ok {
		HTTPMultiChannel(m, rt)
	}
	if rd, ok := d.(RangedDAC); ok {
		HTTPRanged(rd, rt)
	}
	if wd, ok := d.(WaveformDAC); ok {
		HTTPWaveform(wd, rt)
	}
	if t, ok := d.(Timer); ok {
		HTTPTimer(t, rt)
	}
	if s, ok := d.(Synthesizer); ok {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/playback/synthesize"}] = Synthesize(s)
	}
	return HTTPDAC{DAC: d, RouteTable: rt}
}

// RT satisfies generichttp.HTTPer
func (h HTTPDAC) RT() generichttp.RouteTable { return h.RouteTable }

// HTTPBasicDAC adds routes for basic DAC operation to a table
func HTTPBasicDAC(iface DAC, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/output"}] = Output(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/output-dn-16"}] = OutputDN16(iface)
}

// channel reads ?channel= from the query
func channel(w http.ResponseWriter, r *http.Request) (int, bool) {
	ch, err := strconv.Atoi(r.URL.Query().Get("channel"))
	if err != nil {
		http.Error(w, "channel query parameter: "+err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return ch, true
}

// Output returns an HTTP handlerfunc that will write a voltage to a channel
func Output(d DAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := struct {
			Channel int     `json:"channel"`
			Voltage float64 `json:"voltage"`
		}{}
		if !generichttp.Decode(w, r, &input) {
			return
		}
		generichttp.Reply(w, d.Output(input.Channel, input.Voltage))
	}
}

// OutputDN16 returns an HTTP handlerfunc that will write a data number to a channel
func OutputDN16(d DAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := struct {
			Channel int    `json:"channel"`
			DN      uint16 `json:"dn"`
		}{}
		if !generichttp.Decode(w, r, &input) {
			return
		}
		generichttp.Reply(w, d.OutputDN16(input.Channel, input.DN))
	}
}

// HTTPMultiChannel adds routes for multi channel output to the table
func HTTPMultiChannel(iface MultiChannelDAC, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/output-multi"}] = OutputMulti(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/output-multi-dn-16"}] = OutputMultiDN16(iface)
}

// OutputMulti returns an HTTP handlerfunc that will write voltages to channels
func OutputMulti(d MultiChannelDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := struct {
			Channels []int     `json:"channel"`
			Voltages []float64 `json:"voltage"`
		}{}
		if !generichttp.Decode(w, r, &input) {
			return
		}
		generichttp.Reply(w, d.OutputMulti(input.Channels, input.Voltages))
	}
}

// OutputMultiDN16 returns an HTTP handlerfunc that will write data numbers to channels
func OutputMultiDN16(d MultiChannelDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := struct {
			Channels []int    `json:"channel"`
			DNs      []uint16 `json:"dn"`
		}{}
		if !generichttp.Decode(w, r, &input) {
			return
		}
		generichttp.Reply(w, d.OutputMultiDN16(input.Channels, input.DNs))
	}
}

// HTTPRanged adds routes for the output range to the table
func HTTPRanged(iface RangedDAC, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/range"}] = setChannelString(iface.SetRange, "range")
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/range"}] = getChannelString(iface.GetRange)
}

// setChannelString decodes {"channel": 1, key: "..."} and calls fcn
func setChannelString(fcn func(int, string) error, key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := map[string]interface{}{}
		if !generichttp.Decode(w, r, &input) {
			return
		}
		ch, ok := input["channel"].(float64)
		s, ok2 := input[key].(string)
		if !ok || !ok2 {
			http.Error(w, fmt.Sprintf("expected a body of {\"channel\": int, %q: string}", key), http.StatusBadRequest)
			return
		}
		generichttp.Reply(w, fcn(int(ch), s))
	}
}

// getChannelString answers GET ?channel=N with the string fcn returns
func getChannelString(fcn func(int) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		s, err := fcn(ch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := generichttp.HumanPayload{T: types.String, String: s}
		hp.EncodeAndRespond(w, r)
	}
}

// HTTPWaveform adds routes for waveform playback to the table
func HTTPWaveform(iface WaveformDAC, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/operating-mode"}] = setChannelString(iface.SetOperatingMode, "operatingMode")
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/operating-mode"}] = getChannelString(iface.GetOperatingMode)

	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/trigger-mode"}] = setChannelString(iface.SetTriggerMode, "triggerMode")
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/trigger-mode"}] = getChannelString(iface.GetTriggerMode)

	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/playback/upload/float/csv"}] = UploadWaveformFloatCSV(iface)

	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/playback/start"}] = StartWaveform(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/playback/stop"}] = StopWaveform(iface)
}

// UploadWaveformFloatCSV is an HTTP interface to multiple
// PopulateWaveform calls from one CSV file
func UploadWaveformFloatCSV(d WaveformDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		data, err := ParseWaveformCSV(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		generichttp.Reply(w, populate(d, data))
	}
}

// StartWaveform commences waveform playback
func StartWaveform(d WaveformDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generichttp.Reply(w, d.StartWaveform())
	}
}

// StopWaveform ceases waveform playback
func StopWaveform(d WaveformDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generichttp.Reply(w, d.StopWaveform())
	}
}

// Synthesize fills a waveform buffer from
// {"channel": 0, "samples": 100, "waveform": {"shape": "sine", ...}}
func Synthesize(s Synthesizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := struct {
			Channel  int `json:"channel"`
			Samples  int `json:"samples"`
			Waveform struct {
				Shape     string  `json:"shape"`
				Frequency float64 `json:"frequency"`
				Amplitude float64 `json:"amplitude"`
				Offset    float64 `json:"offset"`
			} `json:"waveform"`
		}{}
		if !generichttp.Decode(w, r, &input) {
			return
		}
		shape, err := daqmx.ParseShape(input.Waveform.Shape)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		wf := daqmx.Waveform{Shape: shape, Frequency: input.Waveform.Frequency,
			Amplitude: input.Waveform.Amplitude, Offset: input.Waveform.Offset}
		generichttp.Reply(w, s.Synthesize(input.Channel, wf, input.Samples))
	}
}

// HTTPTimer adds routes for basic Timer operation to a table
func HTTPTimer(iface Timer, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/timer-period"}] = generichttp.SetUint32(iface.SetTimerPeriod)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/timer-period"}] = generichttp.GetUint32(iface.GetTimerPeriod)
}

// ChannelWaveform is the samples of one channel
type ChannelWaveform struct {
	Channel  int
	Waveform []float64
}

// ParseWaveformCSV reads a CSV whose header row is the channel numbers and
// whose remaining rows are one sample of each channel
func ParseWaveformCSV(r io.Reader) ([]ChannelWaveform, error) {
	var out []ChannelWaveform
	reader := csv.NewReader(r)
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		if header {
			header = false
			out = make([]ChannelWaveform, len(record))
			for i := range record {
				c, err := strconv.Atoi(record[i])
				if err != nil {
					return out, fmt.Errorf("header column %d: %w", i, err)
				}
				out[i].Channel = c
			}
			continue
		}
		for i := range record {
			f, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return out, err
			}
			out[i].Waveform = append(out[i].Waveform, f)
		}
	}
	if len(out) == 0 {
		return out, errors.New("empty CSV")
	}
	return out, nil
}

func populate(d WaveformDAC, data []ChannelWaveform) error {
	for _, c := range data {
		if err := d.PopulateWaveform(c.Channel, c.Waveform); err != nil {
			return err
		}
	}
	return nil
}

// LoadCSVFloats loads a waveform CSV into d and sets its timer period in ns
func LoadCSVFloats(d interface {
	WaveformDAC
	Timer
}, r io.Reader, periodNs uint32) error {
	data, err := ParseWaveformCSV(r)
	if err != nil {
		return err
	}
	if err := d.SetTimerPeriod(periodNs); err != nil {
		return err
	}
	return populate(d, data)
}
