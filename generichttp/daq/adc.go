package daq

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/golab-daqmx/acquire"
	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/generichttp"
	"github.com/nasa-jpl/golab-daqmx/util"
)

// Grabber acquires one block of samples
type Grabber interface {
	Grab(context.Context) (acquire.Data, error)
}

// Configurer holds an acquisition setup
type Configurer interface {
	Setup() acquire.Setup

	Configure(acquire.Setup) error
}

// Recorder remembers its most recent grab
type Recorder interface {
	Last() acquire.Data
}

// HTTPADC holds the routes of an ADC
type HTTPADC struct {
	Grabber

	RouteTable generichttp.RouteTable
}

// NewHTTPADC returns the routes for every interface g satisfies
func NewHTTPADC(g Grabber) HTTPADC {
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/grab"}:      Grab(g),
		{Method: http.MethodGet, Path: "/grab/csv"}:  GrabCSV(g),
		{Method: http.MethodGet, Path: "/grab/fits"}: GrabFITS(g),
	}
	if c, ok := g.(Configurer); ok {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/setup"}] = GetSetup(c)
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/setup"}] = SetSetup(c)
	}
	if rec, ok := g.(Recorder); ok {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/last"}] = func(w http.ResponseWriter, r *http.Request) {
			generichttp.JSON(w, rec.Last())
		}
	}
	return HTTPADC{Grabber: g, RouteTable: rt}
}

// RT satisfies generichttp.HTTPer
func (h HTTPADC) RT() generichttp.RouteTable { return h.RouteTable }

// grab runs one acquisition bounded by the request, or ?timeout= as a Go duration
func grab(g Grabber, w http.ResponseWriter, r *http.Request) (acquire.Data, bool) {
	ctx := r.Context()
	if s := r.URL.Query().Get("timeout"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return acquire.Data{}, false
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	data, err := g.Grab(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return data, false
	}
	return data, true
}

// Grab replies with one acquisition as JSON
func Grab(g Grabber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if data, ok := grab(g, w, r); ok {
			generichttp.JSON(w, data)
		}
	}
}

// GrabCSV replies with one acquisition as CSV, one line per channel led by
// its label
func GrabCSV(g Grabber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := grab(g, w, r)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		var b strings.Builder
		for i, l := range data.Labels {
			b.WriteString(l)
			b.WriteString(",")
			b.WriteString(util.FloatSliceToCSV(data.Channel(i)))
			b.WriteString("\n")
		}
		io.WriteString(w, b.String())
	}
}

// GrabFITS replies with one acquisition as a FITS image, samples by channels
func GrabFITS(g Grabber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := grab(g, w, r)
		if !ok {
			return
		}
		hdr := w.Header()
		hdr.Set("Content-Type", "image/fits")
		hdr.Set("Content-Disposition", "attachment; filename=acquisition.fits")
		if err := WriteFITS(w, data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// WriteFITS streams data to w as a 64 bit float image, one row per channel
func WriteFITS(w io.Writer, data acquire.Data) error {
	if data.Channels == 0 || data.Samples == 0 {
		return fmt.Errorf("daq: empty acquisition")
	}
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(-64, []int{data.Samples, data.Channels})
	defer im.Close()
	cards := []fitsio.Card{
		{Name: "RATE", Value: data.Rate, Comment: "sample rate, Hz"},
		{Name: "BUNIT", Value: data.Units},
		{Name: "DATE-OBS", Value: data.Time.UTC().Format(time.RFC3339Nano)},
	}
	for i, l := range data.Labels {
		cards = append(cards, fitsio.Card{Name: fmt.Sprintf("CHAN%d", i), Value: l})
	}
	if err := im.Header().Append(cards...); err != nil {
		return err
	}
	if err := im.Write(data.Values); err != nil {
		return err
	}
	return fits.Write(im)
}

// GetSetup replies with the active acquisition setup
func GetSetup(c Configurer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generichttp.JSON(w, c.Setup())
	}
}

// SetSetup applies an acquisition setup.  Fields left out keep their
// present values.
func SetSetup(c Configurer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := c.Setup()
		if !generichttp.Decode(w, r, &s) {
			return
		}
		generichttp.Reply(w, c.Configure(s))
	}
}

// HTTPCatalog returns routes answering questions about the installed devices
func HTTPCatalog(cat *daqmx.Catalog) generichttp.RouteTable {
	return generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/catalog/devices"}:         CatalogDevices(cat),
		{Method: http.MethodGet, Path: "/catalog/channels"}:        CatalogChannels(cat),
		{Method: http.MethodGet, Path: "/catalog/trigger-sources"}: CatalogTriggerSources(cat),
		{Method: http.MethodGet, Path: "/catalog/ranges"}:          CatalogRanges(cat),
	}
}

func listOrError(w http.ResponseWriter, v interface{}, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	generichttp.JSON(w, v)
}

// CatalogDevices lists the devices
func CatalogDevices(cat *daqmx.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devs, err := cat.Devices()
		listOrError(w, devs, err)
	}
}

// CatalogChannels lists ?kind= channels, e.g. Analog_Output, of ?device=, or
// of every device when it is left out
func CatalogChannels(cat *daqmx.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		kind, err := daqmx.ParseKind(q.Get("kind"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		chans, err := cat.Channels(q.Get("device"), kind)
		listOrError(w, chans, err)
	}
}

// CatalogTriggerSources lists the trigger sources of ?device=, or of every
// device when it is left out
func CatalogTriggerSources(cat *daqmx.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var devs []string
		if d := r.URL.Query().Get("device"); d != "" {
			devs = append(devs, d)
		}
		src, err := cat.TriggerSources(devs...)
		listOrError(w, src, err)
	}
}

// CatalogRanges lists the voltage ranges of ?device= for ?dir=input or output
func CatalogRanges(cat *daqmx.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		dir := daqmx.Input
		switch strings.ToLower(q.Get("dir")) {
		case "", "input":
		case "output":
			dir = daqmx.Output
		default:
			http.Error(w, "dir must be input or output", http.StatusBadRequest)
			return
		}
		ranges, err := cat.VoltageRanges(q.Get("device"), dir)
		listOrError(w, ranges, err)
	}
}
