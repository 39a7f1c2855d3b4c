package motion

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/golab-daqmx/generichttp"
)

// axisFloat adapts a per axis getter to the generic handlers
func axisFloat(r *http.Request, fcn func(string) (float64, error)) func() (float64, error) {
	return func() (float64, error) { return fcn(chi.URLParam(r, "axis")) }
}

func axisBool(r *http.Request, fcn func(string) (bool, error)) func() (bool, error) {
	return func() (bool, error) { return fcn(chi.URLParam(r, "axis")) }
}

// action returns a handler calling fcn with the axis of the route
func action(fcn func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generichttp.Reply(w, fcn(chi.URLParam(r, "axis")))
	}
}

func getFloat(fcn func(string) (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generichttp.GetFloat(axisFloat(r, fcn))(w, r)
	}
}

func setFloat(fcn func(string, float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		generichttp.SetFloat(func(f float64) error { return fcn(axis, f) })(w, r)
	}
}

func getBool(fcn func(string) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generichttp.GetBool(axisBool(r, fcn))(w, r)
	}
}

func setBool(fcn func(string, bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		generichttp.SetBool(func(b bool) error { return fcn(axis, b) })(w, r)
	}
}

func popAxisRelative(r *http.Request) (string, bool, error) {
	axis := chi.URLParam(r, "axis")
	relative := r.URL.Query().Get("relative")
	if relative == "" {
		relative = "false"
	}
	b, err := strconv.ParseBool(relative)
	return axis, b, err
}

// HTTPMove adds routes for the mover to the route table
func HTTPMove(m Mover, rt generichttp.RouteTable) {
	route(rt, http.MethodPost, "/axis/{axis}/home", action(m.Home))
	route(rt, http.MethodGet, "/axis/{axis}/pos", getFloat(m.GetPos))
	route(rt, http.MethodPost, "/axis/{axis}/pos", SetPos(m))
}

// SetPos returns an HTTP handler func from a mover that triggers an absolute or
// relative move on an axis based on the relative query parameter
func SetPos(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, relative, err := popAxisRelative(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f := generichttp.FloatT{}
		if !generichttp.Decode(w, r, &f) {
			return
		}
		if relative {
			err = m.MoveRel(axis, f.F64)
		} else {
			err = m.MoveAbs(axis, f.F64)
		}
		generichttp.Reply(w, err)
	}
}

// HTTPStop adds the stop route to the route table
func HTTPStop(s Stopper, rt generichttp.RouteTable) {
	route(rt, http.MethodPost, "/axis/{axis}/stop", action(s.Stop))
}

// HTTPInPosition adds routes for InPosition to the route table
func HTTPInPosition(i InPositionQueryer, rt generichttp.RouteTable) {
	route(rt, http.MethodGet, "/axis/{axis}/inposition", getBool(i.GetInPosition))
}

// HTTPSpeed adds routes for the speeder to the route table
func HTTPSpeed(s Speeder, rt generichttp.RouteTable) {
	route(rt, http.MethodPost, "/axis/{axis}/velocity", setFloat(s.SetVelocity))
	route(rt, http.MethodGet, "/axis/{axis}/velocity", getFloat(s.GetVelocity))
}

// HTTPInitialize adds routes for initialization to the route table
func HTTPInitialize(i Initializer, rt generichttp.RouteTable) {
	route(rt, http.MethodPost, "/axis/{axis}/initialize", action(i.Initialize))
}

// HTTPEnable adds routes for the enabler to the route table
func HTTPEnable(e Enabler, rt generichttp.RouteTable) {
	route(rt, http.MethodPost, "/axis/{axis}/enabled", setBool(func(axis string, b bool) error {
		if b {
			return e.Enable(axis)
		}
		return e.Disable(axis)
	}))
	route(rt, http.MethodGet, "/axis/{axis}/enabled", getBool(e.GetEnabled))
}

// HTTPSync adds routes for synchronization to the route table
func HTTPSync(s SynchronizationController, rt generichttp.RouteTable) {
	route(rt, http.MethodGet, "/axis/{axis}/synchronous", getBool(s.GetSynchronous))
	route(rt, http.MethodPost, "/axis/{axis}/synchronous", setBool(s.SetSynchronous))
}
