// Package motion provides an HTTP interface to motion controllers.
//
// It defines a set of small interfaces a controller may implement any
// number of.  NewHTTPMotionController finds the ones a controller satisfies
// and binds their routes under /axis/{axis}/...
package motion

import (
	"net/http"

	"github.com/nasa-jpl/golab-daqmx/generichttp"
)

// Mover describes an interface with position-related methods for axes
type Mover interface {
	// GetPos gets the current position of an axis
	GetPos(string) (float64, error)

	// MoveAbs moves an axis to an absolute position
	MoveAbs(string, float64) error

	// MoveRel moves an axis a relative amount
	MoveRel(string, float64) error

	// Home homes an axis
	Home(string) error
}

// Stopper describes an interface with stop-related methods for axes
type Stopper interface {
	// Stop aborts motion of the axis
	Stop(string) error
}

// InPositionQueryer is a type which can query whether an axis is in position
type InPositionQueryer interface {
	// GetInPosition returns True if the axis is in position
	GetInPosition(string) (bool, error)
}

// Speeder describes an interface with velocity-related methods for axes
type Speeder interface {
	// SetVelocity sets the velocity setpoint on the axis
	SetVelocity(string, float64) error

	// GetVelocity gets the velocity setpoint on the axis
	GetVelocity(string) (float64, error)
}

// Initializer is a type which may initialize an axis
type Initializer interface {
	// Initialize an axis, engaging the control electronics
	Initialize(string) error
}

// Enabler describes an interface with enable/disable methods for axes
type Enabler interface {
	// Enable enables an axis
	Enable(string) error

	// Disable disables an axis
	Disable(string) error

	// GetEnabled gets if an axis is enabled
	GetEnabled(string) (bool, error)
}

// SynchronizationController is a type which can control whether an axis is
// in synchronous mode or not
type SynchronizationController interface {
	// SetSynchronous places axis (string) in sync mode
	SetSynchronous(string, bool) error

	// GetSynchronous queries whether axis (string) is in sync mode
	GetSynchronous(string) (bool, error)
}

// Controller is used for the HTTP interface, which will check if the concrete
// type satisfies the other interfaces in this package and inject their routes
type Controller interface {
	// Mover - all Controllers must be Movers
	Mover
}

// HTTPMotionController wraps a motion controller with HTTP
type HTTPMotionController struct {
	Controller

	RouteTable generichttp.RouteTable
}

// NewHTTPMotionController returns a new HTTP wrapper with the route table pre-configured
func NewHTTPMotionController(c Controller) HTTPMotionController {
	rt := generichttp.RouteTable{}
	HTTPMove(c, rt)
	if s, ok := c.(Stopper); ok {
		HTTPStop(s, rt)
	}
	if i, ok := c.(InPositionQueryer); ok {
		HTTPInPosition(i, rt)
	}
	if s, ok := c.(Speeder); ok {
		HTTPSpeed(s, rt)
	}
	if i, ok := c.(Initializer); ok {
		HTTPInitialize(i, rt)
	}
	if e, ok := c.(Enabler); ok {
		HTTPEnable(e, rt)
	}
	if s, ok := c.(SynchronizationController); ok {
		HTTPSync(s, rt)
	}
	return HTTPMotionController{Controller: c, RouteTable: rt}
}

// RT satisfies the HTTPer interface
func (h HTTPMotionController) RT() generichttp.RouteTable {
	return h.RouteTable
}

func route(rt generichttp.RouteTable, method, path string, h http.HandlerFunc) {
	rt[generichttp.MethodPath{Method: method, Path: path}] = h
}
