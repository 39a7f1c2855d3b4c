// Package locker provides an HTTP middleware which allows an HTTPHandler to be locked, returning 423 (locked)
package locker

import (
	"go/types"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/golab-daqmx/generichttp"
)

// ManipulableLock is a lock that can be toggled over HTTP and guards the
// routes of a node
type ManipulableLock interface {
	// Check is the middleware bouncing requests while locked
	Check(http.Handler) http.Handler

	// Inject adds the routes used to manipulate the lock
	Inject(generichttp.HTTPer)
}

// Inject adds lock routes to an HTTPer
func Inject(other generichttp.HTTPer, l ManipulableLock) {
	l.Inject(other)
}

// Locker is a type which behaves like a sync.Mutex without the blocking,
// and holds a list of paths to not protect
type Locker struct {
	mu       sync.Mutex
	isLocked bool

	// DoNotProtect is a list of paths not to apply the lock to
	DoNotProtect []string
}

// New returns a new Locker with DoNotProtect prepopulated with "lock"
func New() *Locker {
	return &Locker{DoNotProtect: []string{"lock"}}
}

// Lock the locker
func (l *Locker) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isLocked = true
}

// Unlock the locker
func (l *Locker) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isLocked = false
}

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isLocked
}

func protected(path string, skip []string) bool {
	for _, str := range skip {
		if strings.Contains(path, str) {
			return false
		}
	}
	return true
}

// Check is an HTTP middleware that returns http.StatusLocked if Locked() is true, otherwise passes down the line
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Locked() && protected(r.URL.Path, l.DoNotProtect) {
			w.WriteHeader(http.StatusLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Inject places GET and POST /lock on the table of h
func (l *Locker) Inject(h generichttp.HTTPer) {
	rt := h.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/lock"}] = generichttp.GetBool(func() (bool, error) {
		return l.Locked(), nil
	})
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/lock"}] = generichttp.SetBool(func(b bool) error {
		if b {
			l.Lock()
		} else {
			l.Unlock()
		}
		return nil
	})
}

// AxisLocker locks the axes of a motion controller one at a time.  A request
// is bounced when the {axis} of its route is locked.
type AxisLocker struct {
	mu     sync.Mutex
	locked map[string]bool

	// DoNotProtect is a list of paths not to apply the lock to
	DoNotProtect []string
}

// NewAL returns a new AxisLocker with DoNotProtect prepopulated with "lock"
func NewAL() *AxisLocker {
	return &AxisLocker{locked: make(map[string]bool), DoNotProtect: []string{"lock"}}
}

// Lock an axis
func (l *AxisLocker) Lock(axis string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked[axis] = true
}

// Unlock an axis
func (l *AxisLocker) Unlock(axis string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locked, axis)
}

// Locked returns true if the axis is locked
func (l *AxisLocker) Locked(axis string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked[axis]
}

// axisOf finds the segment after "axis" in a path such as /scanner/axis/X/pos
func axisOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "axis" {
			return parts[i+1]
		}
	}
	return ""
}

// Check is an HTTP middleware that returns http.StatusLocked for writes to
// a locked axis.  Reads always pass.
func (l *AxisLocker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && protected(r.URL.Path, l.DoNotProtect) {
			if axis := axisOf(r.URL.Path); axis != "" && l.Locked(axis) {
				w.WriteHeader(http.StatusLocked)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Inject places GET and POST /axis/{axis}/lock on the table of h
func (l *AxisLocker) Inject(h generichttp.HTTPer) {
	rt := h.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/lock"}] = func(w http.ResponseWriter, r *http.Request) {
		b := l.Locked(chi.URLParam(r, "axis"))
		generichttp.HumanPayload{T: types.Bool, Bool: b}.EncodeAndRespond(w, r)
	}
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/lock"}] = func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		generichttp.SetBool(func(b bool) error {
			if b {
				l.Lock(axis)
			} else {
				l.Unlock(axis)
			}
			return nil
		})(w, r)
	}
}
