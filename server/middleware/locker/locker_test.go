package locker_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/golab-daqmx/generichttp"
	"github.com/nasa-jpl/golab-daqmx/server/middleware/locker"
)

type node struct{ rt generichttp.RouteTable }

func (n node) RT() generichttp.RouteTable { return n.rt }

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func mount(l locker.ManipulableLock) http.Handler {
	n := node{generichttp.RouteTable{
		{Method: http.MethodPost, Path: "/output"}:          ok,
		{Method: http.MethodPost, Path: "/axis/{axis}/pos"}: ok,
		{Method: http.MethodGet, Path: "/axis/{axis}/pos"}:  ok,
	}}
	locker.Inject(n, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	n.RT().Bind(r)
	return r
}

func do(h http.Handler, method, path, body string) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w.Code
}

func TestLocker(t *testing.T) {
	l := locker.New()
	h := mount(l)
	if code := do(h, http.MethodPost, "/output", "{}"); code != http.StatusOK {
		t.Errorf("expected 200 got %d", code)
	}
	if code := do(h, http.MethodPost, "/lock", `{"bool": true}`); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if !l.Locked() {
		t.Error("expected the locker locked")
	}
	if code := do(h, http.MethodPost, "/output", "{}"); code != http.StatusLocked {
		t.Errorf("expected 423 got %d", code)
	}
	if code := do(h, http.MethodPost, "/lock", `{"bool": false}`); code != http.StatusOK {
		t.Errorf("expected the lock route to stay reachable, got %d", code)
	}
	if code := do(h, http.MethodPost, "/output", "{}"); code != http.StatusOK {
		t.Errorf("expected 200 after unlocking got %d", code)
	}
}

func TestAxisLocker(t *testing.T) {
	l := locker.NewAL()
	h := mount(l)
	do(h, http.MethodPost, "/axis/X/lock", `{"bool": true}`)
	if code := do(h, http.MethodPost, "/axis/X/pos", `{"f64": 1}`); code != http.StatusLocked {
		t.Errorf("expected 423 got %d", code)
	}
	if code := do(h, http.MethodGet, "/axis/X/pos", ""); code != http.StatusOK {
		t.Errorf("expected reads to pass got %d", code)
	}
	if code := do(h, http.MethodPost, "/axis/Y/pos", `{"f64": 1}`); code != http.StatusOK {
		t.Errorf("expected Y unaffected got %d", code)
	}
}
