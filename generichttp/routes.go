package generichttp

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi"
)

// MethodPath is an HTTP method and a chi route pattern
type MethodPath struct {
	Method string
	Path   string
}

// RouteTable maps method and path pairs to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Bind registers every route of the table on r
func (rt RouteTable) Bind(r chi.Router) {
	for mp, h := range rt {
		r.MethodFunc(mp.Method, mp.Path, h)
	}
}

// Endpoints lists the routes as "METHOD path", sorted by path
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for mp := range rt {
		routes = append(routes, mp.Method+" "+mp.Path)
	}
	sort.Slice(routes, func(i, j int) bool {
		pi := routes[i][strings.IndexByte(routes[i], ' ')+1:]
		pj := routes[j][strings.IndexByte(routes[j], ' ')+1:]
		if pi == pj {
			return routes[i] < routes[j]
		}
		return pi < pj
	})
	return routes
}

// HTTPer is something with a route table
type HTTPer interface {
	RT() RouteTable
}

// SubMuxSanitize turns a configured endpoint into a mount point for a chi
// sub router, e.g. "scanner/" => "/scanner"
func SubMuxSanitize(endpoint string) string {
	endpoint = strings.Trim(endpoint, "/")
	return "/" + endpoint
}
