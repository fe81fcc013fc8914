// Package router provides the gateway's route table: a read-only
// mapping from method and path pattern to the role required to pass.
package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Route binds a method and path pattern to an access requirement.
// Patterns are literal path segments with ":name" placeholders, e.g.
// "/api/v1/tuition/:studentNo". An empty RequiredRole marks a public
// route.
type Route struct {
	Method       string
	Pattern      string
	RequiredRole string
}

// Public reports whether the route requires no role.
func (r Route) Public() bool {
	return r.RequiredRole == ""
}

// Match is the result of a route table lookup.
type Match struct {
	Route  *Route
	Params map[string]string
}

// compiledRoute is a pre-split route for efficient matching.
type compiledRoute struct {
	route    Route
	segments []string
	priority int
}

// Table is an immutable route table. Lookups are safe for concurrent
// use; the table is never mutated after construction.
type Table struct {
	routes []compiledRoute
}

// New compiles a route table. Routes with more literal segments win
// over placeholder routes matching the same path.
func New(routes []Route) (*Table, error) {
	t := &Table{
		routes: make([]compiledRoute, 0, len(routes)),
	}

	seen := make(map[string]bool, len(routes))
	for _, route := range routes {
		if route.Method == "" {
			return nil, fmt.Errorf("route %q: method is required", route.Pattern)
		}
		if !strings.HasPrefix(route.Pattern, "/") {
			return nil, fmt.Errorf("route %q: pattern must start with /", route.Pattern)
		}

		key := route.Method + " " + route.Pattern
		if seen[key] {
			return nil, fmt.Errorf("duplicate route: %s", key)
		}
		seen[key] = true

		segments := splitPath(route.Pattern)

		priority := 0
		for _, seg := range segments {
			if !strings.HasPrefix(seg, ":") {
				priority++
			}
		}

		t.routes = append(t.routes, compiledRoute{
			route:    route,
			segments: segments,
			priority: priority,
		})
	}

	sort.SliceStable(t.routes, func(i, j int) bool {
		return t.routes[i].priority > t.routes[j].priority
	})

	return t, nil
}

// Lookup finds the route matching the method and path. The second
// return value is false when no route matches.
func (t *Table) Lookup(method, path string) (*Match, bool) {
	segments := splitPath(path)

	for i := range t.routes {
		cr := &t.routes[i]
		if cr.route.Method != method {
			continue
		}
		params, ok := matchSegments(cr.segments, segments)
		if !ok {
			continue
		}
		return &Match{
			Route:  &cr.route,
			Params: params,
		}, true
	}

	return nil, false
}

// Routes returns a copy of the configured routes in priority order.
func (t *Table) Routes() []Route {
	routes := make([]Route, len(t.routes))
	for i := range t.routes {
		routes[i] = t.routes[i].route
	}
	return routes
}

// splitPath splits a path into segments, dropping empty ones so
// trailing slashes do not defeat matching.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// matchSegments matches path segments against pattern segments,
// collecting ":name" placeholder values.
func matchSegments(pattern, path []string) (map[string]string, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			if params == nil {
				params = make(map[string]string, 2)
			}
			params[seg[1:]] = path[i]
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}

	return params, true
}

// DefaultRoutes returns the gateway's route table for the tuition
// service. Paths not listed here are forwarded without a role
// requirement.
func DefaultRoutes() []Route {
	return []Route{
		{Method: http.MethodGet, Pattern: "/api/v1/health"},
		{Method: http.MethodPost, Pattern: "/api/v1/auth/login"},
		{Method: http.MethodGet, Pattern: "/api/v1/tuition/unpaid", RequiredRole: "admin"},
		{Method: http.MethodGet, Pattern: "/api/v1/tuition/:studentNo"},
		{Method: http.MethodGet, Pattern: "/api/v1/bank/tuition/:studentNo", RequiredRole: "bank"},
		{Method: http.MethodPost, Pattern: "/api/v1/tuition", RequiredRole: "admin"},
		{Method: http.MethodPost, Pattern: "/api/v1/tuition/batch", RequiredRole: "admin"},
		{Method: http.MethodPost, Pattern: "/api/v1/tuition/pay"},
	}
}
