// Package routes declares HTTP routes as nested groups and registers them
// on a ServeMux using method-qualified patterns.
package routes

import "net/http"

// Route binds a method and a pattern relative to its group to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Group shares Prefix across its routes and child groups. Middleware wraps
// every route in the group and its children, outermost first.
type Group struct {
	Prefix     string
	Middleware []func(http.Handler) http.Handler
	Routes     []Route
	Children   []Group
}

// Register adds every route in groups to mux and returns the registered
// patterns in declaration order.
func Register(mux *http.ServeMux, groups ...Group) []string {
	var patterns []string
	for _, g := range groups {
		patterns = register(mux, "", nil, g, patterns)
	}
	return patterns
}

func register(
	mux *http.ServeMux,
	prefix string,
	inherited []func(http.Handler) http.Handler,
	g Group,
	patterns []string,
) []string {
	prefix += g.Prefix
	stack := append(inherited[:len(inherited):len(inherited)], g.Middleware...)

	for _, r := range g.Routes {
		pattern := r.Method + " " + prefix + r.Pattern

		var h http.Handler = r.Handler
		for i := len(stack) - 1; i >= 0; i-- {
			h = stack[i](h)
		}

		mux.Handle(pattern, h)
		patterns = append(patterns, pattern)
	}

	for _, child := range g.Children {
		patterns = register(mux, prefix, stack, child, patterns)
	}
	return patterns
}
