// Package module mounts self-contained HTTP modules under single-segment
// path prefixes. Each module strips its prefix and runs its own middleware.
package module

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JaimeStill/ratesheet/pkg/middleware"
)

// Module serves every request under its prefix through its middleware
// chain and inner router.
type Module struct {
	prefix string
	router http.Handler
	chain  middleware.Chain
}

// New creates a Module mounted at prefix, which must be a single segment
// such as "/api". It panics on an invalid prefix.
func New(prefix string, router http.Handler) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{prefix: prefix, router: router}
}

// Prefix returns the mount prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use appends middleware to the module chain.
func (m *Module) Use(mw func(http.Handler) http.Handler) {
	m.chain.Use(mw)
}

// Handler returns the inner router wrapped in the module chain. Paths seen
// by the handler are relative to the prefix.
func (m *Module) Handler() http.Handler {
	return http.StripPrefix(m.prefix, rootPath(m.chain.Then(m.router)))
}

// rootPath maps the empty path left after stripping the prefix to "/".
func rootPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}
		next.ServeHTTP(w, r)
	})
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case !strings.HasPrefix(prefix, "/"):
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case strings.Count(prefix, "/") != 1 || len(prefix) == 1:
		return fmt.Errorf("module prefix must be a single path segment: %s", prefix)
	}
	return nil
}
