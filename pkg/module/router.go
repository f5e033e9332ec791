package module

import (
	"net/http"
	"strings"
)

// Router sends each request to the module mounted at its first path
// segment. Requests matching no module fall through to native handlers.
type Router struct {
	modules map[string]http.Handler
	native  *http.ServeMux
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		modules: make(map[string]http.Handler),
		native:  http.NewServeMux(),
	}
}

// HandleNative registers a handler for paths outside every module, such as
// health probes.
func (r *Router) HandleNative(pattern string, handler http.HandlerFunc) {
	r.native.HandleFunc(pattern, handler)
}

// Mount routes the module's prefix to it. Mounting a second module at the
// same prefix replaces the first.
func (r *Router) Mount(m *Module) {
	r.modules[m.Prefix()] = m.Handler()
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if p := req.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
		req.URL.Path = strings.TrimSuffix(p, "/")
	}

	if h, ok := r.modules[firstSegment(req.URL.Path)]; ok {
		h.ServeHTTP(w, req)
		return
	}
	r.native.ServeHTTP(w, req)
}

func firstSegment(path string) string {
	rest := strings.TrimPrefix(path, "/")
	seg, _, _ := strings.Cut(rest, "/")
	return "/" + seg
}
