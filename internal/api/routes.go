package api

import (
	"net/http"

	"github.com/JaimeStill/ratesheet/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, runtime *Runtime) {
	patterns := routes.Register(
		mux,
		domain.Extractions.Handler().Routes(),
		domain.Artifacts.routes(),
	)

	runtime.Logger.Debug("api routes registered", "routes", patterns)
}
