// Package api assembles the API module with its domain systems, middleware,
// and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/ratesheet/internal/config"
	"github.com/JaimeStill/ratesheet/internal/infrastructure"
	"github.com/JaimeStill/ratesheet/pkg/middleware"
	"github.com/JaimeStill/ratesheet/pkg/module"
)

// NewModule creates the API module. The extraction orchestrator is registered
// with the lifecycle coordinator so active jobs are cancelled on shutdown.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime, err := NewRuntime(cfg, infra)
	if err != nil {
		return nil, err
	}

	domain := NewDomain(runtime, &cfg.Extraction)
	domain.Extractions.Register(infra.Lifecycle)

	auth, err := middleware.NewAuthenticator(infra.Lifecycle.Context(), &cfg.API.Identity)
	if err != nil {
		return nil, fmt.Errorf("identity init failed: %w", err)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.RateLimit(&cfg.API.RateLimit, runtime.Logger))
	m.Use(middleware.Identify(auth, runtime.Logger))

	return m, nil
}
