package main

import (
	"net/http"
	"time"

	"github.com/JaimeStill/ratesheet/internal/api"
	"github.com/JaimeStill/ratesheet/internal/config"
	"github.com/JaimeStill/ratesheet/internal/infrastructure"
	"github.com/JaimeStill/ratesheet/pkg/handlers"
	"github.com/JaimeStill/ratesheet/pkg/module"
)

// Server wires the API module and the health probes onto one listener.
type Server struct {
	infra *infrastructure.Infrastructure
	http  *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	router := module.NewRouter()
	router.HandleNative("GET /healthz", healthz(cfg.Version))
	router.HandleNative("GET /readyz", readyz(infra))
	router.Mount(apiModule)

	infra.Logger.Info("ratesheet initialized", "addr", cfg.Server.Addr(), "api", cfg.API.BasePath)

	return &Server{
		infra: infra,
		http:  newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// Start brings up the infrastructure and the listener. Readiness flips once
// every startup hook has returned.
func (s *Server) Start() error {
	if err := s.infra.Start(); err != nil {
		return err
	}
	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("shutting down", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}

func healthz(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
	}
}

func readyz(infra *infrastructure.Infrastructure) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() || !infra.Database.Ready() {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
