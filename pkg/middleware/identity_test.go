package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/ratesheet/pkg/middleware"
)

func TestIdentifyHeaders(t *testing.T) {
	cfg := &middleware.IdentityConfig{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	auth, err := middleware.NewAuthenticator(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}

	var got middleware.Identity
	handler := middleware.Identify(auth, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = middleware.IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		tenant     string
		user       string
		wantStatus int
		want       middleware.Identity
	}{
		{"tenant and user", "tenant-a", "user-1", http.StatusOK, middleware.Identity{TenantID: "tenant-a", UserID: "user-1"}},
		{"tenant only", "tenant-b", "", http.StatusOK, middleware.Identity{TenantID: "tenant-b"}},
		{"missing tenant", "", "user-1", http.StatusUnauthorized, middleware.Identity{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = middleware.Identity{}
			req := httptest.NewRequest("GET", "/extraction-jobs/1", nil)
			if tt.tenant != "" {
				req.Header.Set("X-Tenant-ID", tt.tenant)
			}
			if tt.user != "" {
				req.Header.Set("X-User-ID", tt.user)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if got != tt.want {
				t.Errorf("identity: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIdentifyOIDCRejectsInvalidTokens(t *testing.T) {
	verifier := oidc.NewVerifier(
		"https://issuer.example.com",
		&oidc.StaticKeySet{},
		&oidc.Config{SkipClientIDCheck: true},
	)
	auth := middleware.NewOIDCAuthenticator(verifier, "tenant_id")

	called := false
	handler := middleware.Identify(auth, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	for _, header := range []string{"", "Basic abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Authorization %q: status %d, want 401", header, rec.Code)
		}
	}
	if called {
		t.Error("handler should not be called without a valid token")
	}
}

func TestIdentifyPassesPreflight(t *testing.T) {
	auth, _ := middleware.NewAuthenticator(context.Background(), &middleware.IdentityConfig{TenantHeader: "X-Tenant-ID"})
	rec := httptest.NewRecorder()
	middleware.Identify(auth, discardLogger())(okHandler()).
		ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status: got %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := &middleware.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 2}
	handler := middleware.RateLimit(cfg, discardLogger())(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("burst requests: got %v, want first two 200", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request: got %d, want 429", codes[2])
	}

	other := httptest.NewRequest("GET", "/", nil)
	other = other.WithContext(middleware.WithIdentity(other.Context(), middleware.Identity{TenantID: "tenant-b"}))
	other.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("separate tenant bucket: got %d, want 200", rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	handler := middleware.RateLimit(&middleware.RateLimitConfig{Enabled: false, RPS: 1, Burst: 1}, discardLogger())(okHandler())
	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", rec.Code)
		}
	}
}
