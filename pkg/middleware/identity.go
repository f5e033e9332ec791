package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/ratesheet/pkg/handlers"
)

// ErrUnauthenticated indicates the request carries no usable caller identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated caller of a request.
type Identity struct {
	TenantID string
	UserID   string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored in ctx by the Identify middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticator resolves the caller identity of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// NewAuthenticator builds an OIDC authenticator when cfg.Issuer is set and
// a header authenticator otherwise.
func NewAuthenticator(ctx context.Context, cfg *IdentityConfig) (Authenticator, error) {
	if cfg.Issuer == "" {
		return &headerAuthenticator{
			tenantHeader: cfg.TenantHeader,
			userHeader:   cfg.UserHeader,
		}, nil
	}

	oidcCfg := &oidc.Config{
		ClientID:          cfg.ClientID,
		SkipClientIDCheck: cfg.ClientID == "",
	}

	if cfg.JWKSURL != "" {
		keys := oidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
		return NewOIDCAuthenticator(oidc.NewVerifier(cfg.Issuer, keys, oidcCfg), cfg.TenantClaim), nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", cfg.Issuer, err)
	}
	return NewOIDCAuthenticator(provider.Verifier(oidcCfg), cfg.TenantClaim), nil
}

// NewOIDCAuthenticator verifies bearer ID tokens with verifier and reads the tenant
// from tenantClaim and the user from the subject.
func NewOIDCAuthenticator(verifier *oidc.IDTokenVerifier, tenantClaim string) Authenticator {
	return &oidcAuthenticator{
		verifier:    verifier,
		tenantClaim: tenantClaim,
	}
}

// Identify returns middleware that authenticates each request and stores the
// resulting Identity in its context. Unauthenticated requests receive 401.
func Identify(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("middleware", "identity")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			id, err := auth.Authenticate(r)
			if err != nil {
				handlers.RespondError(w, logger, http.StatusUnauthorized, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

type headerAuthenticator struct {
	tenantHeader string
	userHeader   string
}

func (a *headerAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	id := Identity{
		TenantID: strings.TrimSpace(r.Header.Get(a.tenantHeader)),
		UserID:   strings.TrimSpace(r.Header.Get(a.userHeader)),
	}
	if id.TenantID == "" {
		return Identity{}, fmt.Errorf("%w: missing %s header", ErrUnauthenticated, a.tenantHeader)
	}
	return id, nil
}

type oidcAuthenticator struct {
	verifier    *oidc.IDTokenVerifier
	tenantClaim string
}

func (a *oidcAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return Identity{}, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}

	token, err := a.verifier.Verify(r.Context(), strings.TrimSpace(raw))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: decode claims: %v", ErrUnauthenticated, err)
	}

	tenant, _ := claims[a.tenantClaim].(string)
	if tenant == "" {
		return Identity{}, fmt.Errorf("%w: token has no %s claim", ErrUnauthenticated, a.tenantClaim)
	}

	return Identity{TenantID: tenant, UserID: token.Subject}, nil
}
