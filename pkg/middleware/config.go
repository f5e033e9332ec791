package middleware

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig is the cross-origin policy applied by CORS. Origins lists the
// exact origins allowed; a disabled policy adds no headers.
type CORSConfig struct {
	Enabled          bool     `toml:"enabled"`
	Origins          []string `toml:"origins"`
	AllowedMethods   []string `toml:"allowed_methods"`
	AllowedHeaders   []string `toml:"allowed_headers"`
	AllowCredentials bool     `toml:"allow_credentials"`
	MaxAge           int      `toml:"max_age"`
}

// CORSEnv names the environment variables that override CORSConfig. List
// values are comma separated.
type CORSEnv struct {
	Enabled          string
	Origins          string
	AllowedMethods   string
	AllowedHeaders   string
	AllowCredentials string
	MaxAge           string
}

func (c *CORSConfig) Finalize(env *CORSEnv) error {
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"Content-Type", "Authorization", "X-Tenant-ID", "X-User-ID", RequestIDHeader}
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 3600
	}

	if env != nil {
		envBool(env.Enabled, &c.Enabled)
		envList(env.Origins, &c.Origins)
		envList(env.AllowedMethods, &c.AllowedMethods)
		envList(env.AllowedHeaders, &c.AllowedHeaders)
		envBool(env.AllowCredentials, &c.AllowCredentials)
		envInt(env.MaxAge, &c.MaxAge)
	}

	if c.AllowCredentials && slices.Contains(c.Origins, "*") {
		return fmt.Errorf("allow_credentials cannot be combined with a wildcard origin")
	}
	return nil
}

// Merge applies overlay. Booleans always apply; lists and max_age only
// when set.
func (c *CORSConfig) Merge(overlay *CORSConfig) {
	c.Enabled = overlay.Enabled
	c.AllowCredentials = overlay.AllowCredentials

	if overlay.Origins != nil {
		c.Origins = overlay.Origins
	}
	if overlay.AllowedMethods != nil {
		c.AllowedMethods = overlay.AllowedMethods
	}
	if overlay.AllowedHeaders != nil {
		c.AllowedHeaders = overlay.AllowedHeaders
	}
	if overlay.MaxAge > 0 {
		c.MaxAge = overlay.MaxAge
	}
}

// IdentityConfig controls how the caller's tenant and user are resolved.
// When Issuer is set, bearer ID tokens are verified against it; otherwise the
// tenant and user are read from headers set by the upstream gateway.
type IdentityConfig struct {
	Issuer       string `toml:"issuer"`
	JWKSURL      string `toml:"jwks_url"`
	ClientID     string `toml:"client_id"`
	TenantClaim  string `toml:"tenant_claim"`
	TenantHeader string `toml:"tenant_header"`
	UserHeader   string `toml:"user_header"`
}

// IdentityEnv maps identity config fields to environment variable names.
type IdentityEnv struct {
	Issuer       string
	JWKSURL      string
	ClientID     string
	TenantClaim  string
	TenantHeader string
	UserHeader   string
}

// Finalize applies defaults and environment variable overrides.
func (c *IdentityConfig) Finalize(env *IdentityEnv) error {
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.TenantHeader == "" {
		c.TenantHeader = "X-Tenant-ID"
	}
	if c.UserHeader == "" {
		c.UserHeader = "X-User-ID"
	}
	if env == nil {
		return nil
	}

	for name, dst := range map[string]*string{
		env.Issuer:       &c.Issuer,
		env.JWKSURL:      &c.JWKSURL,
		env.ClientID:     &c.ClientID,
		env.TenantClaim:  &c.TenantClaim,
		env.TenantHeader: &c.TenantHeader,
		env.UserHeader:   &c.UserHeader,
	} {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	return nil
}

// Merge overwrites non-empty fields from overlay.
func (c *IdentityConfig) Merge(overlay *IdentityConfig) {
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.JWKSURL != "" {
		c.JWKSURL = overlay.JWKSURL
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.TenantClaim != "" {
		c.TenantClaim = overlay.TenantClaim
	}
	if overlay.TenantHeader != "" {
		c.TenantHeader = overlay.TenantHeader
	}
	if overlay.UserHeader != "" {
		c.UserHeader = overlay.UserHeader
	}
}

// RateLimitConfig holds per-client token bucket settings.
type RateLimitConfig struct {
	Enabled bool    `toml:"enabled"`
	RPS     float64 `toml:"rps"`
	Burst   int     `toml:"burst"`
}

// RateLimitEnv maps rate limit config fields to environment variable names.
type RateLimitEnv struct {
	Enabled string
	RPS     string
	Burst   string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *RateLimitConfig) Finalize(env *RateLimitEnv) error {
	if c.RPS <= 0 {
		c.RPS = 20
	}
	if c.Burst <= 0 {
		c.Burst = 40
	}
	if env != nil {
		envBool(env.Enabled, &c.Enabled)
		envFloat(env.RPS, &c.RPS)
		envInt(env.Burst, &c.Burst)
	}
	if c.RPS <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rps and burst must be positive")
	}
	return nil
}

// Merge overwrites fields from overlay. Enabled always applies.
func (c *RateLimitConfig) Merge(overlay *RateLimitConfig) {
	c.Enabled = overlay.Enabled
	if overlay.RPS > 0 {
		c.RPS = overlay.RPS
	}
	if overlay.Burst > 0 {
		c.Burst = overlay.Burst
	}
}

func envBool(key string, dst *bool) {
	if b, err := strconv.ParseBool(lookup(key)); err == nil {
		*dst = b
	}
}

func envInt(key string, dst *int) {
	if n, err := strconv.Atoi(lookup(key)); err == nil {
		*dst = n
	}
}

func envFloat(key string, dst *float64) {
	if f, err := strconv.ParseFloat(lookup(key), 64); err == nil {
		*dst = f
	}
}

func envList(key string, dst *[]string) {
	v := lookup(key)
	if v == "" {
		return
	}
	var items []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func lookup(key string) string {
	if key == "" {
		return ""
	}
	return os.Getenv(key)
}
