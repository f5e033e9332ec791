package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/ratesheet/pkg/middleware"
	"github.com/JaimeStill/ratesheet/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "RATESHEET_CORS_ENABLED",
	Origins:          "RATESHEET_CORS_ORIGINS",
	AllowedMethods:   "RATESHEET_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "RATESHEET_CORS_ALLOWED_HEADERS",
	AllowCredentials: "RATESHEET_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "RATESHEET_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "RATESHEET_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "RATESHEET_PAGINATION_MAX_PAGE_SIZE",
}

var identityEnv = &middleware.IdentityEnv{
	Issuer:       "RATESHEET_IDENTITY_ISSUER",
	JWKSURL:      "RATESHEET_IDENTITY_JWKS_URL",
	ClientID:     "RATESHEET_IDENTITY_CLIENT_ID",
	TenantClaim:  "RATESHEET_IDENTITY_TENANT_CLAIM",
	TenantHeader: "RATESHEET_IDENTITY_TENANT_HEADER",
	UserHeader:   "RATESHEET_IDENTITY_USER_HEADER",
}

var rateLimitEnv = &middleware.RateLimitEnv{
	Enabled: "RATESHEET_RATE_LIMIT_ENABLED",
	RPS:     "RATESHEET_RATE_LIMIT_RPS",
	Burst:   "RATESHEET_RATE_LIMIT_BURST",
}

// APIConfig holds API routing, CORS, pagination, identity, and rate limit settings.
type APIConfig struct {
	BasePath   string                     `toml:"base_path"`
	CORS       middleware.CORSConfig      `toml:"cors"`
	Pagination pagination.Config          `toml:"pagination"`
	Identity   middleware.IdentityConfig  `toml:"identity"`
	RateLimit  middleware.RateLimitConfig `toml:"rate_limit"`
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.Identity.Finalize(identityEnv); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if err := c.RateLimit.Finalize(rateLimitEnv); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.Identity.Merge(&overlay.Identity)
	c.RateLimit.Merge(&overlay.RateLimit)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("RATESHEET_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
}
