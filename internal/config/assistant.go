package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/ratesheet/pkg/formatting"
)

const (
	EnvAssistantBaseURL         = "RATESHEET_ASSISTANT_BASE_URL"
	EnvAssistantAPIKey          = "RATESHEET_ASSISTANT_API_KEY"
	EnvAssistantModel           = "RATESHEET_ASSISTANT_MODEL"
	EnvAssistantAPIVersion      = "RATESHEET_ASSISTANT_API_VERSION"
	EnvAssistantRequestsPerSec  = "RATESHEET_ASSISTANT_REQUESTS_PER_SECOND"
	EnvAssistantBurst           = "RATESHEET_ASSISTANT_BURST"
	EnvAssistantMaxResponseSize = "RATESHEET_ASSISTANT_MAX_RESPONSE_SIZE"
)

// AssistantConfig holds the connection settings for the hosted
// retrieval-augmented assistant service.
type AssistantConfig struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	APIVersion        string  `toml:"api_version"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	MaxResponseSize   string  `toml:"max_response_size"`
}

// MaxResponseSizeBytes parses MaxResponseSize into a byte count.
func (c *AssistantConfig) MaxResponseSizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxResponseSize)
	return n
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AssistantConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AssistantConfig) Merge(overlay *AssistantConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.APIVersion != "" {
		c.APIVersion = overlay.APIVersion
	}
	if overlay.RequestsPerSecond != 0 {
		c.RequestsPerSecond = overlay.RequestsPerSecond
	}
	if overlay.Burst != 0 {
		c.Burst = overlay.Burst
	}
	if overlay.MaxResponseSize != "" {
		c.MaxResponseSize = overlay.MaxResponseSize
	}
}

func (c *AssistantConfig) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://prod-1-data.ke.pinecone.io/assistant"
	}
	if c.Model == "" {
		c.Model = "gemini-2.5-pro"
	}
	if c.APIVersion == "" {
		c.APIVersion = "2025-04"
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 1
	}
	if c.Burst == 0 {
		c.Burst = 2
	}
	if c.MaxResponseSize == "" {
		c.MaxResponseSize = "16MB"
	}
}

func (c *AssistantConfig) loadEnv() {
	if v := os.Getenv(EnvAssistantBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvAssistantAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvAssistantModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvAssistantAPIVersion); v != "" {
		c.APIVersion = v
	}
	if v := os.Getenv(EnvAssistantRequestsPerSec); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RequestsPerSecond = f
		}
	}
	if v := os.Getenv(EnvAssistantBurst); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Burst = n
		}
	}
	if v := os.Getenv(EnvAssistantMaxResponseSize); v != "" {
		c.MaxResponseSize = v
	}
}

func (c *AssistantConfig) validate() error {
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1")
	}
	n, err := formatting.ParseBytes(c.MaxResponseSize)
	if err != nil {
		return fmt.Errorf("invalid max_response_size: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("max_response_size must be positive")
	}
	return nil
}
