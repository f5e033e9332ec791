package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvExtractionArtifactPrefix = "RATESHEET_EXTRACTION_ARTIFACT_PREFIX"
	EnvExtractionSectionTimeout = "RATESHEET_EXTRACTION_SECTION_TIMEOUT"
	EnvExtractionDelay          = "RATESHEET_EXTRACTION_DELAY"
	EnvExtractionHeavyDelay     = "RATESHEET_EXTRACTION_HEAVY_DELAY"
	EnvExtractionTokenThreshold = "RATESHEET_EXTRACTION_TOKEN_THRESHOLD"
	EnvExtractionSchemaPath     = "RATESHEET_EXTRACTION_SCHEMA_PATH"
)

// ExtractionConfig controls the sequential section extraction loop.
//
// SectionTimeouts overrides SectionTimeout for individual sections by name.
// After a section consumes more than TokenThreshold tokens the loop pauses
// for HeavyDelay instead of Delay. SchemaPath, when set, replaces the
// embedded section schema.
type ExtractionConfig struct {
	ArtifactPrefix  string            `toml:"artifact_prefix"`
	SectionTimeout  string            `toml:"section_timeout"`
	SectionTimeouts map[string]string `toml:"section_timeouts"`
	Delay           string            `toml:"delay"`
	HeavyDelay      string            `toml:"heavy_delay"`
	TokenThreshold  int               `toml:"token_threshold"`
	SchemaPath      string            `toml:"schema_path"`
}

// SectionTimeoutDuration returns SectionTimeout as a time.Duration.
func (c *ExtractionConfig) SectionTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.SectionTimeout)
	return d
}

// SectionTimeoutsDuration returns the per-section overrides as durations.
func (c *ExtractionConfig) SectionTimeoutsDuration() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.SectionTimeouts))
	for name, v := range c.SectionTimeouts {
		if d, err := time.ParseDuration(v); err == nil {
			out[name] = d
		}
	}
	return out
}

// DelayDuration returns Delay as a time.Duration.
func (c *ExtractionConfig) DelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.Delay)
	return d
}

// HeavyDelayDuration returns HeavyDelay as a time.Duration.
func (c *ExtractionConfig) HeavyDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.HeavyDelay)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ExtractionConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Section timeout overrides
// are merged by key.
func (c *ExtractionConfig) Merge(overlay *ExtractionConfig) {
	if overlay.ArtifactPrefix != "" {
		c.ArtifactPrefix = overlay.ArtifactPrefix
	}
	if overlay.SectionTimeout != "" {
		c.SectionTimeout = overlay.SectionTimeout
	}
	if len(overlay.SectionTimeouts) > 0 {
		if c.SectionTimeouts == nil {
			c.SectionTimeouts = make(map[string]string, len(overlay.SectionTimeouts))
		}
		for k, v := range overlay.SectionTimeouts {
			c.SectionTimeouts[k] = v
		}
	}
	if overlay.Delay != "" {
		c.Delay = overlay.Delay
	}
	if overlay.HeavyDelay != "" {
		c.HeavyDelay = overlay.HeavyDelay
	}
	if overlay.TokenThreshold != 0 {
		c.TokenThreshold = overlay.TokenThreshold
	}
	if overlay.SchemaPath != "" {
		c.SchemaPath = overlay.SchemaPath
	}
}

func (c *ExtractionConfig) loadDefaults() {
	if c.ArtifactPrefix == "" {
		c.ArtifactPrefix = "extractions"
	}
	if c.SectionTimeout == "" {
		c.SectionTimeout = "5m"
	}
	if c.Delay == "" {
		c.Delay = "3s"
	}
	if c.HeavyDelay == "" {
		c.HeavyDelay = "5s"
	}
	if c.TokenThreshold == 0 {
		c.TokenThreshold = 10000
	}
}

func (c *ExtractionConfig) loadEnv() {
	if v := os.Getenv(EnvExtractionArtifactPrefix); v != "" {
		c.ArtifactPrefix = v
	}
	if v := os.Getenv(EnvExtractionSectionTimeout); v != "" {
		c.SectionTimeout = v
	}
	if v := os.Getenv(EnvExtractionDelay); v != "" {
		c.Delay = v
	}
	if v := os.Getenv(EnvExtractionHeavyDelay); v != "" {
		c.HeavyDelay = v
	}
	if v := os.Getenv(EnvExtractionTokenThreshold); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TokenThreshold = n
		}
	}
	if v := os.Getenv(EnvExtractionSchemaPath); v != "" {
		c.SchemaPath = v
	}
}

func (c *ExtractionConfig) validate() error {
	if d, err := time.ParseDuration(c.SectionTimeout); err != nil {
		return fmt.Errorf("invalid section_timeout: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("section_timeout must be positive")
	}
	for name, v := range c.SectionTimeouts {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid section_timeouts.%s: %w", name, err)
		}
	}
	if _, err := time.ParseDuration(c.Delay); err != nil {
		return fmt.Errorf("invalid delay: %w", err)
	}
	if _, err := time.ParseDuration(c.HeavyDelay); err != nil {
		return fmt.Errorf("invalid heavy_delay: %w", err)
	}
	if c.TokenThreshold < 0 {
		return fmt.Errorf("token_threshold must not be negative")
	}
	return nil
}
