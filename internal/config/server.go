package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "RATESHEET_SERVER_HOST"
	EnvServerPort              = "RATESHEET_SERVER_PORT"
	EnvServerReadTimeout       = "RATESHEET_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "RATESHEET_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "RATESHEET_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "RATESHEET_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout   = "RATESHEET_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig controls the HTTP listener. Durations are Go duration strings.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// Addr joins host and port into a listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration       { return mustDuration(c.ReadTimeout) }
func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration { return mustDuration(c.ReadHeaderTimeout) }
func (c *ServerConfig) WriteTimeoutDuration() time.Duration      { return mustDuration(c.WriteTimeout) }
func (c *ServerConfig) IdleTimeoutDuration() time.Duration       { return mustDuration(c.IdleTimeout) }
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration   { return mustDuration(c.ShutdownTimeout) }

func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for dst, src := range c.durations(overlay) {
		if *src != "" {
			*dst = *src
		}
	}
}

// durations pairs each duration field of c with the same field of other.
func (c *ServerConfig) durations(other *ServerConfig) map[*string]*string {
	return map[*string]*string{
		&c.ReadTimeout:       &other.ReadTimeout,
		&c.ReadHeaderTimeout: &other.ReadHeaderTimeout,
		&c.WriteTimeout:      &other.WriteTimeout,
		&c.IdleTimeout:       &other.IdleTimeout,
		&c.ShutdownTimeout:   &other.ShutdownTimeout,
	}
}

func (c *ServerConfig) loadDefaults() {
	defaults := ServerConfig{
		Host:              "0.0.0.0",
		Port:              8080,
		ReadTimeout:       "1m",
		ReadHeaderTimeout: "10s",
		WriteTimeout:      "15m",
		IdleTimeout:       "2m",
		ShutdownTimeout:   "30s",
	}

	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	for dst, src := range c.durations(&defaults) {
		if *dst == "" {
			*dst = *src
		}
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}

	env := map[*string]string{
		&c.ReadTimeout:       EnvServerReadTimeout,
		&c.ReadHeaderTimeout: EnvServerReadHeaderTimeout,
		&c.WriteTimeout:      EnvServerWriteTimeout,
		&c.IdleTimeout:       EnvServerIdleTimeout,
		&c.ShutdownTimeout:   EnvServerShutdownTimeout,
	}
	for dst, key := range env {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	fields := []struct {
		name  string
		value string
	}{
		{"read_timeout", c.ReadTimeout},
		{"read_header_timeout", c.ReadHeaderTimeout},
		{"write_timeout", c.WriteTimeout},
		{"idle_timeout", c.IdleTimeout},
		{"shutdown_timeout", c.ShutdownTimeout},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", f.name)
		}
	}
	return nil
}

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
