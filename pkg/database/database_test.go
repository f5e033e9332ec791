package database_test

import (
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/JaimeStill/ratesheet/pkg/database"
)

func TestDsn(t *testing.T) {
	tests := []struct {
		name string
		cfg  database.Config
		want string
	}{
		{
			"fields",
			database.Config{Host: "db", Port: 5433, Name: "ratesheet", User: "app", Password: "p@ss word", SSLMode: "require"},
			"postgres://app:p%40ss%20word@db:5433/ratesheet?sslmode=require",
		},
		{
			"no password",
			database.Config{Host: "localhost", Port: 5432, Name: "ratesheet", User: "app", SSLMode: "disable"},
			"postgres://app@localhost:5432/ratesheet?sslmode=disable",
		},
		{
			"url wins",
			database.Config{URL: "postgres://u:p@h/db", Host: "ignored", Name: "ignored", User: "ignored"},
			"postgres://u:p@h/db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.Dsn()
			if got != tt.want {
				t.Errorf("Dsn() = %q, want %q", got, tt.want)
			}
			if _, err := url.Parse(got); err != nil {
				t.Errorf("Dsn() is not a URL: %v", err)
			}
		})
	}
}

func TestFinalize(t *testing.T) {
	t.Setenv("TEST_DB_NAME", "jobs")
	t.Setenv("TEST_DB_USER", "worker")
	t.Setenv("TEST_DB_PORT", "6543")

	env := &database.Env{Name: "TEST_DB_NAME", User: "TEST_DB_USER", Port: "TEST_DB_PORT"}

	var cfg database.Config
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if cfg.Host != "localhost" || cfg.Port != 6543 || cfg.Name != "jobs" || cfg.User != "worker" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxOpenConns != 25 || cfg.MaxIdleConns != 5 || cfg.ConnTimeout != "5s" {
		t.Errorf("pool defaults = %d/%d/%s", cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnTimeout)
	}
}

func TestFinalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  database.Config
	}{
		{"missing name", database.Config{User: "u"}},
		{"missing user", database.Config{Name: "n"}},
		{"idle exceeds open", database.Config{Name: "n", User: "u", MaxOpenConns: 2, MaxIdleConns: 4}},
		{"bad lifetime", database.Config{Name: "n", User: "u", ConnMaxLifetime: "forever"}},
		{"bad timeout", database.Config{Name: "n", User: "u", ConnTimeout: "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(nil); err == nil {
				t.Error("Finalize() succeeded")
			}
		})
	}

	withURL := database.Config{URL: "postgres://u@h/db"}
	if err := withURL.Finalize(nil); err != nil {
		t.Errorf("Finalize() with URL error = %v", err)
	}
}

func TestMerge(t *testing.T) {
	base := database.Config{Host: "localhost", Port: 5432, Name: "base", MaxOpenConns: 25}
	base.Merge(&database.Config{Host: "prod", MaxOpenConns: 50})

	if base.Host != "prod" || base.Port != 5432 || base.Name != "base" || base.MaxOpenConns != 50 {
		t.Errorf("merged = %+v", base)
	}
}

func TestNewIsLazy(t *testing.T) {
	cfg := database.Config{Name: "n", User: "u"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	sys, err := database.New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sys.Ready() {
		t.Error("Ready() before Start")
	}
	if err := sys.Connection().Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
