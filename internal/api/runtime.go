package api

import (
	"fmt"

	"github.com/JaimeStill/ratesheet/internal/assistant"
	"github.com/JaimeStill/ratesheet/internal/config"
	"github.com/JaimeStill/ratesheet/internal/infrastructure"
	"github.com/JaimeStill/ratesheet/internal/schema"
	"github.com/JaimeStill/ratesheet/pkg/pagination"
)

// Runtime extends Infrastructure with the API-scoped logger, the assistant
// client, and the extraction schema.
type Runtime struct {
	*infrastructure.Infrastructure
	Assistant   *assistant.Client
	Schema      *schema.Registry
	Pagination  pagination.Config
	MaxListSize int32
}

// NewRuntime creates an API runtime. The extraction schema is loaded and
// validated here so a malformed schema file stops startup.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) (*Runtime, error) {
	logger := infra.Logger.With("module", "api")

	registry, err := loadSchema(cfg.Extraction.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("schema load failed: %w", err)
	}

	client := assistant.New(assistant.Config{
		BaseURL:           cfg.Assistant.BaseURL,
		APIKey:            cfg.Assistant.APIKey,
		Model:             cfg.Assistant.Model,
		APIVersion:        cfg.Assistant.APIVersion,
		RequestsPerSecond: cfg.Assistant.RequestsPerSecond,
		Burst:             cfg.Assistant.Burst,
		MaxResponseSize:   cfg.Assistant.MaxResponseSizeBytes(),
	}, logger)

	logger.Info(
		"extraction schema loaded",
		"version", registry.Version(),
		"sections", registry.Len(),
	)

	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    logger,
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		Assistant:   client,
		Schema:      registry,
		Pagination:  cfg.API.Pagination,
		MaxListSize: cfg.Storage.MaxListSize,
	}, nil
}

func loadSchema(path string) (*schema.Registry, error) {
	if path == "" {
		return schema.Default()
	}
	return schema.Load(path)
}
