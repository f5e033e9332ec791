package api

import (
	"github.com/JaimeStill/ratesheet/internal/assistants"
	"github.com/JaimeStill/ratesheet/internal/config"
	"github.com/JaimeStill/ratesheet/internal/contracts"
	"github.com/JaimeStill/ratesheet/internal/extractions"
)

// Domain holds the domain systems that comprise the API.
type Domain struct {
	Extractions extractions.System
	Artifacts   *artifactHandler
}

// NewDomain creates the domain systems from the API runtime.
func NewDomain(runtime *Runtime, cfg *config.ExtractionConfig) *Domain {
	db := runtime.Database.Connection()

	orchestrator := extractions.New(
		extractions.Dependencies{
			Store:      extractions.NewStore(db, runtime.Logger),
			Contracts:  contracts.New(db, runtime.Logger),
			Assistants: assistants.New(db, runtime.Logger),
			Assistant:  runtime.Assistant,
			Storage:    runtime.Storage,
			Schema:     runtime.Schema,
		},
		extractions.Options{
			ArtifactPrefix:  cfg.ArtifactPrefix,
			SectionTimeout:  cfg.SectionTimeoutDuration(),
			SectionTimeouts: cfg.SectionTimeoutsDuration(),
			Delay:           cfg.DelayDuration(),
			HeavyDelay:      cfg.HeavyDelayDuration(),
			TokenThreshold:  cfg.TokenThreshold,
			Pagination:      runtime.Pagination,
		},
		runtime.Logger,
	)

	return &Domain{
		Extractions: orchestrator,
		Artifacts: newArtifactHandler(
			runtime.Storage,
			runtime.Logger,
			cfg.ArtifactPrefix,
			runtime.MaxListSize,
		),
	}
}
