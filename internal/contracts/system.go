package contracts

import (
	"context"

	"github.com/google/uuid"
)

// System defines the contract operations used by the extraction pipeline.
type System interface {
	// Find returns the contract only when it belongs to tenantID.
	Find(ctx context.Context, tenantID, id uuid.UUID) (*Contract, error)
	SetExtractionStarted(ctx context.Context, id, jobID uuid.UUID) error
	// SetExtractionStatus records a terminal extraction state. A nil
	// outputPath leaves the stored path unchanged.
	SetExtractionStatus(ctx context.Context, id uuid.UUID, status string, outputPath *string) error
}
