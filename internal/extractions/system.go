package extractions

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/ratesheet/internal/schema"
	"github.com/JaimeStill/ratesheet/pkg/lifecycle"
	"github.com/JaimeStill/ratesheet/pkg/pagination"
	"github.com/JaimeStill/ratesheet/pkg/storage"
)

// System defines the public contract for extraction operations.
type System interface {
	Handler() *Handler

	// Start validates the contract, creates a pending job, and processes it
	// in the background. It returns before any section is processed.
	Start(ctx context.Context, cmd StartCommand) (*Job, error)
	// Cancel marks an active job cancelled and stops its processing at the
	// next opportunity.
	Cancel(ctx context.Context, tenantID, id uuid.UUID) (*Job, error)
	Find(ctx context.Context, tenantID, id uuid.UUID) (*Job, error)
	ListForContract(ctx context.Context, tenantID, contractID uuid.UUID) ([]Job, error)
	// List pages through the tenant's jobs.
	List(ctx context.Context, tenantID uuid.UUID, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Job], error)

	ListArtifacts(ctx context.Context, tenantID, id uuid.UUID, pattern string) (*ArtifactListing, error)
	// OpenArtifact streams a completed job's artifact. An empty name opens
	// the consolidated artifact. The caller must close Body.
	OpenArtifact(ctx context.Context, tenantID, id uuid.UUID, name string) (*storage.BlobResult, error)

	Schema() *schema.Registry

	// Register runs Shutdown in the lifecycle drain phase, before the
	// database and HTTP server close.
	Register(lc *lifecycle.Coordinator)
	// Shutdown cancels every running job, records them as cancelled, and
	// waits for their goroutines until ctx expires.
	Shutdown(ctx context.Context) error
}
