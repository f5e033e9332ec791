package contracts

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/ratesheet/pkg/query"
	"github.com/JaimeStill/ratesheet/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a contract repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "contracts"),
	}
}

func (r *repo) Find(ctx context.Context, tenantID, id uuid.UUID) (*Contract, error) {
	q, args := query.
		NewBuilder(projection).
		WhereEquals("ID", id).
		WhereEquals("TenantID", tenantID).
		BuildSingleOrNull()

	c, err := repository.QueryOne(ctx, r.db, q, args, scanContract)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) SetExtractionStarted(ctx context.Context, id, jobID uuid.UUID) error {
	err := repository.ExecExpectOne(
		ctx, r.db,
		`UPDATE contracts
		SET extraction_status = $1, last_extraction_job_id = $2, updated_at = NOW()
		WHERE id = $3`,
		StatusProcessing, jobID, id,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

func (r *repo) SetExtractionStatus(ctx context.Context, id uuid.UUID, status string, outputPath *string) error {
	err := repository.ExecExpectOne(
		ctx, r.db,
		`UPDATE contracts
		SET extraction_status = $1,
			extraction_output_path = COALESCE($2::text, extraction_output_path),
			updated_at = NOW()
		WHERE id = $3`,
		status, outputPath, id,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("contract extraction status updated", "id", id, "status", status)
	return nil
}
