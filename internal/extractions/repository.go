package extractions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/ratesheet/pkg/pagination"
	"github.com/JaimeStill/ratesheet/pkg/query"
	"github.com/JaimeStill/ratesheet/pkg/repository"
)

// Store persists extraction jobs. Status changes only leave pending or
// processing; writes against a terminal job return ErrInvalidTransition.
type Store interface {
	// CreateJob inserts a pending job. A second active job for the same
	// contract fails with ErrAlreadyActive.
	CreateJob(ctx context.Context, cmd CreateJobCommand) (*Job, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, update ProgressUpdate) error
	// SetStatus moves an active job to status and stamps completed_at.
	SetStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error
	// MarkProcessing moves a pending job to processing and stamps started_at.
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	// Complete moves a processing job to completed with its final progress.
	Complete(ctx context.Context, id uuid.UUID, update ProgressUpdate) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	// ListJobs returns a filtered page of jobs, newest first unless the
	// request sorts otherwise.
	ListJobs(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Job], error)
	// ListJobsForContract returns jobs newest first.
	ListJobsForContract(ctx context.Context, contractID uuid.UUID) ([]Job, error)
	// FindActiveJobForContract returns ErrNotFound when no job is active.
	FindActiveJobForContract(ctx context.Context, contractID uuid.UUID) (*Job, error)
}

type store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a PostgreSQL-backed Store.
func NewStore(db *sql.DB, logger *slog.Logger) Store {
	return &store{
		db:     db,
		logger: logger.With("system", "extraction_jobs"),
	}
}

func (s *store) CreateJob(ctx context.Context, cmd CreateJobCommand) (*Job, error) {
	id := cmd.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	insert := `
		INSERT INTO extraction_jobs(id, tenant_id, contract_id, user_id, status, output_directory, total_sections, completed_sections, sections_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)`

	_, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (struct{}, error) {
		_, err := tx.ExecContext(
			ctx, insert,
			id, cmd.TenantID, cmd.ContractID, cmd.UserID, StatusPending,
			cmd.OutputDirectory, cmd.TotalSections, cmd.SectionsStatus,
		)
		return struct{}{}, err
	})
	if err != nil {
		return nil, repository.Errors{
			Duplicate: ErrAlreadyActive,
			Reference: ErrContractNotFound,
		}.Map(err)
	}

	s.logger.Info("extraction job created", "id", id, "contract_id", cmd.ContractID)
	return s.GetJob(ctx, id)
}

func (s *store) UpdateProgress(ctx context.Context, id uuid.UUID, update ProgressUpdate) error {
	var sections any
	if update.SectionsStatus != nil {
		sections = update.SectionsStatus
	}

	err := repository.ExecExpectOne(
		ctx, s.db,
		`UPDATE extraction_jobs
		SET current_section = COALESCE($1::text, current_section),
			completed_sections = GREATEST(completed_sections, COALESCE($2::int, completed_sections)),
			tokens_used = COALESCE($3::int, tokens_used),
			sections_status = COALESCE($4::jsonb, sections_status)
		WHERE id = $5 AND status IN ($6, $7)`,
		update.CurrentSection, update.CompletedSections, update.TokensUsed, sections,
		id, StatusPending, StatusProcessing,
	)
	if err != nil {
		return s.transitionError(ctx, id, err)
	}
	return nil
}

func (s *store) SetStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	if !IsTerminal(status) {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, status)
	}

	err := repository.ExecExpectOne(
		ctx, s.db,
		`UPDATE extraction_jobs
		SET status = $1, error_message = $2, completed_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)`,
		status, errorMessage, id, StatusPending, StatusProcessing,
	)
	if err != nil {
		return s.transitionError(ctx, id, err)
	}

	s.logger.Info("extraction job status changed", "id", id, "status", status)
	return nil
}

func (s *store) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(
		ctx, s.db,
		`UPDATE extraction_jobs
		SET status = $1, started_at = NOW()
		WHERE id = $2 AND status = $3`,
		StatusProcessing, id, StatusPending,
	)
	if err != nil {
		return s.transitionError(ctx, id, err)
	}
	return nil
}

func (s *store) Complete(ctx context.Context, id uuid.UUID, update ProgressUpdate) error {
	var sections any
	if update.SectionsStatus != nil {
		sections = update.SectionsStatus
	}

	err := repository.ExecExpectOne(
		ctx, s.db,
		`UPDATE extraction_jobs
		SET status = $1,
			completed_at = NOW(),
			completed_sections = GREATEST(completed_sections, COALESCE($2::int, completed_sections)),
			tokens_used = COALESCE($3::int, tokens_used),
			sections_status = COALESCE($4::jsonb, sections_status)
		WHERE id = $5 AND status = $6`,
		StatusCompleted, update.CompletedSections, update.TokensUsed, sections,
		id, StatusProcessing,
	)
	if err != nil {
		return s.transitionError(ctx, id, err)
	}

	s.logger.Info("extraction job completed", "id", id)
	return nil
}

func (s *store) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	j, err := repository.QueryOne(ctx, s.db, q, args, scanJob)
	if err != nil {
		return nil, repository.Errors{NotFound: ErrNotFound}.Map(err)
	}
	return &j, nil
}

func (s *store) ListJobs(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Job], error) {
	qb := query.
		NewBuilder(projection, newestFirst).
		WhereSearch(page.Search, "CarrierName", "ContractNumber", "FileName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, s.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count extraction jobs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	jobs, err := repository.QueryMany(ctx, s.db, pageSQL, pageArgs, scanJob)
	if err != nil {
		return nil, fmt.Errorf("query extraction jobs: %w", err)
	}

	result := pagination.NewPageResult(jobs, total, page.Page, page.PageSize)
	return &result, nil
}

func (s *store) ListJobsForContract(ctx context.Context, contractID uuid.UUID) ([]Job, error) {
	q, args := query.
		NewBuilder(projection, newestFirst).
		WhereEquals("ContractID", contractID).
		Build()

	jobs, err := repository.QueryMany(ctx, s.db, q, args, scanJob)
	if err != nil {
		return nil, fmt.Errorf("query extraction jobs: %w", err)
	}
	return jobs, nil
}

func (s *store) FindActiveJobForContract(ctx context.Context, contractID uuid.UUID) (*Job, error) {
	q, args := query.
		NewBuilder(projection, newestFirst).
		WhereEquals("ContractID", contractID).
		WhereIn("Status", activeStatuses).
		BuildSingleOrNull()

	j, err := repository.QueryOne(ctx, s.db, q, args, scanJob)
	if err != nil {
		return nil, repository.Errors{NotFound: ErrNotFound}.Map(err)
	}
	return &j, nil
}

// transitionError distinguishes a missing job from a guarded update that
// matched no row because the job already left the required status.
func (s *store) transitionError(ctx context.Context, id uuid.UUID, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	exists, qerr := repository.Exists(ctx, s.db, "SELECT 1 FROM extraction_jobs WHERE id = $1", id)
	if qerr != nil {
		return qerr
	}

	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}
