// Package assistants resolves the hosted assistant provisioned for a tenant.
package assistants

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/ratesheet/pkg/query"
	"github.com/JaimeStill/ratesheet/pkg/repository"
)

// ErrNotFound is returned when a tenant has no active assistant.
var ErrNotFound = errors.New("no active assistant for tenant")

// Assistant links a tenant to an assistant hosted by the provider.
type Assistant struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	AssistantRef string    `json:"assistant_ref"`
	Name         string    `json:"name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// System defines assistant lookups.
type System interface {
	FindActive(ctx context.Context, tenantID uuid.UUID) (*Assistant, error)
}

var projection = query.
	NewProjectionMap("public", "assistants", "a").
	Project("id", "ID").
	Project("tenant_id", "TenantID").
	Project("assistant_ref", "AssistantRef").
	Project("name", "Name").
	Project("is_active", "IsActive").
	Project("created_at", "CreatedAt")

var newestFirst = query.SortField{Field: "CreatedAt", Descending: true}

func scanAssistant(s repository.Scanner) (Assistant, error) {
	var a Assistant
	err := s.Scan(
		&a.ID,
		&a.TenantID,
		&a.AssistantRef,
		&a.Name,
		&a.IsActive,
		&a.CreatedAt,
	)
	return a, err
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates an assistant repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "assistants"),
	}
}

func (r *repo) FindActive(ctx context.Context, tenantID uuid.UUID) (*Assistant, error) {
	active := true
	q, args := query.
		NewBuilder(projection, newestFirst).
		WhereEquals("TenantID", tenantID).
		WhereEquals("IsActive", &active).
		BuildSingleOrNull()

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAssistant)
	if err != nil {
		return nil, repository.Errors{NotFound: ErrNotFound}.Map(err)
	}
	return &a, nil
}
