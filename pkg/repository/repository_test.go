package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/ratesheet/pkg/repository"
)

var (
	errNotFound  = errors.New("job not found")
	errActive    = errors.New("job already active")
	errReference = errors.New("contract not found")
)

func TestErrorsMap(t *testing.T) {
	unique := &pgconn.PgError{Code: repository.CodeUniqueViolation, ConstraintName: "idx_extraction_jobs_one_active"}
	foreign := &pgconn.PgError{Code: repository.CodeForeignKeyViolation}
	check := &pgconn.PgError{Code: "23514"}
	other := errors.New("connection reset")

	full := repository.Errors{NotFound: errNotFound, Duplicate: errActive, Reference: errReference}

	tests := []struct {
		name   string
		errors repository.Errors
		err    error
		want   error
	}{
		{"nil", full, nil, nil},
		{"no rows", full, sql.ErrNoRows, errNotFound},
		{"wrapped no rows", full, fmt.Errorf("scan: %w", sql.ErrNoRows), errNotFound},
		{"unique violation", full, unique, errActive},
		{"wrapped unique violation", full, fmt.Errorf("insert: %w", unique), errActive},
		{"foreign key violation", full, foreign, errReference},
		{"unmapped violation", full, check, check},
		{"other", full, other, other},
		{"no rows without mapping", repository.Errors{}, sql.ErrNoRows, sql.ErrNoRows},
		{"foreign key without mapping", repository.Errors{NotFound: errNotFound}, foreign, foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.errors.Map(tt.err); got != tt.want {
				t.Errorf("Map() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapError(t *testing.T) {
	if got := repository.MapError(sql.ErrNoRows, errNotFound, errActive); got != errNotFound {
		t.Errorf("MapError(ErrNoRows) = %v", got)
	}
	unique := &pgconn.PgError{Code: repository.CodeUniqueViolation}
	if got := repository.MapError(unique, errNotFound, errActive); got != errActive {
		t.Errorf("MapError(unique) = %v", got)
	}
}

func TestViolation(t *testing.T) {
	err := fmt.Errorf("insert job: %w", &pgconn.PgError{
		Code:           repository.CodeUniqueViolation,
		ConstraintName: "idx_extraction_jobs_one_active",
	})

	code, constraint, ok := repository.Violation(err)
	if !ok || code != repository.CodeUniqueViolation || constraint != "idx_extraction_jobs_one_active" {
		t.Errorf("Violation() = %q, %q, %v", code, constraint, ok)
	}

	if _, _, ok := repository.Violation(errors.New("plain")); ok {
		t.Error("Violation() reported a plain error")
	}
}
