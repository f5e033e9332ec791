package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes for the constraint violations repositories map.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
)

// Errors names the domain errors a repository reports in place of raw
// database failures. A nil field leaves the matching failure unchanged.
type Errors struct {
	NotFound  error
	Duplicate error
	// Reference replaces a foreign key violation, typically the not-found
	// error of the referenced entity.
	Reference error
}

// Map translates err. sql.ErrNoRows becomes NotFound, unique violations
// become Duplicate, and foreign key violations become Reference.
func (e Errors) Map(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) && e.NotFound != nil {
		return e.NotFound
	}

	code, _, ok := Violation(err)
	switch {
	case ok && code == CodeUniqueViolation && e.Duplicate != nil:
		return e.Duplicate
	case ok && code == CodeForeignKeyViolation && e.Reference != nil:
		return e.Reference
	}

	return err
}

// MapError is shorthand for Errors{NotFound: notFoundErr, Duplicate: duplicateErr}.Map(err).
func MapError(err error, notFoundErr, duplicateErr error) error {
	return Errors{NotFound: notFoundErr, Duplicate: duplicateErr}.Map(err)
}

// Violation reports the SQLSTATE code and constraint name carried by a
// PostgreSQL error.
func Violation(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", "", false
	}
	return pgErr.Code, pgErr.ConstraintName, true
}
