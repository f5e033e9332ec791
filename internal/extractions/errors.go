package extractions

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Domain errors for extraction operations.
var (
	ErrNotFound          = errors.New("extraction job not found")
	ErrContractNotFound  = errors.New("contract not found")
	ErrAlreadyActive     = errors.New("extraction already in progress for this contract")
	ErrNotCancellable    = errors.New("extraction job cannot be cancelled")
	ErrNotCompleted      = errors.New("extraction job is not completed")
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrInvalidArtifact   = errors.New("invalid artifact name")
	ErrInvalidPattern    = errors.New("invalid artifact pattern")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrInvalidID         = errors.New("invalid id")
	ErrShuttingDown      = errors.New("extraction service is shutting down")
)

// ActiveJobError reports the job that blocks a new start request.
type ActiveJobError struct {
	JobID  uuid.UUID
	Status string
}

func (e *ActiveJobError) Error() string {
	return ErrAlreadyActive.Error()
}

// Is matches ErrAlreadyActive.
func (e *ActiveJobError) Is(target error) bool {
	return target == ErrAlreadyActive
}

// NotCancellableError reports the status that prevented a cancellation.
type NotCancellableError struct {
	Status string
}

func (e *NotCancellableError) Error() string {
	return fmt.Sprintf("cannot cancel a %s job", e.Status)
}

// Is matches ErrNotCancellable.
func (e *NotCancellableError) Is(target error) bool {
	return target == ErrNotCancellable
}

// MapHTTPStatus maps extraction domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrContractNotFound),
		errors.Is(err, ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyActive),
		errors.Is(err, ErrNotCancellable),
		errors.Is(err, ErrNotCompleted),
		errors.Is(err, ErrInvalidArtifact),
		errors.Is(err, ErrInvalidPattern),
		errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrShuttingDown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
