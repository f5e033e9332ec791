package contracts

import (
	"errors"
	"net/http"
)

// Domain errors for contract operations.
var (
	ErrNotFound  = errors.New("contract not found")
	ErrDuplicate = errors.New("contract already exists")
)

// MapHTTPStatus maps contract domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
