package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConnection reports that the backend could not be reached. Callers render it as a
	// connection error and never retry.
	ErrConnection = errors.New("backend: connection error")
	// ErrNotConfigured is returned when no backend base URL was configured.
	ErrNotConfigured = errors.New("backend: base url not configured")
)

// APIError is a business failure reported by the backend, carrying its "msg" field.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.Status)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsUnauthorized reports a 401 or 403 from the backend.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden)
}

// Message extracts the user-facing message from err, falling back when err carries none.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
