package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// LoadError wraps a failed fetch of peers, history or notifications. It is shown
// to the user as a transient warning and never retried automatically.
type LoadError struct {
	Resource string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Resource, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func IsLoadError(err error) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr)
}
