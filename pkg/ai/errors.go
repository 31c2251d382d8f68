package ai

import (
	"fmt"
	"net/http"
)

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// Temporary reports whether retrying the call may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= http.StatusInternalServerError
}
