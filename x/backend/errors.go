package backend

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrMissingToken is returned by user-scoped calls made without a bearer token.
var ErrMissingToken = errors.New("backend: auth token is required")

// APIError is a failed backend call: a non-2xx status or an envelope with success=false.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// Wait is the server-imposed delay before retrying, zero if none was given.
	Wait time.Duration
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Wait > 0 {
		return fmt.Sprintf("backend returned %d (%s): %s, retry in %s", e.StatusCode, e.Code, msg, e.Wait)
	}
	return fmt.Sprintf("backend returned %d (%s): %s", e.StatusCode, e.Code, msg)
}

// WaitSeconds exposes Wait to cooldown triggers.
func (e *APIError) WaitSeconds() float64 { return e.Wait.Seconds() }

// RateLimited reports whether the backend asked the caller to slow down.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Wait > 0
}

// IsUnauthorized reports whether err is a backend 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
