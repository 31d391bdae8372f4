package backend

import "errors"

// APIError is a non-2xx backend response with a user-facing message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// TimeoutError marks a call that hit its per-operation deadline. The true
// server-side outcome is unknown; callers surface it as an ambiguous status
// and never retry automatically.
type TimeoutError struct {
	Operation string
	Message   string
}

func (e *TimeoutError) Error() string {
	return e.Message
}

// IsTimeout reports whether err is a backend call timeout.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}

// StatusCode returns the HTTP status of an APIError, or 0 for other errors.
func StatusCode(err error) int {
	var a *APIError
	if errors.As(err, &a) {
		return a.StatusCode
	}
	return 0
}
