package enps

import "fmt"

// AuthError indicates the newsroom system rejected a login attempt.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("enps login failed with status %d", e.StatusCode)
}

// RequestError indicates a non-success response from a newsroom endpoint
// after login.
type RequestError struct {
	Endpoint   string
	StatusCode int
	Cause      error
}

func (e *RequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("enps %s request failed: %v", e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("enps %s request failed with status %d", e.Endpoint, e.StatusCode)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}
