package toplogger

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the API rejects the credentials (or
// their absence).
var ErrUnauthorized = errors.New("toplogger: unauthorized")

// ErrSignIn is returned when signing in fails. It never matches
// ErrUnauthorized, so a rejected login is not retried.
var ErrSignIn = errors.New("toplogger: sign in failed")

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("toplogger: http %d", e.Code)
	}
	return fmt.Sprintf("toplogger: http %d: %s", e.Code, e.Body)
}
