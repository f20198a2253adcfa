package api

import (
	"errors"
	"fmt"
)

// ErrInvalidResponse indicates a malformed or unexpected server payload.
var ErrInvalidResponse = errors.New("invalid response from server")

// ErrNoSession is returned by authenticated calls attempted without an
// access token.
var ErrNoSession = errors.New("no active session")

// ServerError carries the message of an explicit success=false envelope.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return "unknown error occurred"
	}
	return e.Message
}

// NetworkError wraps a transport-level failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
