package session

import "errors"

var (
	// ErrRefreshFailed means no refresh token is held or the server rejected
	// it. It is the only error that forces a sign-out.
	ErrRefreshFailed = errors.New("failed to refresh authentication")

	// ErrNotAuthenticated is returned by operations that require a session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSignedOutDuringOperation means a sign-out raced an in-flight
	// operation and its result was discarded.
	ErrSignedOutDuringOperation = errors.New("signed out during operation")
)
