package session

import "errors"

// Session termination errors. Never retried with the same credential.
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrSessionInvalid         = errors.New("session invalid")
)

// Organization switch errors.
var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrSwitchInProgress     = errors.New("organization switch already in progress")
)

// Storage and transport errors.
var (
	ErrPersistenceFailure = errors.New("credential persistence failed")
	ErrNetworkFailure     = errors.New("network failure")
)

// ErrStale marks a response discarded because the active organization or identity
// changed while the request was in flight.
var ErrStale = errors.New("stale response discarded")

// Terminates reports whether err must end the session (clear store, go to login).
func Terminates(err error) bool {
	return errors.Is(err, ErrAuthenticationRequired) || errors.Is(err, ErrSessionInvalid)
}
