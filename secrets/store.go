// Package secrets provides the persistent store for small client secrets
// (auth tokens, the cached user profile), namespaced by a service identifier.
package secrets

import "errors"

var ErrNotFound = errors.New("secret not found")

// Store persists small secret values by key. Implementations surface
// failures to the caller and never retry internally.
type Store interface {
	Save(key string, value []byte) error
	// Read returns ErrNotFound when no value is stored under key.
	Read(key string) ([]byte, error)
	// Delete is idempotent; deleting an absent key is not an error.
	Delete(key string) error
}
