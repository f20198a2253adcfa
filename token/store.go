// Package token owns the access/refresh token pair and cached user profile
// for the current session. The in-memory fields are the single source of
// truth; the secret store is a write-through cache read only at bootstrap.
package token

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"github.com/timothywashburn/pat-client/secrets"
)

const (
	tokensKey   = "tokens"
	userInfoKey = "userInfo"
)

// Store holds the current credentials and profile, persisting every change
// to the underlying secret store.
type Store struct {
	secrets secrets.Store
	log     zerolog.Logger

	lock    sync.RWMutex
	creds   *Credentials
	profile *Profile
}

func NewStore(secretStore secrets.Store, log zerolog.Logger) *Store {
	return &Store{
		secrets: secretStore,
		log:     log,
	}
}

// Load reads persisted credentials and profile into memory. It returns nil
// when either entry is absent or undecodable; a partially valid pair is
// never restored.
func (s *Store) Load() (*Credentials, *Profile) {
	rawTokens, err := s.secrets.Read(tokensKey)
	if err != nil {
		if err != secrets.ErrNotFound {
			s.log.Warn().Err(err).Msg("failed to read stored tokens")
		}
		return nil, nil
	}
	rawProfile, err := s.secrets.Read(userInfoKey)
	if err != nil {
		if err != secrets.ErrNotFound {
			s.log.Warn().Err(err).Msg("failed to read stored profile")
		}
		return nil, nil
	}

	var creds Credentials
	if err := json.Unmarshal(rawTokens, &creds); err != nil || creds.Validate() != nil {
		s.log.Warn().Msg("stored tokens undecodable, treating as absent")
		return nil, nil
	}
	var profile Profile
	if err := json.Unmarshal(rawProfile, &profile); err != nil {
		s.log.Warn().Msg("stored profile undecodable, treating as absent")
		return nil, nil
	}

	s.lock.Lock()
	s.creds = &creds
	s.profile = &profile
	s.lock.Unlock()

	return &creds, &profile
}

// Save updates the in-memory state and writes both entries through to the
// secret store. Persistence failures are logged, never surfaced; the
// in-memory session stays authoritative for the process lifetime.
func (s *Store) Save(creds Credentials, profile Profile) {
	s.lock.Lock()
	s.creds = &creds
	s.profile = &profile
	s.lock.Unlock()

	s.persist(creds, profile)
}

// PatchProfile mutates the cached profile in place and persists the result
// alongside the current credentials. The mutation runs under the store lock
// so a concurrent Save can never be overwritten by a stale copy. No-op when
// signed out.
func (s *Store) PatchProfile(mutate func(*Profile)) {
	s.lock.Lock()
	if s.creds == nil || s.profile == nil {
		s.lock.Unlock()
		return
	}
	mutate(s.profile)
	creds := *s.creds
	profile := *s.profile
	s.lock.Unlock()

	s.persist(creds, profile)
}

func (s *Store) persist(creds Credentials, profile Profile) {
	rawTokens, err := json.Marshal(creds)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode tokens")
		return
	}
	rawProfile, err := json.Marshal(profile)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode profile")
		return
	}

	if err := s.secrets.Save(tokensKey, rawTokens); err != nil {
		s.log.Error().Err(err).Msg("failed to persist tokens")
		return
	}
	if err := s.secrets.Save(userInfoKey, rawProfile); err != nil {
		s.log.Error().Err(err).Msg("failed to persist profile")
	}
}

// Clear drops the in-memory state and deletes both persisted entries.
// Idempotent; deletion failures are logged only.
func (s *Store) Clear() {
	s.lock.Lock()
	s.creds = nil
	s.profile = nil
	s.lock.Unlock()

	if err := s.secrets.Delete(tokensKey); err != nil {
		s.log.Warn().Err(err).Msg("failed to delete stored tokens")
	}
	if err := s.secrets.Delete(userInfoKey); err != nil {
		s.log.Warn().Err(err).Msg("failed to delete stored profile")
	}
}

// AccessToken returns the current access token, or "" when signed out.
// Pure in-memory read.
func (s *Store) AccessToken() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.AccessToken
}

// RefreshToken returns the current refresh token, or "" when signed out.
func (s *Store) RefreshToken() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.RefreshToken
}

// Credentials returns a copy of the current pair, or nil when signed out.
func (s *Store) Credentials() *Credentials {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.creds == nil {
		return nil
	}
	cp := *s.creds
	return &cp
}

// Profile returns a copy of the cached profile, or nil when signed out.
func (s *Store) Profile() *Profile {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.profile == nil {
		return nil
	}
	cp := *s.profile
	return &cp
}
