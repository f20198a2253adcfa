// Package session orchestrates the authenticated session lifecycle:
// bootstrap from persisted credentials, sign-in, registration, token
// refresh, verification checks, and sign-out. All mutations funnel through
// a single mutation point so the session is never authenticated without
// valid, persisted tokens.
package session

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/timothywashburn/pat-client/api"
	"github.com/timothywashburn/pat-client/token"
	"golang.org/x/sync/singleflight"
)

const (
	loginPath              = "/api/auth/login"
	registerPath           = "/api/auth/register"
	refreshPath            = "/api/auth/refresh"
	statusPath             = "/api/account/status"
	resendVerificationPath = "/api/account/resend-verification"
)

type authPayload struct {
	User         token.Profile `json:"user"`
	Token        string        `json:"token"`
	RefreshToken string        `json:"refreshToken"`
}

func (p *authPayload) Validate() error {
	if p.Token == "" || p.RefreshToken == "" {
		return errors.New("[authPayload.Validate] token fields are required")
	}
	return p.User.Validate()
}

type statusPayload struct {
	User token.Profile `json:"user"`
}

func (p *statusPayload) Validate() error {
	return p.User.Validate()
}

// Manager is the single writer for session state. Network operations
// suspend the caller; reads are safe from any goroutine.
type Manager struct {
	api    *api.Client
	tokens *token.Store
	log    zerolog.Logger

	nowTime func() time.Time

	lock         sync.Mutex
	state        State
	bootstrapped bool
	// epoch is bumped on sign-out so in-flight operations from the old
	// session cannot resurrect cleared credentials.
	epoch uint64
	// verifiedPatchedAt records the last live-push emailVerified patch;
	// server responses that started earlier cannot clear the flag.
	verifiedPatchedAt time.Time

	refreshGroup singleflight.Group

	subLock     sync.Mutex
	subscribers map[int]chan State
	nextSubID   int
}

// Option defines a function type to modify the Manager instance.
type Option func(*Manager)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func NewManager(apiClient *api.Client, tokens *token.Store, log zerolog.Logger, options ...Option) (*Manager, error) {
	if apiClient == nil {
		return nil, errors.New("[NewManager] api client is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewManager] token store is required")
	}

	m := &Manager{
		api:         apiClient,
		tokens:      tokens,
		log:         log,
		nowTime:     time.Now,
		state:       State{Loading: true},
		subscribers: make(map[int]chan State),
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Bootstrap restores the session from persisted credentials. Runs once at
// process start; later calls are no-ops. Whatever happens, Loading is false
// when it returns. A refresh rejection clears the stored credentials; any
// other refresh error leaves them in place and assumes the token is still
// valid until the server says otherwise.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.lock.Lock()
	if m.bootstrapped {
		m.lock.Unlock()
		return
	}
	m.bootstrapped = true
	m.lock.Unlock()

	creds, profile := m.tokens.Load()
	if creds == nil {
		m.log.Info().Msg("no stored credentials, starting unauthenticated")
		m.setState(func(s *State) {
			s.Loading = false
			s.Authenticated = false
			s.EmailVerified = false
		})
		return
	}

	err := m.RefreshIfNeeded(ctx)
	switch {
	case err == nil:
		m.setState(func(s *State) { s.Loading = false })
	case stderrors.Is(err, ErrRefreshFailed):
		m.log.Info().Msg("stored session rejected by server, signing out")
		m.tokens.Clear()
		m.setState(func(s *State) {
			s.Loading = false
			s.Authenticated = false
			s.EmailVerified = false
		})
	default:
		m.log.Warn().Err(err).Msg("refresh unavailable, keeping stored session")
		m.setState(func(s *State) {
			s.Loading = false
			s.Authenticated = true
			s.EmailVerified = profile.EmailVerified
		})
	}
}

// SignIn authenticates with the server and establishes a new session.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	epoch, started := m.opStart()

	data, err := m.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return errors.Wrap(err, "[Manager.SignIn]")
	}

	payload, err := api.Decode[authPayload](data)
	if err != nil {
		return errors.Wrap(err, "[Manager.SignIn] decode")
	}

	if !m.updateAuthState(payload.User, token.Credentials{
		AccessToken:  payload.Token,
		RefreshToken: payload.RefreshToken,
	}, epoch, started) {
		return ErrSignedOutDuringOperation
	}
	return nil
}

// Register creates an account and chains into SignIn with the same
// credentials; registration alone does not establish a session.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	_, err := m.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   registerPath,
		Body:   map[string]string{"name": name, "email": email, "password": password},
	})
	if err != nil {
		return errors.Wrap(err, "[Manager.Register]")
	}
	return m.SignIn(ctx, email, password)
}

// RefreshIfNeeded exchanges the stored refresh token for a new pair.
// Concurrent callers share a single in-flight request so the server never
// sees a duplicate refresh. ErrRefreshFailed means the session is over and
// the caller must force a sign-out.
func (m *Manager) RefreshIfNeeded(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

func (m *Manager) refresh(ctx context.Context) error {
	refreshToken := m.tokens.RefreshToken()
	if refreshToken == "" {
		return ErrRefreshFailed
	}

	epoch, started := m.opStart()

	data, err := m.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   refreshPath,
		Body:   map[string]string{"refreshToken": refreshToken},
	})
	if err != nil {
		var serverErr *api.ServerError
		if stderrors.As(err, &serverErr) {
			return errors.Wrap(ErrRefreshFailed, serverErr.Message)
		}
		return errors.Wrap(err, "[Manager.refresh]")
	}

	payload, err := api.Decode[authPayload](data)
	if err != nil {
		return errors.Wrap(err, "[Manager.refresh] decode")
	}

	if !m.updateAuthState(payload.User, token.Credentials{
		AccessToken:  payload.Token,
		RefreshToken: payload.RefreshToken,
	}, epoch, started) {
		return ErrSignedOutDuringOperation
	}
	return nil
}

// CheckEmailVerification fetches the account status and updates the profile
// without touching tokens. Safe to call opportunistically.
func (m *Manager) CheckEmailVerification(ctx context.Context) error {
	accessToken := m.tokens.AccessToken()
	if accessToken == "" {
		return ErrNotAuthenticated
	}

	epoch, started := m.opStart()

	data, err := m.api.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   statusPath,
		Token:  accessToken,
	})
	if err != nil {
		return errors.Wrap(err, "[Manager.CheckEmailVerification]")
	}

	payload, err := api.Decode[statusPayload](data)
	if err != nil {
		return errors.Wrap(err, "[Manager.CheckEmailVerification] decode")
	}

	m.applyProfile(payload.User, epoch, started)
	return nil
}

// ResendVerificationEmail asks the server to send another verification
// email. No state mutation; errors go to the caller, no retries.
func (m *Manager) ResendVerificationEmail(ctx context.Context) error {
	accessToken := m.tokens.AccessToken()
	if accessToken == "" {
		return ErrNotAuthenticated
	}

	_, err := m.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   resendVerificationPath,
		Token:  accessToken,
	})
	if err != nil {
		return errors.Wrap(err, "[Manager.ResendVerificationEmail]")
	}
	return nil
}

// SignOut clears the session. Always succeeds and is idempotent; in-flight
// operations from the old session find the epoch moved and discard their
// results. Live-connection teardown happens through the observed state
// change, not a direct call.
func (m *Manager) SignOut() {
	m.lock.Lock()
	m.epoch++
	changed := m.state.Authenticated || m.state.EmailVerified
	m.state.Authenticated = false
	m.state.EmailVerified = false
	m.verifiedPatchedAt = time.Time{}
	state := m.state
	m.lock.Unlock()

	m.tokens.Clear()

	if changed {
		m.log.Info().Msg("signed out")
		m.notify(state)
	}
}

// HandleEmailVerified applies a server-push verification event to the
// cached profile without a round trip.
func (m *Manager) HandleEmailVerified(userID string) {
	profile := m.tokens.Profile()
	if profile == nil {
		m.log.Debug().Msg("email verified push ignored: no session")
		return
	}
	if userID != "" && userID != profile.ID {
		m.log.Warn().Str("userId", userID).Msg("email verified push for different user, ignoring")
		return
	}

	m.lock.Lock()
	if !m.state.Authenticated {
		m.lock.Unlock()
		return
	}
	m.verifiedPatchedAt = m.nowTime()
	m.state.EmailVerified = true
	state := m.state
	m.lock.Unlock()

	// Patch only the verified flag; a fresher profile saved by a
	// concurrent refresh keeps its other fields.
	m.tokens.PatchProfile(func(p *token.Profile) { p.EmailVerified = true })

	m.log.Info().Str("userId", profile.ID).Msg("email verified via live push")
	m.notify(state)
}

// updateAuthState is the single mutation point for establishing a session:
// it sets the in-memory pair, persists it, and flips Authenticated. Returns
// false when the session epoch moved while the operation was in flight.
func (m *Manager) updateAuthState(profile token.Profile, creds token.Credentials, epoch uint64, started time.Time) bool {
	m.lock.Lock()
	if epoch != m.epoch {
		m.lock.Unlock()
		m.log.Debug().Msg("discarding auth response from superseded session")
		return false
	}
	// A fresh server profile wins except where a live push patched the
	// verified flag after the request started.
	if !profile.EmailVerified && m.verifiedPatchedAt.After(started) {
		profile.EmailVerified = true
	}
	m.state.Authenticated = true
	m.state.EmailVerified = profile.EmailVerified
	state := m.state
	m.lock.Unlock()

	m.tokens.Save(creds, profile)
	m.notify(state)
	return true
}

// applyProfile updates only the cached profile and derived verification
// flag, leaving tokens untouched.
func (m *Manager) applyProfile(profile token.Profile, epoch uint64, started time.Time) {
	m.lock.Lock()
	if epoch != m.epoch {
		m.lock.Unlock()
		return
	}
	if !profile.EmailVerified && m.verifiedPatchedAt.After(started) {
		profile.EmailVerified = true
	}
	m.state.EmailVerified = profile.EmailVerified
	state := m.state
	m.lock.Unlock()

	creds := m.tokens.Credentials()
	if creds == nil {
		return
	}
	m.tokens.Save(*creds, profile)
	m.notify(state)
}

func (m *Manager) opStart() (uint64, time.Time) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.epoch, m.nowTime()
}

func (m *Manager) setState(mutate func(*State)) {
	m.lock.Lock()
	mutate(&m.state)
	state := m.state
	m.lock.Unlock()
	m.notify(state)
}
