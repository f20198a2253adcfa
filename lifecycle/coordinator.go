// Package lifecycle connects the session state machine to the live
// connection and maps app foreground/background transitions onto both.
// Components stay decoupled: the session never calls the connection
// directly, the coordinator reacts to observed state changes.
package lifecycle

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/timothywashburn/pat-client/live"
	"github.com/timothywashburn/pat-client/session"
)

// Session is the slice of session.Manager the coordinator drives.
type Session interface {
	State() session.State
	Subscribe() (<-chan session.State, func())
	RefreshIfNeeded(ctx context.Context) error
	CheckEmailVerification(ctx context.Context) error
	SignOut()
}

// LiveConnection is the slice of live.Connection the coordinator drives.
type LiveConnection interface {
	Connect()
	Disconnect()
}

// Coordinator owns the session -> connection propagation rule: whenever the
// credentials change, the connection is torn down and, if still
// authenticated, re-established with the new token.
type Coordinator struct {
	session Session
	conn    LiveConnection
	tokens  live.TokenSource
	log     zerolog.Logger

	lastToken string
	lastAuth  bool
}

func NewCoordinator(sess Session, conn LiveConnection, tokens live.TokenSource, log zerolog.Logger) (*Coordinator, error) {
	if sess == nil {
		return nil, errors.New("[NewCoordinator] session is required")
	}
	if conn == nil {
		return nil, errors.New("[NewCoordinator] live connection is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewCoordinator] token source is required")
	}
	return &Coordinator{
		session: sess,
		conn:    conn,
		tokens:  tokens,
		log:     log,
	}, nil
}

// Run applies the current state, then follows session state changes until
// ctx is cancelled. The connection is torn down on exit.
func (c *Coordinator) Run(ctx context.Context) {
	updates, cancel := c.session.Subscribe()
	defer cancel()

	c.apply(c.session.State())

	for {
		select {
		case <-ctx.Done():
			c.conn.Disconnect()
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			c.apply(state)
		}
	}
}

// HandleForeground revalidates the session when the app returns to the
// foreground. A refresh rejection is the one error that forces sign-out;
// anything else leaves the session as-is.
func (c *Coordinator) HandleForeground(ctx context.Context) {
	if !c.session.State().Authenticated {
		return
	}

	if err := c.session.RefreshIfNeeded(ctx); err != nil {
		if stderrors.Is(err, session.ErrRefreshFailed) {
			c.log.Info().Msg("session expired, signing out")
			c.session.SignOut()
			return
		}
		c.log.Warn().Err(err).Msg("foreground refresh failed, keeping session")
	}

	if state := c.session.State(); state.Authenticated && !state.EmailVerified {
		if err := c.session.CheckEmailVerification(ctx); err != nil {
			c.log.Debug().Err(err).Msg("verification check failed")
		}
	}
}

// HandleBackground drops the live connection while the app is backgrounded.
func (c *Coordinator) HandleBackground() {
	c.conn.Disconnect()
}

// apply reconciles the connection with the observed state. Verified-flag
// changes with an unchanged token leave the connection alone; any
// credential change tears down first so a stale token never stays embedded
// in an open connection.
func (c *Coordinator) apply(state session.State) {
	accessToken := c.tokens.AccessToken()
	if accessToken == c.lastToken && state.Authenticated == c.lastAuth {
		return
	}
	c.lastToken = accessToken
	c.lastAuth = state.Authenticated

	c.conn.Disconnect()
	if state.Authenticated && accessToken != "" {
		c.conn.Connect()
	}
}
