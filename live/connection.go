// Package live maintains the persistent bidirectional connection used for
// server-push notifications. At most one connection is open at a time,
// authenticated by the current access token.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/timothywashburn/pat-client/internal/config"
)

// ConnState is the connection lifecycle state. Connected is only reachable
// from Connecting.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const heartbeatType = "heartbeat"

// TokenSource supplies the current access token for outbound connections.
type TokenSource interface {
	AccessToken() string
}

// EventHandler receives the inbound push events the client acts on.
type EventHandler interface {
	HandleEmailVerified(userID string)
}

type message struct {
	Type   string          `json:"type"`
	ID     int64           `json:"id,omitempty"`
	UserID string          `json:"userId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Connection dials the live endpoint with the current token, keeps the
// session alive with heartbeats, and redials with a delay when the
// transport drops. Disconnect suppresses the auto-retry until the next
// Connect call.
type Connection struct {
	cfg     config.SocketConfig
	tokens  TokenSource
	handler EventHandler
	log     zerolog.Logger

	lock   sync.Mutex
	state  ConnState
	active bool
	gen    int
	cancel context.CancelFunc

	msgID atomic.Int64
}

func NewConnection(cfg config.SocketConfig, tokens TokenSource, handler EventHandler, log zerolog.Logger) (*Connection, error) {
	if cfg == nil {
		return nil, errors.New("[NewConnection] config is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewConnection] token source is required")
	}
	if handler == nil {
		return nil, errors.New("[NewConnection] event handler is required")
	}
	return &Connection{
		cfg:     cfg,
		tokens:  tokens,
		handler: handler,
		log:     log,
	}, nil
}

// State returns the current connection state. Safe from any goroutine.
func (c *Connection) State() ConnState {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Connect opens the live connection. No-op when one is already active.
// Without an access token the connection is meaningless, so the call is
// logged and skipped.
func (c *Connection) Connect() {
	c.lock.Lock()
	if c.active {
		c.lock.Unlock()
		c.log.Debug().Msg("socket already connected")
		return
	}
	if c.tokens.AccessToken() == "" {
		c.lock.Unlock()
		c.log.Info().Msg("socket connect skipped: no auth token")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.active = true
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.lock.Unlock()

	c.log.Info().Msg("socket connecting")
	go c.run(ctx, gen)
}

// Disconnect tears the connection down and suppresses auto-retry until the
// next Connect. Valid from any state; cancelling the connection context
// also stops the keepalive timer.
func (c *Connection) Disconnect() {
	c.lock.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.active = false
	c.state = StateDisconnected
	c.lock.Unlock()
	c.log.Info().Msg("socket disconnected")
}

func (c *Connection) run(ctx context.Context, gen int) {
	defer c.finish(gen)

	for {
		accessToken := c.tokens.AccessToken()
		if accessToken == "" {
			c.log.Info().Msg("socket stopping: no auth token")
			return
		}

		err := c.runSession(ctx, gen, accessToken)
		if ctx.Err() != nil {
			return
		}
		c.setState(gen, StateDisconnected)
		c.log.Warn().Err(err).Dur("delay", c.cfg.GetReconnectDelay()).
			Msg("socket dropped, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.GetReconnectDelay()):
		}
		c.setState(gen, StateConnecting)
	}
}

// runSession dials, pumps inbound messages, and keeps the session alive
// until the transport drops or the context is cancelled.
func (c *Connection) runSession(ctx context.Context, gen int, accessToken string) error {
	endpoint, err := endpointWithToken(c.cfg.GetSocketURL(), accessToken)
	if err != nil {
		return errors.Wrap(err, "[Connection.runSession] endpoint")
	}

	// The token rides in both the header and the query string; some
	// transports drop custom headers.
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + accessToken}},
	})
	if err != nil {
		return errors.Wrap(err, "[Connection.runSession] websocket.Dial")
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	c.setState(gen, StateConnected)
	c.log.Info().Msg("socket connected")

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go c.heartbeatLoop(heartbeatCtx, conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return errors.Wrap(err, "[Connection.runSession] read")
		}
		c.dispatch(data)
	}
}

func (c *Connection) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.GetHeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat := message{Type: heartbeatType, ID: c.msgID.Add(1)}
			encoded, err := json.Marshal(beat)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to encode heartbeat")
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, encoded); err != nil {
				c.log.Debug().Err(err).Msg("heartbeat write failed")
				return
			}
			c.log.Debug().Int64("id", beat.ID).Msg("heartbeat sent")
		}
	}
}

// dispatch routes one inbound message. Malformed or unknown messages are
// logged and dropped; they never kill the connection.
func (c *Connection) dispatch(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		c.log.Warn().Str("raw", string(data)).Msg("dropping malformed socket message")
		return
	}

	switch msg.Type {
	case "emailVerified":
		c.log.Info().Str("userId", msg.UserID).Msg("email verified push received")
		c.handler.HandleEmailVerified(msg.UserID)
	default:
		c.log.Debug().Str("type", msg.Type).Msg("unhandled socket message type")
	}
}

func (c *Connection) setState(gen int, state ConnState) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if gen != c.gen {
		return
	}
	c.state = state
}

func (c *Connection) finish(gen int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if gen != c.gen {
		return
	}
	c.active = false
	c.state = StateDisconnected
	c.cancel = nil
}

func endpointWithToken(socketURL, accessToken string) (string, error) {
	parsed, err := url.Parse(socketURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("token", accessToken)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
