package live_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/timothywashburn/pat-client/live"
)

type testConfig struct {
	socketURL string
	heartbeat time.Duration
	reconnect time.Duration
}

func (c testConfig) GetSocketURL() string                { return c.socketURL }
func (c testConfig) GetHeartbeatInterval() time.Duration { return c.heartbeat }
func (c testConfig) GetReconnectDelay() time.Duration    { return c.reconnect }

type staticTokens struct {
	lock  sync.Mutex
	token string
}

func (s *staticTokens) AccessToken() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.token
}

func (s *staticTokens) set(token string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.token = token
}

type recordingHandler struct {
	verified chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{verified: make(chan string, 4)}
}

func (h *recordingHandler) HandleEmailVerified(userID string) {
	h.verified <- userID
}

func wsURL(server *httptest.Server) string {
	return strings.Replace(server.URL, "http", "ws", 1)
}

func newConnection(t *testing.T, cfg testConfig, tokens live.TokenSource, handler live.EventHandler) *live.Connection {
	t.Helper()
	conn, err := live.NewConnection(cfg, tokens, handler, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(conn.Disconnect)
	return conn
}

func requireState(t *testing.T, conn *live.Connection, want live.ConnState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return conn.State() == want
	}, 3*time.Second, 10*time.Millisecond)
}

func TestConnectWithoutTokenIsNoOp(t *testing.T) {
	dialed := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dialed = true
	}))
	defer server.Close()

	cfg := testConfig{socketURL: wsURL(server), heartbeat: time.Minute, reconnect: time.Minute}
	conn := newConnection(t, cfg, &staticTokens{}, newRecordingHandler())

	conn.Connect()

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, live.StateDisconnected, conn.State())
	require.False(t, dialed)
}

func TestConnectCarriesTokenInHeaderAndQuery(t *testing.T) {
	gotAuth := make(chan string, 1)
	gotQuery := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		gotQuery <- r.URL.Query().Get("token")
		ws, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		// Hold the connection open until the client goes away.
		_, _, _ = ws.Read(r.Context())
	}))
	defer server.Close()

	cfg := testConfig{socketURL: wsURL(server), heartbeat: time.Minute, reconnect: time.Minute}
	conn := newConnection(t, cfg, &staticTokens{token: "T1"}, newRecordingHandler())

	conn.Connect()
	requireState(t, conn, live.StateConnected)

	require.Equal(t, "Bearer T1", <-gotAuth)
	require.Equal(t, "T1", <-gotQuery)
}

func TestHeartbeatsHaveIncreasingIDs(t *testing.T) {
	type beat struct {
		Type string `json:"type"`
		ID   int64  `json:"id"`
	}
	beats := make(chan beat, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		for {
			_, data, err := ws.Read(r.Context())
			if err != nil {
				return
			}
			var b beat
			require.NoError(t, json.Unmarshal(data, &b))
			beats <- b
		}
	}))
	defer server.Close()

	cfg := testConfig{socketURL: wsURL(server), heartbeat: 30 * time.Millisecond, reconnect: time.Minute}
	conn := newConnection(t, cfg, &staticTokens{token: "T1"}, newRecordingHandler())

	conn.Connect()
	requireState(t, conn, live.StateConnected)

	var previous int64
	for i := 0; i < 3; i++ {
		select {
		case b := <-beats:
			require.Equal(t, "heartbeat", b.Type)
			require.Greater(t, b.ID, previous)
			previous = b.ID
		case <-time.After(2 * time.Second):
			t.Fatal("expected a heartbeat")
		}
	}
}

func TestInboundEmailVerifiedDispatched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		// A malformed frame and an unknown type must both be survivable.
		_ = ws.Write(r.Context(), websocket.MessageText, []byte("not json"))
		_ = ws.Write(r.Context(), websocket.MessageText, []byte(`{"type":"somethingElse"}`))
		_ = ws.Write(r.Context(), websocket.MessageText, []byte(`{"type":"emailVerified","userId":"1"}`))
		_, _, _ = ws.Read(r.Context())
	}))
	defer server.Close()

	handler := newRecordingHandler()
	cfg := testConfig{socketURL: wsURL(server), heartbeat: time.Minute, reconnect: time.Minute}
	conn := newConnection(t, cfg, &staticTokens{token: "T1"}, handler)

	conn.Connect()

	select {
	case userID := <-handler.verified:
		require.Equal(t, "1", userID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the emailVerified push to be dispatched")
	}
	require.Equal(t, live.StateConnected, conn.State())
}

func TestAutoReconnectAfterDrop(t *testing.T) {
	var lock sync.Mutex
	dials := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lock.Lock()
		dials++
		first := dials == 1
		lock.Unlock()

		ws, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		if first {
			_ = ws.Close(websocket.StatusInternalError, "dropping you")
			return
		}
		_, _, _ = ws.Read(r.Context())
	}))
	defer server.Close()

	cfg := testConfig{socketURL: wsURL(server), heartbeat: time.Minute, reconnect: 50 * time.Millisecond}
	conn := newConnection(t, cfg, &staticTokens{token: "T1"}, newRecordingHandler())

	conn.Connect()

	require.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return dials >= 2
	}, 3*time.Second, 10*time.Millisecond)
	requireState(t, conn, live.StateConnected)
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	var lock sync.Mutex
	dials := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lock.Lock()
		dials++
		lock.Unlock()
		ws, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		_, _, _ = ws.Read(r.Context())
	}))
	defer server.Close()

	cfg := testConfig{socketURL: wsURL(server), heartbeat: time.Minute, reconnect: 30 * time.Millisecond}
	conn := newConnection(t, cfg, &staticTokens{token: "T1"}, newRecordingHandler())

	conn.Connect()
	requireState(t, conn, live.StateConnected)

	conn.Disconnect()
	require.Equal(t, live.StateDisconnected, conn.State())

	time.Sleep(150 * time.Millisecond)
	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, 1, dials, "explicit disconnect must not auto-retry")
}

func TestReconnectUsesFreshToken(t *testing.T) {
	var lock sync.Mutex
	var tokensSeen []string
	open := 0
	maxOpen := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lock.Lock()
		tokensSeen = append(tokensSeen, r.URL.Query().Get("token"))
		open++
		if open > maxOpen {
			maxOpen = open
		}
		lock.Unlock()
		defer func() {
			lock.Lock()
			open--
			lock.Unlock()
		}()

		ws, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		_, _, _ = ws.Read(r.Context())
	}))
	defer server.Close()

	tokens := &staticTokens{token: "A"}
	cfg := testConfig{socketURL: wsURL(server), heartbeat: time.Minute, reconnect: time.Minute}
	conn := newConnection(t, cfg, tokens, newRecordingHandler())

	conn.Connect()
	requireState(t, conn, live.StateConnected)

	// Credential change: tear down, then dial again with the new token.
	conn.Disconnect()
	require.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return open == 0
	}, 2*time.Second, 10*time.Millisecond)
	tokens.set("B")
	conn.Connect()
	requireState(t, conn, live.StateConnected)

	require.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(tokensSeen) == 2
	}, 2*time.Second, 10*time.Millisecond)

	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, []string{"A", "B"}, tokensSeen)
	require.Equal(t, 1, maxOpen, "never two simultaneous open connections")
}

func TestConnectTwiceIsNoOp(t *testing.T) {
	var lock sync.Mutex
	dials := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lock.Lock()
		dials++
		lock.Unlock()
		ws, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		_, _, _ = ws.Read(r.Context())
	}))
	defer server.Close()

	cfg := testConfig{socketURL: wsURL(server), heartbeat: time.Minute, reconnect: time.Minute}
	conn := newConnection(t, cfg, &staticTokens{token: "T1"}, newRecordingHandler())

	conn.Connect()
	requireState(t, conn, live.StateConnected)
	conn.Connect()

	time.Sleep(100 * time.Millisecond)
	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, 1, dials)
}
