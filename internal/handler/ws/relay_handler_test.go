package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalrelay-backend/internal/calls"
	"signalrelay-backend/internal/registry"
	"signalrelay-backend/internal/service/signaling"
	"signalrelay-backend/pkg/metrics"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("WS_ALLOW_NO_ORIGIN", "true")
	gin.SetMode(gin.TestMode)

	m := metrics.NewMetrics("ws-test")
	hub := NewRelayHub(m)
	svc := signaling.NewService(registry.New(), calls.New(), hub, m, 50*time.Millisecond)
	hub.SetRouter(svc)

	router := gin.New()
	router.GET("/ws", hub.ServeWS)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Type: eventType, Data: raw}))
}

// readEvent reads frames until one of the wanted type arrives, skipping
// interleaved broadcasts
func readEvent(t *testing.T, conn *websocket.Conn, eventType string) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", eventType)
		if env.Type == eventType {
			return env
		}
	}
}

func TestLoginRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	sendEvent(t, conn, signaling.EventLogin, "alice")

	env := readEvent(t, conn, signaling.EventLoginSuccess)
	var identity string
	require.NoError(t, json.Unmarshal(env.Data, &identity))
	assert.Equal(t, "alice", identity)

	env = readEvent(t, conn, signaling.EventUserStatus)
	var status signaling.UserStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, signaling.UserStatus{UserID: "alice", Status: signaling.StatusOnline}, status)
}

func TestCallAndDisconnectOverWebSocket(t *testing.T) {
	srv := newTestServer(t)

	alice := dial(t, srv)
	bob := dial(t, srv)

	sendEvent(t, alice, signaling.EventLogin, "alice")
	readEvent(t, alice, signaling.EventLoginSuccess)
	sendEvent(t, bob, signaling.EventLogin, "bob")
	readEvent(t, bob, signaling.EventLoginSuccess)

	// alice rings bob
	sendEvent(t, alice, signaling.EventCall, signaling.CallRequest{CalleeID: "bob"})

	env := readEvent(t, bob, signaling.EventIncomingCall)
	var incoming signaling.IncomingCall
	require.NoError(t, json.Unmarshal(env.Data, &incoming))
	assert.Equal(t, "alice", incoming.CallerID)
	assert.NotEmpty(t, incoming.CallID)

	env = readEvent(t, alice, signaling.EventCallInitiated)
	var initiated signaling.CallInitiated
	require.NoError(t, json.Unmarshal(env.Data, &initiated))
	assert.Equal(t, incoming.CallID, initiated.CallID)

	// alice vanishes mid-ring; bob gets the presence change first, then
	// the call teardown
	alice.Close()

	env = readEvent(t, bob, signaling.EventUserStatus)
	var status signaling.UserStatus
	for {
		require.NoError(t, json.Unmarshal(env.Data, &status))
		if status.Status == signaling.StatusOffline {
			break
		}
		env = readEvent(t, bob, signaling.EventUserStatus)
	}
	assert.Equal(t, signaling.UserStatus{UserID: "alice", Status: signaling.StatusOffline}, status)

	env = readEvent(t, bob, signaling.EventCallEnded)
	var ended signaling.CallEnd
	require.NoError(t, json.Unmarshal(env.Data, &ended))
	assert.Equal(t, incoming.CallID, ended.CallID)
	assert.Equal(t, "peer disconnected", ended.Reason)
}

func TestConnectionLimit(t *testing.T) {
	t.Setenv("WS_MAX_CONNECTIONS", "1")
	srv := newTestServer(t)

	dial(t, srv)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOriginRejected(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	// Connection survives and still processes valid events
	sendEvent(t, conn, signaling.EventLogin, "alice")
	readEvent(t, conn, signaling.EventLoginSuccess)
}
