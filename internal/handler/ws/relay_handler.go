package ws

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signalrelay-backend/pkg/constants"
	"signalrelay-backend/pkg/logger"
	"signalrelay-backend/pkg/metrics"
	"signalrelay-backend/pkg/response"
)

// Envelope is the wire frame for every event in both directions
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Router consumes decoded events from the transport
type Router interface {
	HandleEvent(handle, event string, data json.RawMessage)
	HandleDisconnect(handle string)
}

// RelayHub owns all live WebSocket connections and implements the
// EventSender side of the signaling service
type RelayHub struct {
	// Clients keyed by connection handle
	mu      sync.RWMutex
	clients map[string]*RelayClient

	router  Router
	metrics *metrics.Metrics

	upgrader websocket.Upgrader

	// Concurrency limit: maxConnections is the maximum number of concurrent WebSocket connections
	maxConnections int
	// Semaphore for limiting concurrent connections
	semaphore chan struct{}
}

// RelayClient represents one WebSocket connection
type RelayClient struct {
	hub    *RelayHub
	conn   *websocket.Conn
	send   chan []byte
	handle string

	closeOnce sync.Once
}

// NewRelayHub creates the hub. The router is attached afterwards with
// SetRouter because the signaling service needs the hub as its sender.
func NewRelayHub(m *metrics.Metrics) *RelayHub {
	maxConns := constants.DefaultMaxConnections
	if val := os.Getenv("WS_MAX_CONNECTIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			maxConns = n
		}
	}

	allowNoOrigin := os.Getenv("WS_ALLOW_NO_ORIGIN") == "true"

	return &RelayHub{
		clients: make(map[string]*RelayClient),
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  constants.ReadBufferSize,
			WriteBufferSize: constants.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Non-browser clients send no Origin; allow only when
					// explicitly enabled
					return allowNoOrigin
				}
				return GetAllowedOrigins()[origin]
			},
		},
		maxConnections: maxConns,
		semaphore:      make(chan struct{}, maxConns),
	}
}

// SetRouter attaches the event consumer. Must be called before ServeWS.
func (h *RelayHub) SetRouter(r Router) {
	h.router = r
}

// GetAllowedOrigins returns the origin allowlist for WebSocket upgrades:
// localhost defaults plus WS_ALLOWED_ORIGINS (comma-separated)
func GetAllowedOrigins() map[string]bool {
	allowed := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:8084": true,
		"http://127.0.0.1:3000": true,
		"http://127.0.0.1:8084": true,
	}
	if origins := os.Getenv("WS_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowed[origin] = true
			}
		}
	}
	return allowed
}

// Emit sends an event to a single connection. Delivery is fire-and-forget;
// a client whose send buffer is full is disconnected rather than awaited.
func (h *RelayHub) Emit(handle, event string, payload interface{}) {
	frame := h.encode(event, payload)

	// Deliver under the read lock so a concurrent close cannot free the
	// send channel out from under us
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[handle]; ok {
		client.deliver(frame)
	}
}

// Broadcast sends an event to every open connection, logged in or not
func (h *RelayHub) Broadcast(event string, payload interface{}) {
	frame := h.encode(event, payload)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.deliver(frame)
	}
}

func (h *RelayHub) encode(event string, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal event payload", zap.String("event", event), zap.Error(err))
		return nil
	}
	frame, _ := json.Marshal(Envelope{Type: event, Data: data})
	return frame
}

// deliver queues a frame without blocking. A full buffer means the client
// stopped draining; closing the underlying conn makes its readPump exit,
// which runs the normal disconnect path exactly once.
func (c *RelayClient) deliver(frame []byte) {
	if frame == nil {
		return
	}
	select {
	case c.send <- frame:
	default:
		c.hub.metrics.RecordWebSocketError("send_buffer_full")
		logger.Warn("dropping slow client", zap.String("handle", c.handle))
		c.conn.Close()
	}
}

// ServeWS handles WebSocket upgrade requests
func (h *RelayHub) ServeWS(c *gin.Context) {
	// Acquire semaphore to limit concurrent connections
	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		response.ServiceUnavailable(c, "Server at capacity, please try again later")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-h.semaphore
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &RelayClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, constants.SendBufferSize),
		handle: uuid.NewString(),
	}

	h.mu.Lock()
	h.clients[client.handle] = client
	h.mu.Unlock()
	h.metrics.ConnectionOpened()

	logger.Debug("connection opened", zap.String("handle", client.handle))

	go client.writePump()
	go client.readPump()
}

// readPump reads envelopes from the WebSocket and hands them to the router
func (c *RelayClient) readPump() {
	defer c.close()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval * 2))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval * 2))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket connection closed", zap.String("handle", c.handle), zap.Error(err))
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
			c.hub.metrics.RecordWebSocketError("malformed_frame")
			logger.Warn("invalid message format from WebSocket", zap.String("handle", c.handle), zap.Error(err))
			continue
		}

		c.hub.router.HandleEvent(c.handle, env.Type, env.Data)
	}
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *RelayClient) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close tears the client down exactly once: drops it from the hub, releases
// the connection slot, and lets the router reconcile registry and call state
func (c *RelayClient) close() {
	c.closeOnce.Do(func() {
		c.hub.mu.Lock()
		delete(c.hub.clients, c.handle)
		c.hub.mu.Unlock()

		close(c.send)
		c.conn.Close()
		<-c.hub.semaphore
		c.hub.metrics.ConnectionClosed()

		logger.Debug("connection closed", zap.String("handle", c.handle))

		c.hub.router.HandleDisconnect(c.handle)
	})
}
