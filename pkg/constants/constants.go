// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteDeadline is the per-message write deadline
	WebSocketWriteDeadline = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second

	// DefaultCallGraceWindow is how long a terminal call record is retained
	// so late-arriving messages referencing it can be dropped cleanly
	DefaultCallGraceWindow = 5 * time.Second
)

// Connection limits and buffer sizes
const (
	// DefaultMaxConnections is the default cap on concurrent WebSocket connections
	DefaultMaxConnections = 1000

	// SendBufferSize is the per-connection outbound message buffer; a client
	// that falls this far behind is disconnected
	SendBufferSize = 256

	// ReadBufferSize and WriteBufferSize size the WebSocket I/O buffers
	ReadBufferSize  = 1024
	WriteBufferSize = 1024
)
