package transport

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/logging"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/metrics"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// sendBufferSize is the per-client outbound queue depth. Frames beyond it
// are dropped rather than blocking the hub.
const sendBufferSize = 256

// writeWait is the maximum time allowed for a single WebSocket write.
const writeWait = 10 * time.Second

// clientSeq mints monotonically increasing client IDs for the process.
var clientSeq atomic.Uint64

// nextClientID returns the next server-assigned connection ID (client-1,
// client-2, ...).
func nextClientID() types.ClientIdType {
	return types.ClientIdType("client-" + strconv.FormatUint(clientSeq.Add(1), 10))
}

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error) // Read the next message from the connection
	WriteMessage(messageType int, data []byte) error     // Write a message to the connection
	Close() error                                        // Close the connection
	SetWriteDeadline(t time.Time) error
}

// Client represents a single signaling connection. It implements
// types.ClientInterface.
//
// The role and room binding are owned by the coordinator and only change
// under its lock; the accessors here just make those reads and writes safe
// against the pumps.
type Client struct {
	conn        wsConnection      // WebSocket connection for real-time communication
	coordinator types.Coordinator // Session layer that owns rooms and routing
	id          types.ClientIdType
	role        types.RoleType
	roomID      types.RoomIdType

	// ctx carries the correlation ID for the lifetime of the connection.
	ctx context.Context

	mu     sync.RWMutex // Protects role, roomID and the closed flag
	closed bool         // Track if client has been disconnected

	send chan []byte // Buffered channel for outbound frames
}

// newClient wraps an upgraded connection and assigns it a fresh ID.
func newClient(ctx context.Context, conn wsConnection, coordinator types.Coordinator) *Client {
	id := nextClientID()
	return &Client{
		conn:        conn,
		coordinator: coordinator,
		id:          id,
		ctx:         context.WithValue(ctx, logging.ClientIDKey, string(id)),
		send:        make(chan []byte, sendBufferSize),
	}
}

// --- types.ClientInterface setters and getters ---

func (c *Client) GetID() types.ClientIdType {
	return c.id
}

// Thread-safe reader
func (c *Client) GetRole() types.RoleType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// Thread-safe writer
func (c *Client) SetRole(role types.RoleType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
}

func (c *Client) GetRoomID() types.RoomIdType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Client) SetRoomID(roomID types.RoomIdType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	// Closing the channel triggers the writePump to drain the buffer, send a
	// CloseMessage, and then close the connection.
	close(c.send)
}

// readPump continuously processes incoming WebSocket messages from the client.
func (c *Client) readPump() {
	defer func() {
		c.coordinator.HandleClientDisconnect(c.ctx, c)
		c.conn.Close()
		metrics.DecConnection()
	}()

	// No read deadline: a silent but healthy connection stays open, and the
	// client drives liveness with ping frames.
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			logging.Warn(c.ctx, "Discarding malformed frame", zap.Error(err))
			metrics.FramesProcessed.WithLabelValues("unknown", "malformed").Inc()
			continue
		}

		c.coordinator.Route(c.ctx, c, frame)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Error(c.ctx, "error writing message", zap.Error(err))
			return
		}
	}
}

// Send satisfies types.ClientInterface and enqueues a pre-serialized frame.
func (c *Client) Send(data []byte) {
	// Check if client is closed before attempting to send
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		logging.GetLogger().Debug("Skipping send to closed client", zap.String("clientId", string(c.id)))
		return
	}
	c.mu.RUnlock()

	// Add panic recovery as a safety net
	defer func() {
		if r := recover(); r != nil {
			logging.Warn(c.ctx, "Recovered from panic in Send", zap.String("clientId", string(c.id)), zap.Any("panic", r))
		}
	}()

	select {
	case c.send <- data:
	default:
		metrics.OutboundDropped.Inc()
		logging.Warn(c.ctx, "Client send channel full or closed - dropping frame", zap.String("clientId", string(c.id)))
	}
}
