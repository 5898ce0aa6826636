package types

import (
	"context"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
)

// --- Core Domain Types ---

// RoleType identifies which slot of a room a client occupies.
type RoleType string

// ClientIdType represents a unique identifier for a client connection.
type ClientIdType string

// RoomIdType represents a unique identifier for a streaming room.
type RoomIdType string

// Role constants. A room holds at most one of each.
const (
	RoleTypeBroadcaster RoleType = "broadcaster" // The participant sharing a screen
	RoleTypeViewer      RoleType = "viewer"      // The participant watching
	RoleTypeNone        RoleType = ""            // Not bound to any room
)

// --- Shared Interfaces ---

// ClientInterface defines the behavior the session layer needs from a
// WebSocket connection. It keeps the session package free of any dependency
// on the transport package.
//
// The room back-reference (room id + role) is owned by the session
// coordinator: only it calls SetRoomID/SetRole, always under the hub lock.
type ClientInterface interface {
	GetID() ClientIdType
	GetRole() RoleType
	SetRole(RoleType)
	GetRoomID() RoomIdType
	SetRoomID(RoomIdType)
	// Send enqueues an encoded frame for delivery. It must never block;
	// implementations drop the frame when the client cannot keep up.
	Send(data []byte)
	// Disconnect forcefully closes the connection (e.g. on hub shutdown).
	Disconnect()
}

// Coordinator defines the hub-side behavior the transport layer drives.
type Coordinator interface {
	// HandleClientConnect registers the connection and pushes the current
	// room directory to it.
	HandleClientConnect(ctx context.Context, c ClientInterface)
	// HandleClientDisconnect runs the idempotent leave path and removes the
	// connection from the registry.
	HandleClientDisconnect(ctx context.Context, c ClientInterface)
	// Route dispatches one decoded inbound frame.
	Route(ctx context.Context, c ClientInterface, frame *protocol.Frame)
}
