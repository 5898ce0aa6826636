package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/config"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/types"
)

// newTestHub builds a hub with the documented defaults and no event feed.
func newTestHub() *Hub {
	return NewHub(&config.Config{}, nil)
}

// newTestHubWithGrace builds a hub whose empty rooms expire quickly, for
// cleanup timer tests.
func newTestHubWithGrace(grace time.Duration) *Hub {
	h := newTestHub()
	h.cleanupGrace = grace
	return h
}

// connect registers a client with the hub the way the transport gateway
// would after an upgrade.
func connect(h *Hub, c *MockClient) {
	h.HandleClientConnect(context.Background(), c)
}

// createTestRoom drives a create-room frame through the router and returns
// the freshly minted room id.
func createTestRoom(t *testing.T, h *Hub, c *MockClient, name, key string) types.RoomIdType {
	t.Helper()
	h.Route(context.Background(), c, &protocol.Frame{
		Type: protocol.TypeCreateRoom,
		Name: name,
		Key:  key,
	})
	created := c.LastFrameOfType(t, protocol.TypeRoomCreated)
	require.NotNil(t, created, "create-room should be acknowledged with room-created")
	return types.RoomIdType(created.RoomID)
}

// joinTestRoom drives a join-room frame through the router and returns the
// assigned role from the room-joined ack.
func joinTestRoom(t *testing.T, h *Hub, c *MockClient, roomID types.RoomIdType, key string) types.RoleType {
	t.Helper()
	h.Route(context.Background(), c, &protocol.Frame{
		Type:   protocol.TypeJoinRoom,
		RoomID: string(roomID),
		Key:    key,
	})
	joined := c.LastFrameOfType(t, protocol.TypeRoomJoined)
	require.NotNil(t, joined, "join-room should be acknowledged with room-joined")
	return types.RoleType(joined.Role)
}

// pairedRoom wires the standard two-party fixture: A creates a room as
// broadcaster, B joins as viewer, and both have their setup traffic
// cleared so tests start from silence.
func pairedRoom(t *testing.T, h *Hub) (broadcaster, viewer *MockClient, roomID types.RoomIdType) {
	t.Helper()

	broadcaster = NewMockClient("client-1")
	viewer = NewMockClient("client-2")
	connect(h, broadcaster)
	connect(h, viewer)

	roomID = createTestRoom(t, h, broadcaster, "movie", "hunter2")
	role := joinTestRoom(t, h, viewer, roomID, "hunter2")
	require.Equal(t, types.RoleTypeViewer, role)

	broadcaster.Reset()
	viewer.Reset()
	return broadcaster, viewer, roomID
}
