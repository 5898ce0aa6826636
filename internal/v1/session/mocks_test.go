package session

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/types"
)

// MockClient implements types.ClientInterface and records every frame the
// hub pushes at it, so tests can assert on exact wire traffic without a
// WebSocket in the loop.
type MockClient struct {
	id types.ClientIdType

	mu           sync.Mutex
	role         types.RoleType
	roomID       types.RoomIdType
	sent         [][]byte
	disconnected bool
}

func NewMockClient(id string) *MockClient {
	return &MockClient{id: types.ClientIdType(id)}
}

func (m *MockClient) GetID() types.ClientIdType {
	return m.id
}

func (m *MockClient) GetRole() types.RoleType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

func (m *MockClient) SetRole(role types.RoleType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role = role
}

func (m *MockClient) GetRoomID() types.RoomIdType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

func (m *MockClient) SetRoomID(roomID types.RoomIdType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomID = roomID
}

func (m *MockClient) Send(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.sent = append(m.sent, buf)
}

func (m *MockClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
}

func (m *MockClient) Disconnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnected
}

// Reset drops all recorded traffic, for tests that only care about frames
// after a setup phase.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// SentCount returns how many frames have been pushed to this client.
func (m *MockClient) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *MockClient) rawFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Frames decodes everything sent to the client, in order. Room-list pushes
// decode too; their rooms payload is just dropped by the Frame envelope.
func (m *MockClient) Frames(t *testing.T) []*protocol.Frame {
	t.Helper()
	raw := m.rawFrames()
	frames := make([]*protocol.Frame, 0, len(raw))
	for _, data := range raw {
		var f protocol.Frame
		require.NoError(t, json.Unmarshal(data, &f))
		frames = append(frames, &f)
	}
	return frames
}

// FramesOfType filters the recorded traffic down to one frame type.
func (m *MockClient) FramesOfType(t *testing.T, ft protocol.FrameType) []*protocol.Frame {
	t.Helper()
	var out []*protocol.Frame
	for _, f := range m.Frames(t) {
		if f.Type == ft {
			out = append(out, f)
		}
	}
	return out
}

// LastFrameOfType returns the most recent frame of the given type, nil when
// none was sent.
func (m *MockClient) LastFrameOfType(t *testing.T, ft protocol.FrameType) *protocol.Frame {
	t.Helper()
	frames := m.FramesOfType(t, ft)
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

// RoomLists decodes every room-list push sent to the client, in order.
func (m *MockClient) RoomLists(t *testing.T) []*protocol.RoomListFrame {
	t.Helper()
	var out []*protocol.RoomListFrame
	for _, data := range m.rawFrames() {
		var probe struct {
			Type protocol.FrameType `json:"type"`
		}
		require.NoError(t, json.Unmarshal(data, &probe))
		if probe.Type != protocol.TypeRoomList {
			continue
		}
		var list protocol.RoomListFrame
		require.NoError(t, json.Unmarshal(data, &list))
		out = append(out, &list)
	}
	return out
}

// LastRoomList returns the most recent directory push, nil when none was
// sent.
func (m *MockClient) LastRoomList(t *testing.T) *protocol.RoomListFrame {
	t.Helper()
	lists := m.RoomLists(t)
	if len(lists) == 0 {
		return nil
	}
	return lists[len(lists)-1]
}
