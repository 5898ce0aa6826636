package transport

import (
	"context"
	"sync"
	"time"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/types"
)

// MockCoordinator implements types.Coordinator
type MockCoordinator struct {
	mu              sync.Mutex
	connectCalls    int
	disconnectCalls int
	routeCalls      int
	lastFrame       *protocol.Frame
}

func (m *MockCoordinator) HandleClientConnect(_ context.Context, _ types.ClientInterface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
}

func (m *MockCoordinator) HandleClientDisconnect(_ context.Context, _ types.ClientInterface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectCalls++
}

func (m *MockCoordinator) Route(_ context.Context, _ types.ClientInterface, frame *protocol.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routeCalls++
	m.lastFrame = frame
}

func (m *MockCoordinator) RouteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routeCalls
}

func (m *MockCoordinator) DisconnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnectCalls
}

func (m *MockCoordinator) LastFrame() *protocol.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFrame
}

// MockConnection implements wsConnection
type MockConnection struct {
	ReadMessageFunc  func() (int, []byte, error)
	WriteMessageFunc func(int, []byte) error
	CloseFunc        func() error
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	if m.ReadMessageFunc != nil {
		return m.ReadMessageFunc()
	}
	return 0, nil, nil
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	if m.WriteMessageFunc != nil {
		return m.WriteMessageFunc(messageType, data)
	}
	return nil
}

func (m *MockConnection) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockConnection) SetWriteDeadline(_ time.Time) error {
	return nil
}
