package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/config"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
)

func TestChat_BroadcasterToViewer(t *testing.T) {
	h := newTestHub()
	broadcaster, viewer, _ := pairedRoom(t, h)

	before := time.Now().UnixMilli()
	h.Route(context.Background(), broadcaster, &protocol.Frame{
		Type:    protocol.TypeChatMessage,
		Message: "hello from the stream",
	})
	after := time.Now().UnixMilli()

	relayed := viewer.LastFrameOfType(t, protocol.TypeChatBroadcast)
	require.NotNil(t, relayed)
	assert.Equal(t, "hello from the stream", relayed.Message)
	assert.Equal(t, "broadcaster", relayed.Sender)
	assert.GreaterOrEqual(t, relayed.Timestamp, before)
	assert.LessOrEqual(t, relayed.Timestamp, after)

	// Chat is not echoed to the sender.
	assert.Equal(t, 0, broadcaster.SentCount())
}

func TestChat_ViewerToBroadcaster(t *testing.T) {
	h := newTestHub()
	broadcaster, viewer, _ := pairedRoom(t, h)

	h.Route(context.Background(), viewer, &protocol.Frame{
		Type:    protocol.TypeChatMessage,
		Message: "looks great 🎬",
	})

	relayed := broadcaster.LastFrameOfType(t, protocol.TypeChatBroadcast)
	require.NotNil(t, relayed)
	assert.Equal(t, "looks great 🎬", relayed.Message, "text passes through verbatim")
	assert.Equal(t, "viewer", relayed.Sender)
}

func TestChat_SenderComesFromSlotNotFrame(t *testing.T) {
	h := newTestHub()
	broadcaster, viewer, _ := pairedRoom(t, h)

	// A viewer claiming to be the broadcaster is still stamped as viewer.
	h.Route(context.Background(), viewer, &protocol.Frame{
		Type:    protocol.TypeChatMessage,
		Message: "trust me",
		Sender:  "broadcaster",
	})

	relayed := broadcaster.LastFrameOfType(t, protocol.TypeChatBroadcast)
	require.NotNil(t, relayed)
	assert.Equal(t, "viewer", relayed.Sender)
}

func TestChat_EmptyDropped(t *testing.T) {
	h := newTestHub()
	_, viewer, _ := pairedRoom(t, h)

	h.Route(context.Background(), viewer, &protocol.Frame{
		Type:    protocol.TypeChatMessage,
		Message: "",
	})

	assertNoChat(t, h)
}

func TestChat_OversizeDropped(t *testing.T) {
	h := newTestHub()
	broadcaster, viewer, _ := pairedRoom(t, h)

	h.Route(context.Background(), viewer, &protocol.Frame{
		Type:    protocol.TypeChatMessage,
		Message: strings.Repeat("a", protocol.MaxChatLength+1),
	})

	assert.Equal(t, 0, broadcaster.SentCount())
	assert.Equal(t, 0, viewer.SentCount(), "no error frame for dropped chat")
}

func TestChat_AtLimitRelayed(t *testing.T) {
	h := newTestHub()
	broadcaster, viewer, _ := pairedRoom(t, h)

	msg := strings.Repeat("a", protocol.MaxChatLength)
	h.Route(context.Background(), viewer, &protocol.Frame{
		Type:    protocol.TypeChatMessage,
		Message: msg,
	})

	relayed := broadcaster.LastFrameOfType(t, protocol.TypeChatBroadcast)
	require.NotNil(t, relayed)
	assert.Equal(t, msg, relayed.Message)
}

func TestChat_UnboundDropped(t *testing.T) {
	h := newTestHub()
	broadcaster, viewer, _ := pairedRoom(t, h)

	stray := NewMockClient("client-9")
	connect(h, stray)
	stray.Reset()

	h.Route(context.Background(), stray, &protocol.Frame{
		Type:    protocol.TypeChatMessage,
		Message: "can anyone hear me",
	})

	assert.Equal(t, 0, broadcaster.SentCount())
	assert.Equal(t, 0, viewer.SentCount())
	assert.Equal(t, 0, stray.SentCount())
}

func TestChat_NoCounterpartDropped(t *testing.T) {
	h := newTestHub()
	broadcaster := NewMockClient("client-1")
	connect(h, broadcaster)
	createTestRoom(t, h, broadcaster, "movie", "hunter2")
	broadcaster.Reset()

	h.Route(context.Background(), broadcaster, &protocol.Frame{
		Type:    protocol.TypeChatMessage,
		Message: "anyone there?",
	})

	assert.Equal(t, 0, broadcaster.SentCount(), "chat has no backlog, message is gone")
}

func TestChat_RateLimited(t *testing.T) {
	h := NewHub(&config.Config{ChatRatePerSec: 1, ChatRateBurst: 2}, nil)
	broadcaster, viewer, _ := pairedRoom(t, h)

	for i := 0; i < 5; i++ {
		h.Route(context.Background(), viewer, &protocol.Frame{
			Type:    protocol.TypeChatMessage,
			Message: "spam",
		})
	}

	// The burst allowance passes two messages, the rest are shed.
	assert.Len(t, broadcaster.FramesOfType(t, protocol.TypeChatBroadcast), 2)
	assert.Equal(t, 0, viewer.SentCount(), "shedding is silent")
}

func TestChat_LimitIsPerConnection(t *testing.T) {
	h := NewHub(&config.Config{ChatRatePerSec: 1, ChatRateBurst: 1}, nil)
	broadcaster, viewer, _ := pairedRoom(t, h)

	// Each side has its own budget; exhausting the viewer's does not
	// touch the broadcaster's.
	h.Route(context.Background(), viewer, &protocol.Frame{
		Type: protocol.TypeChatMessage, Message: "one",
	})
	h.Route(context.Background(), viewer, &protocol.Frame{
		Type: protocol.TypeChatMessage, Message: "two",
	})
	h.Route(context.Background(), broadcaster, &protocol.Frame{
		Type: protocol.TypeChatMessage, Message: "three",
	})

	assert.Len(t, broadcaster.FramesOfType(t, protocol.TypeChatBroadcast), 1)
	assert.Len(t, viewer.FramesOfType(t, protocol.TypeChatBroadcast), 1)
}

// assertNoChat fails if any connected client received a chat-broadcast.
func assertNoChat(t *testing.T, h *Hub) {
	t.Helper()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		mock, ok := c.(*MockClient)
		if !ok {
			continue
		}
		assert.Empty(t, mock.FramesOfType(t, protocol.TypeChatBroadcast))
	}
}
