package session

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/bus"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/logging"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/metrics"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/types"
)

// sendFrame marshals one outbound frame and enqueues it on the client's
// send buffer. Delivery is best effort: a full buffer drops the frame and
// the client's own close path handles the rest.
func (h *Hub) sendFrame(ctx context.Context, c types.ClientInterface, frame *protocol.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		logging.Error(ctx, "Failed to marshal outbound frame",
			zap.String("type", string(frame.Type)), zap.Error(err))
		return
	}
	c.Send(data)
}

// sendRoomError answers a rejected create or join. The connection stays
// open; the client clears its room context and returns to the lobby.
func (h *Hub) sendRoomError(ctx context.Context, c types.ClientInterface, admErr *AdmissionError) {
	metrics.AdmissionFailures.WithLabelValues(string(admErr.Code)).Inc()

	logging.Warn(ctx, "Admission rejected",
		zap.String("clientId", string(c.GetID())),
		zap.String("code", string(admErr.Code)))

	h.sendFrame(ctx, c, &protocol.Frame{
		Type:  protocol.TypeRoomError,
		Code:  admErr.Code,
		Error: admErr.Message,
	})
}

// snapshotLocked renders the public directory entry for every room, oldest
// room first so the lobby ordering is stable across pushes. Callers hold
// the hub lock in either mode.
func (h *Hub) snapshotLocked() []protocol.RoomSummary {
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].createdAt.Equal(rooms[j].createdAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].createdAt.Before(rooms[j].createdAt)
	})

	summaries := make([]protocol.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, room.Summary())
	}
	return summaries
}

// sendRoomListLocked pushes the current directory to a single client.
// Callers hold the hub lock in either mode.
func (h *Hub) sendRoomListLocked(ctx context.Context, c types.ClientInterface) {
	data, err := json.Marshal(protocol.NewRoomList(h.snapshotLocked()))
	if err != nil {
		logging.Error(ctx, "Failed to marshal room list", zap.Error(err))
		return
	}
	c.Send(data)
}

// broadcastRoomListLocked pushes the current directory to every connected
// client, in rooms or not. Sends never block; a slow client just misses
// this push and catches up on the next one. Callers hold the hub write
// lock.
func (h *Hub) broadcastRoomListLocked(ctx context.Context) {
	data, err := json.Marshal(protocol.NewRoomList(h.snapshotLocked()))
	if err != nil {
		logging.Error(ctx, "Failed to marshal room list", zap.Error(err))
		return
	}
	for _, c := range h.clients {
		c.Send(data)
	}
}

// publishFeedEvent queues a lifecycle event for the feed forwarder. The
// enqueue never blocks: when the queue is full the event is shed and
// counted, because the feed is telemetry and signaling must not wait on it.
// Callers hold the hub write lock, which is what makes the closed check
// race-free against Shutdown closing the queue.
func (h *Hub) publishFeedEvent(event bus.RoomEvent) {
	if h.feedCh == nil || h.closed {
		return
	}
	event.Timestamp = time.Now().UnixMilli()
	select {
	case h.feedCh <- event:
	default:
		metrics.FeedEventsDropped.Inc()
		logging.GetLogger().Warn("Feed queue full, dropping room event",
			zap.String("event", event.Event),
			zap.String("roomId", event.RoomID))
	}
}

// allowChat consumes one token from the client's chat budget and reports
// whether the message may be relayed. Unregistered clients pass; they are
// rejected upstream by the binding check.
func (h *Hub) allowChat(id types.ClientIdType) bool {
	h.mu.RLock()
	limiter := h.chatLimiters[id]
	h.mu.RUnlock()

	if limiter == nil {
		return true
	}
	return limiter.Allow()
}
