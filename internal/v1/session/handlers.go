package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/logging"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/metrics"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/types"
)

// Frame dispositions recorded per inbound frame. Handlers report how the
// frame ended up so the metrics distinguish healthy traffic from noise.
const (
	statusOK       = "ok"        // handled, any replies enqueued
	statusRejected = "rejected"  // admission failure, room-error sent
	statusDropped  = "dropped"   // precondition failed or counterpart absent
	statusInvalid  = "malformed" // unknown frame type
)

// Route dispatches one decoded inbound frame. The vocabulary is closed:
// every known type has a case here and anything else lands in the
// malformed path, logged and dropped without touching the connection.
//
// Counterpart notifications and directory updates triggered by a frame are
// enqueued before Route returns, so a single connection observes its own
// causality in order.
func (h *Hub) Route(ctx context.Context, c types.ClientInterface, frame *protocol.Frame) {
	start := time.Now()
	var status string

	switch frame.Type {
	case protocol.TypePing:
		status = h.handlePing(ctx, c)
	case protocol.TypeCreateRoom:
		status = h.handleCreateRoom(ctx, c, frame)
	case protocol.TypeJoinRoom:
		status = h.handleJoinRoom(ctx, c, frame)
	case protocol.TypeLeaveRoom:
		status = h.handleLeaveRoom(ctx, c)
	case protocol.TypeGetRoomList:
		status = h.handleGetRoomList(ctx, c)
	case protocol.TypeBroadcasterReady:
		status = h.handleBroadcasterReady(ctx, c)
	case protocol.TypeViewerJoin:
		status = h.handleViewerJoin(ctx, c)
	case protocol.TypeOffer:
		status = h.handleOffer(ctx, c, frame)
	case protocol.TypeAnswer:
		status = h.handleAnswer(ctx, c, frame)
	case protocol.TypeIceCandidate:
		status = h.handleIceCandidate(ctx, c, frame)
	case protocol.TypeChatMessage:
		status = h.handleChatMessage(ctx, c, frame)
	default:
		logging.Warn(ctx, "Discarding frame of unknown type",
			zap.String("type", string(frame.Type)),
			zap.String("clientId", string(c.GetID())))
		status = statusInvalid
	}

	metrics.FramesProcessed.WithLabelValues(string(frame.Type), status).Inc()
	metrics.FrameHandlingDuration.WithLabelValues(string(frame.Type)).Observe(time.Since(start).Seconds())
}

// handlePing answers the application-level keep-alive. The server enforces
// no liveness of its own; clients reconnect when pongs stop arriving.
func (h *Hub) handlePing(ctx context.Context, c types.ClientInterface) string {
	h.sendFrame(ctx, c, &protocol.Frame{Type: protocol.TypePong})
	return statusOK
}

// handleCreateRoom allocates a room and seats the creator as broadcaster.
func (h *Hub) handleCreateRoom(ctx context.Context, c types.ClientInterface, frame *protocol.Frame) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, admErr := h.createRoomLocked(ctx, c, frame.Name, frame.Key)
	if admErr != nil {
		h.sendRoomError(ctx, c, admErr)
		return statusRejected
	}

	h.sendFrame(ctx, c, &protocol.Frame{
		Type:   protocol.TypeRoomCreated,
		RoomID: string(room.ID),
		Name:   room.Name,
		Role:   string(types.RoleTypeBroadcaster),
	})

	h.broadcastRoomListLocked(ctx)
	return statusOK
}

// handleJoinRoom admits the sender into an existing room and tells the
// counterpart, if any, that its peer arrived.
func (h *Hub) handleJoinRoom(ctx context.Context, c types.ClientInterface, frame *protocol.Frame) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, role, admErr := h.joinRoomLocked(ctx, c, frame.RoomID, frame.Key)
	if admErr != nil {
		h.sendRoomError(ctx, c, admErr)
		return statusRejected
	}

	h.sendFrame(ctx, c, &protocol.Frame{
		Type:   protocol.TypeRoomJoined,
		RoomID: string(room.ID),
		Name:   room.Name,
		Role:   string(role),
	})

	// A joining viewer wakes the broadcaster's offer path; a joining
	// broadcaster tells the waiting viewer the stream is coming.
	switch role {
	case types.RoleTypeViewer:
		if broadcaster := room.Broadcaster(); broadcaster != nil {
			h.sendFrame(ctx, broadcaster, &protocol.Frame{
				Type:     protocol.TypeViewerJoined,
				ViewerID: string(c.GetID()),
			})
		}
	case types.RoleTypeBroadcaster:
		if viewer := room.Viewer(); viewer != nil {
			h.sendFrame(ctx, viewer, &protocol.Frame{Type: protocol.TypeBroadcasterAvailable})
		}
	}

	h.broadcastRoomListLocked(ctx)
	return statusOK
}

// handleLeaveRoom runs the shared leave path and acknowledges the request.
// The ack is sent even when the sender was not in a room; the state change
// itself happens at most once.
func (h *Hub) handleLeaveRoom(ctx context.Context, c types.ClientInterface) string {
	h.mu.Lock()
	h.leaveLocked(ctx, c)
	h.mu.Unlock()

	h.sendFrame(ctx, c, &protocol.Frame{Type: protocol.TypeRoomLeft})
	return statusOK
}

// handleGetRoomList answers an explicit directory request from one client.
func (h *Hub) handleGetRoomList(ctx context.Context, c types.ClientInterface) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.sendRoomListLocked(ctx, c)
	return statusOK
}

// handleChatMessage relays a bounded text message to the opposite slot as a
// chat-broadcast. The sender's role is taken from its slot, never from the
// frame, and the server stamps the time.
func (h *Hub) handleChatMessage(ctx context.Context, c types.ClientInterface, frame *protocol.Frame) string {
	role := c.GetRole()
	if role != types.RoleTypeBroadcaster && role != types.RoleTypeViewer {
		logging.Warn(ctx, "Discarding chat from unbound client",
			zap.String("clientId", string(c.GetID())))
		return statusDropped
	}

	if err := protocol.ValidateChat(frame.Message); err != nil {
		logging.Warn(ctx, "Discarding invalid chat message",
			zap.String("clientId", string(c.GetID())), zap.Error(err))
		return statusDropped
	}

	if !h.allowChat(c.GetID()) {
		logging.Warn(ctx, "Chat rate limit exceeded, dropping message",
			zap.String("clientId", string(c.GetID())))
		metrics.RateLimitExceeded.WithLabelValues("chat").Inc()
		return statusDropped
	}

	room := h.roomFor(c)
	if room == nil {
		return statusDropped
	}
	peer := room.Counterpart(role)
	if peer == nil {
		// Nobody on the other side yet; chat has no backlog.
		return statusDropped
	}

	h.sendFrame(ctx, peer, &protocol.Frame{
		Type:      protocol.TypeChatBroadcast,
		Sender:    string(role),
		Message:   frame.Message,
		Timestamp: time.Now().UnixMilli(),
	})
	metrics.ChatMessagesRelayed.Inc()
	return statusOK
}
