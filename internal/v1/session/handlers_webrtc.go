package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/logging"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/metrics"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/types"
)

// --- WebRTC Signaling Relay ---
//
// The server never parses SDP or candidate payloads; it moves them between
// the two slots of a room and normalises addressing on the way through.
// Toward the viewer the viewerId field is stripped (there is only one
// possible sender), toward the broadcaster the sender's connection id is
// inserted so the broadcaster can address the reply.
//
// Relay is intentionally lossy: a frame whose counterpart slot is empty is
// dropped without notice, because retry is owned by the peer-media layer on
// the clients.

// handleOffer relays a session description from the broadcaster to the
// viewer.
func (h *Hub) handleOffer(ctx context.Context, c types.ClientInterface, frame *protocol.Frame) string {
	if c.GetRole() != types.RoleTypeBroadcaster {
		logging.Warn(ctx, "Discarding offer from non-broadcaster",
			zap.String("clientId", string(c.GetID())),
			zap.String("role", string(c.GetRole())))
		return statusDropped
	}

	room := h.roomFor(c)
	if room == nil {
		return statusDropped
	}
	viewer := room.Viewer()
	if viewer == nil {
		logging.GetLogger().Debug("Dropping offer, viewer slot empty", zap.String("roomId", string(room.ID)))
		return statusDropped
	}

	h.sendFrame(ctx, viewer, &protocol.Frame{
		Type:  protocol.TypeOffer,
		Offer: frame.Offer,
	})
	metrics.SignalsRelayed.WithLabelValues(string(protocol.TypeOffer)).Inc()
	return statusOK
}

// handleAnswer relays a session description from the viewer back to the
// broadcaster, stamped with the viewer's connection id.
func (h *Hub) handleAnswer(ctx context.Context, c types.ClientInterface, frame *protocol.Frame) string {
	if c.GetRole() != types.RoleTypeViewer {
		logging.Warn(ctx, "Discarding answer from non-viewer",
			zap.String("clientId", string(c.GetID())),
			zap.String("role", string(c.GetRole())))
		return statusDropped
	}

	room := h.roomFor(c)
	if room == nil {
		return statusDropped
	}
	broadcaster := room.Broadcaster()
	if broadcaster == nil {
		logging.GetLogger().Debug("Dropping answer, broadcaster slot empty", zap.String("roomId", string(room.ID)))
		return statusDropped
	}

	h.sendFrame(ctx, broadcaster, &protocol.Frame{
		Type:     protocol.TypeAnswer,
		ViewerID: string(c.GetID()),
		Answer:   frame.Answer,
	})
	metrics.SignalsRelayed.WithLabelValues(string(protocol.TypeAnswer)).Inc()
	return statusOK
}

// handleIceCandidate relays a trickle-ice candidate to the opposite slot.
// Candidates flow in both directions and may arrive many times while the
// peers probe network paths.
func (h *Hub) handleIceCandidate(ctx context.Context, c types.ClientInterface, frame *protocol.Frame) string {
	role := c.GetRole()
	if role != types.RoleTypeBroadcaster && role != types.RoleTypeViewer {
		logging.Warn(ctx, "Discarding candidate from unbound client",
			zap.String("clientId", string(c.GetID())))
		return statusDropped
	}

	room := h.roomFor(c)
	if room == nil {
		return statusDropped
	}
	peer := room.Counterpart(role)
	if peer == nil {
		logging.GetLogger().Debug("Dropping candidate, counterpart slot empty", zap.String("roomId", string(room.ID)))
		return statusDropped
	}

	out := &protocol.Frame{
		Type:      protocol.TypeIceCandidate,
		Candidate: frame.Candidate,
	}
	// Candidates headed for the broadcaster carry the sender's id so the
	// broadcaster can route them to the right peer connection; toward the
	// viewer the field is dropped.
	if role == types.RoleTypeViewer {
		out.ViewerID = string(c.GetID())
	}

	h.sendFrame(ctx, peer, out)
	metrics.SignalsRelayed.WithLabelValues(string(protocol.TypeIceCandidate)).Inc()
	return statusOK
}

// --- Handshake Recovery ---
//
// broadcaster-ready and viewer-join let either side re-drive the handshake
// after a reload or reconnect. Both are idempotent: the server re-emits the
// notification every time the precondition holds.

// handleBroadcasterReady re-notifies a restarted broadcaster about the
// viewer already waiting in its room, prompting a fresh offer.
func (h *Hub) handleBroadcasterReady(ctx context.Context, c types.ClientInterface) string {
	if c.GetRole() != types.RoleTypeBroadcaster {
		logging.Warn(ctx, "Discarding broadcaster-ready from non-broadcaster",
			zap.String("clientId", string(c.GetID())),
			zap.String("role", string(c.GetRole())))
		return statusDropped
	}

	room := h.roomFor(c)
	if room == nil {
		return statusDropped
	}

	if viewer := room.Viewer(); viewer != nil {
		h.sendFrame(ctx, c, &protocol.Frame{
			Type:     protocol.TypeViewerJoined,
			ViewerID: string(viewer.GetID()),
		})
	}
	return statusOK
}

// handleViewerJoin announces a (re)joined viewer to the broadcaster, or
// tells the viewer nobody is streaming yet.
func (h *Hub) handleViewerJoin(ctx context.Context, c types.ClientInterface) string {
	if c.GetRole() != types.RoleTypeViewer {
		logging.Warn(ctx, "Discarding viewer-join from non-viewer",
			zap.String("clientId", string(c.GetID())),
			zap.String("role", string(c.GetRole())))
		return statusDropped
	}

	room := h.roomFor(c)
	if room == nil {
		return statusDropped
	}

	broadcaster := room.Broadcaster()
	if broadcaster == nil {
		h.sendFrame(ctx, c, &protocol.Frame{Type: protocol.TypeNoBroadcaster})
		return statusOK
	}

	h.sendFrame(ctx, broadcaster, &protocol.Frame{
		Type:     protocol.TypeViewerJoined,
		ViewerID: string(c.GetID()),
	})
	return statusOK
}
