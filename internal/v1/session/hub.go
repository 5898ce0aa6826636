// Package session implements the signaling coordinator at the center of the
// server: the room store, the connection registry, and the per-room two-slot
// state machine that pairs a broadcaster with a viewer.
//
// Hub Responsibilities:
//   - Registering connections and assigning them to rooms
//   - Room creation, key-checked admission, and capped inventory
//   - Routing handshake and chat frames between the two slots of a room
//   - Deferred cleanup of empty rooms with a join-cancelable grace period
//   - Pushing the public room directory to every connected client
//
// Concurrency Model:
// Every connection drives the hub from its own reader goroutine. State
// transitions (connect, disconnect, create, join, leave, cleanup expiry,
// shutdown) serialize on the hub's write lock; the relay path (offers,
// answers, candidates, chat) only takes read locks, so established pairs
// keep signaling while other rooms churn. Lock order is hub before room.
//
// The hub is a plain value constructed at startup and passed to the
// transport layer; there is no package-level state.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/auth"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/bus"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/config"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/logging"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/metrics"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/types"
)

// Hub owns all mutable signaling state: the connection registry, the room
// map, the pending cleanup timers, and the per-connection chat budgets.
// It implements types.Coordinator for the transport layer.
type Hub struct {
	mu sync.RWMutex

	clients map[types.ClientIdType]types.ClientInterface // Registry of live connections
	rooms   map[types.RoomIdType]*Room                   // Registry of active rooms by room ID

	pendingCleanups map[types.RoomIdType]*time.Timer     // Timers for delayed removal of empty rooms
	chatLimiters    map[types.ClientIdType]*rate.Limiter // Per-connection chat flood budgets

	maxRooms     int           // Hard cap on concurrent rooms
	cleanupGrace time.Duration // How long an empty room survives before deletion
	chatRate     rate.Limit    // Sustained chat messages per second per connection
	chatBurst    int           // Chat burst allowance per connection

	// Optional room event feed, nil in single-instance mode. Events are
	// queued on feedCh and drained in order by a single forwarder
	// goroutine, so publish latency never sits inside the hub lock.
	feed     *bus.Service
	feedCh   chan bus.RoomEvent
	feedDone chan struct{}

	closed bool // Set once by Shutdown; rejects late registrations
}

// NewHub creates a Hub from the validated configuration. The feed may be
// nil, which disables event publishing entirely. Zero-valued limits fall
// back to the documented defaults so tests can pass a minimal config.
func NewHub(cfg *config.Config, feed *bus.Service) *Hub {
	maxRooms := cfg.MaxRooms
	if maxRooms <= 0 {
		maxRooms = config.DefaultMaxRooms
	}
	cleanupGrace := cfg.CleanupGrace
	if cleanupGrace <= 0 {
		cleanupGrace = config.DefaultCleanupGrace
	}
	chatRate := cfg.ChatRatePerSec
	if chatRate <= 0 {
		chatRate = 5
	}
	chatBurst := cfg.ChatRateBurst
	if chatBurst <= 0 {
		chatBurst = 10
	}

	h := &Hub{
		clients:         make(map[types.ClientIdType]types.ClientInterface),
		rooms:           make(map[types.RoomIdType]*Room),
		pendingCleanups: make(map[types.RoomIdType]*time.Timer),
		chatLimiters:    make(map[types.ClientIdType]*rate.Limiter),
		maxRooms:        maxRooms,
		cleanupGrace:    cleanupGrace,
		chatRate:        rate.Limit(chatRate),
		chatBurst:       chatBurst,
		feed:            feed,
	}
	if feed != nil {
		h.feedCh = make(chan bus.RoomEvent, 256)
		h.feedDone = make(chan struct{})
		go h.forwardFeedEvents()
	}
	return h
}

// forwardFeedEvents drains the event queue into Redis, one event at a time,
// preserving the order state changes happened in. Runs until Shutdown closes
// the queue.
func (h *Hub) forwardFeedEvents() {
	defer close(h.feedDone)
	for event := range h.feedCh {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		// The feed logs its own failures and the breaker sheds sustained ones.
		_ = h.feed.PublishRoomEvent(ctx, event)
		cancel()
	}
}

// HandleClientConnect registers a freshly accepted connection and pushes the
// current room directory to it, so the lobby renders without a round trip.
func (h *Hub) HandleClientConnect(ctx context.Context, c types.ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		// Shutdown already ran; turn the connection away.
		c.Disconnect()
		return
	}

	h.clients[c.GetID()] = c
	h.chatLimiters[c.GetID()] = rate.NewLimiter(h.chatRate, h.chatBurst)

	h.sendRoomListLocked(ctx, c)

	logging.Info(ctx, "Client registered",
		zap.String("clientId", string(c.GetID())),
		zap.Int("clients", len(h.clients)))
}

// HandleClientDisconnect runs the idempotent leave path for a dead
// connection and drops it from the registry. The transport calls this
// exactly once per connection, from the reader's deferred cleanup.
func (h *Hub) HandleClientDisconnect(ctx context.Context, c types.ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.GetID()]; !ok {
		// Already deregistered by Shutdown.
		return
	}

	h.leaveLocked(ctx, c)
	delete(h.clients, c.GetID())
	delete(h.chatLimiters, c.GetID())

	logging.Info(ctx, "Client deregistered",
		zap.String("clientId", string(c.GetID())),
		zap.Int("clients", len(h.clients)))
}

// Shutdown stops every cleanup timer, deletes all rooms, and disconnects
// every client. Safe to call more than once.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}

	for id, timer := range h.pendingCleanups {
		timer.Stop()
		delete(h.pendingCleanups, id)
	}

	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		h.deleteRoomLocked(ctx, room)
	}

	// Set closed only after the deletions above so their feed events still
	// enqueue; anything that grabs the lock later publishes nothing.
	h.closed = true

	clients := make([]types.ClientInterface, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, id)
		delete(h.chatLimiters, id)
	}
	h.mu.Unlock()

	// Disconnect outside the lock: each close triggers the transport's
	// disconnect callback, which needs the lock and finds nothing to do.
	for _, c := range clients {
		c.SetRoomID("")
		c.SetRole(types.RoleTypeNone)
		c.Disconnect()
	}

	// Flush the event queue. No publisher can race the close: every
	// enqueue happens under the write lock and checks closed first.
	if h.feedCh != nil {
		close(h.feedCh)
		<-h.feedDone
	}

	logging.Info(ctx, "Hub shut down",
		zap.Int("roomsClosed", len(rooms)),
		zap.Int("clientsDisconnected", len(clients)))
	return nil
}

// --- Room store ---

// createRoomLocked allocates a room for the creator and seats them as
// broadcaster. Callers hold the hub write lock.
func (h *Hub) createRoomLocked(ctx context.Context, c types.ClientInterface, name, key string) (*Room, *AdmissionError) {
	if c.GetRoomID() != "" {
		return nil, ErrAlreadyInRoom
	}
	if len(h.rooms) >= h.maxRooms {
		return nil, ErrMaxRooms
	}

	room := newRoom(h.mintRoomIDLocked(), protocol.NormalizeRoomName(name), auth.DigestKey(key))
	h.rooms[room.ID] = room

	role, _ := room.claimSlot(c)
	c.SetRoomID(room.ID)
	c.SetRole(role)

	metrics.ActiveRooms.Inc()
	metrics.RoomParticipants.WithLabelValues(string(room.ID)).Set(1)

	logging.Info(ctx, "Room created",
		zap.String("roomId", string(room.ID)),
		zap.String("name", room.Name),
		zap.Int("rooms", len(h.rooms)))

	h.publishFeedEvent(bus.RoomEvent{
		Event:        bus.EventRoomCreated,
		RoomID:       string(room.ID),
		RoomName:     room.Name,
		Role:         string(role),
		Participants: 1,
	})
	return room, nil
}

// joinRoomLocked admits a client into an existing room. Callers hold the
// hub write lock. The order of checks is fixed: binding, existence, key,
// capacity.
func (h *Hub) joinRoomLocked(ctx context.Context, c types.ClientInterface, roomID, key string) (*Room, types.RoleType, *AdmissionError) {
	if c.GetRoomID() != "" {
		return nil, types.RoleTypeNone, ErrAlreadyInRoom
	}

	room, ok := h.rooms[types.RoomIdType(roomID)]
	if !ok {
		return nil, types.RoleTypeNone, ErrRoomNotFound
	}
	if !room.VerifyKey(key) {
		return nil, types.RoleTypeNone, ErrInvalidKey
	}

	role, ok := room.claimSlot(c)
	if !ok {
		return nil, types.RoleTypeNone, ErrRoomFull
	}
	c.SetRoomID(room.ID)
	c.SetRole(role)

	// A join into a room in its grace period revives it.
	h.cancelCleanupLocked(ctx, room.ID)

	metrics.RoomParticipants.WithLabelValues(string(room.ID)).Set(float64(room.Participants()))

	logging.Info(ctx, "Client joined room",
		zap.String("roomId", string(room.ID)),
		zap.String("role", string(role)))

	h.publishFeedEvent(bus.RoomEvent{
		Event:        bus.EventPeerJoined,
		RoomID:       string(room.ID),
		RoomName:     room.Name,
		Role:         string(role),
		Participants: room.Participants(),
	})
	return room, role, nil
}

// leaveLocked vacates the client's slot, notifies the counterpart, and arms
// the cleanup timer when the room empties. It reports whether any state
// changed, which makes repeated leaves harmless. Callers hold the hub write
// lock.
func (h *Hub) leaveLocked(ctx context.Context, c types.ClientInterface) bool {
	roomID := c.GetRoomID()
	if roomID == "" {
		return false
	}

	room, ok := h.rooms[roomID]
	if !ok {
		// The room vanished underneath the binding (shutdown or expiry);
		// just clear the back-reference.
		c.SetRoomID("")
		c.SetRole(types.RoleTypeNone)
		return false
	}

	role, released := room.releaseSlot(c)
	c.SetRoomID("")
	c.SetRole(types.RoleTypeNone)
	if !released {
		return false
	}

	// Tell the counterpart first so it can tear down its peer connection
	// before the directory update lands.
	switch role {
	case types.RoleTypeBroadcaster:
		if viewer := room.Viewer(); viewer != nil {
			h.sendFrame(ctx, viewer, &protocol.Frame{Type: protocol.TypeBroadcasterLeft})
		}
	case types.RoleTypeViewer:
		if broadcaster := room.Broadcaster(); broadcaster != nil {
			h.sendFrame(ctx, broadcaster, &protocol.Frame{
				Type:     protocol.TypeViewerLeft,
				ViewerID: string(c.GetID()),
			})
		}
	}

	metrics.RoomParticipants.WithLabelValues(string(room.ID)).Set(float64(room.Participants()))

	logging.Info(ctx, "Client left room",
		zap.String("roomId", string(room.ID)),
		zap.String("role", string(role)))

	h.publishFeedEvent(bus.RoomEvent{
		Event:        bus.EventPeerLeft,
		RoomID:       string(room.ID),
		RoomName:     room.Name,
		Role:         string(role),
		Participants: room.Participants(),
	})

	if room.IsEmpty() {
		h.scheduleCleanupLocked(ctx, room)
	}

	h.broadcastRoomListLocked(ctx)
	return true
}

// scheduleCleanupLocked arms the deferred deletion of an empty room. Any
// join before the deadline cancels it; a refresh-and-rejoin therefore keeps
// the room alive. Callers hold the hub write lock.
func (h *Hub) scheduleCleanupLocked(ctx context.Context, room *Room) {
	if h.closed {
		return
	}

	// Replace any timer already armed for this room.
	if existing, ok := h.pendingCleanups[room.ID]; ok {
		existing.Stop()
		delete(h.pendingCleanups, room.ID)
	}

	roomID := room.ID
	h.pendingCleanups[roomID] = time.AfterFunc(h.cleanupGrace, func() {
		h.expireRoom(roomID)
	})

	logging.Info(ctx, "Room empty, cleanup scheduled",
		zap.String("roomId", string(roomID)),
		zap.Duration("grace", h.cleanupGrace))

	h.publishFeedEvent(bus.RoomEvent{
		Event:    bus.EventRoomEmptied,
		RoomID:   string(roomID),
		RoomName: room.Name,
	})
}

// cancelCleanupLocked disarms a pending deletion, if one exists. Callers
// hold the hub write lock.
func (h *Hub) cancelCleanupLocked(ctx context.Context, roomID types.RoomIdType) {
	timer, ok := h.pendingCleanups[roomID]
	if !ok {
		return
	}
	timer.Stop()
	delete(h.pendingCleanups, roomID)
	logging.Info(ctx, "Cancelled pending room cleanup", zap.String("roomId", string(roomID)))
}

// expireRoom fires when a cleanup deadline passes. The timer may race a
// join that grabbed the hub lock first; the occupancy re-check below makes
// the stale fire a no-op.
func (h *Hub) expireRoom(roomID types.RoomIdType) {
	ctx := context.Background()

	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.pendingCleanups, roomID)

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if !room.IsEmpty() {
		logging.Info(ctx, "Skipping room cleanup, room is occupied again",
			zap.String("roomId", string(roomID)))
		return
	}

	h.deleteRoomLocked(ctx, room)
	h.broadcastRoomListLocked(ctx)
}

// deleteRoomLocked removes a room from the store and records its lifetime.
// Callers hold the hub write lock.
func (h *Hub) deleteRoomLocked(ctx context.Context, room *Room) {
	delete(h.rooms, room.ID)

	metrics.ActiveRooms.Dec()
	metrics.RoomParticipants.DeleteLabelValues(string(room.ID))
	metrics.RoomLifetime.Observe(time.Since(room.createdAt).Seconds())

	logging.Info(ctx, "Room removed",
		zap.String("roomId", string(room.ID)),
		zap.Int("rooms", len(h.rooms)))

	h.publishFeedEvent(bus.RoomEvent{
		Event:    bus.EventRoomDeleted,
		RoomID:   string(room.ID),
		RoomName: room.Name,
	})
}

// mintRoomIDLocked draws a fresh room identifier: "room-" plus 8 lowercase
// hex characters from 4 random bytes. Collisions are unlikely but cheap to
// re-roll under the lock.
func (h *Hub) mintRoomIDLocked() types.RoomIdType {
	for {
		var b [4]byte
		rand.Read(b[:]) // never fails per crypto/rand contract
		id := types.RoomIdType("room-" + hex.EncodeToString(b[:]))
		if _, exists := h.rooms[id]; !exists {
			return id
		}
	}
}

// roomFor resolves a client's room binding to the live room record, nil
// when the client is unbound or the room is gone.
func (h *Hub) roomFor(c types.ClientInterface) *Room {
	roomID := c.GetRoomID()
	if roomID == "" {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}
