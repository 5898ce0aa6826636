package session

import (
	"sync"
	"time"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/auth"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/types"
)

// Room pairs at most one broadcaster with at most one viewer behind a shared
// key. The room holds the key's digest, never the key itself; admission is
// checked by the hub before a slot is handed out.
//
// Slot Semantics:
// Each slot references a live connection owned by the transport layer. The
// room never closes a connection itself: when the transport reports a close,
// the hub clears whichever slot referenced it. A room whose slots are both
// empty is not deleted immediately; the hub keeps it alive for a grace
// period so a reconnecting client can reclaim it.
//
// Concurrency:
// The two slots are guarded by the room's own read-write mutex. State
// transitions (claim and release) run under the hub's write lock first, then
// this mutex, so the lock order is always hub before room. The relay path
// only ever takes the read side.
type Room struct {
	ID   types.RoomIdType // Opaque identifier, "room-" + 8 hex chars
	Name string           // Display name, bounded and trimmed at creation

	keyDigest auth.KeyDigest // SHA-256 of the admission key
	createdAt time.Time

	mu          sync.RWMutex
	broadcaster types.ClientInterface // Slot for the screen sharer
	viewer      types.ClientInterface // Slot for the watcher
}

// newRoom builds an empty room. The creator is seated by the hub afterwards
// so creation and the first claim stay one atomic transition.
func newRoom(id types.RoomIdType, name string, digest auth.KeyDigest) *Room {
	return &Room{
		ID:        id,
		Name:      name,
		keyDigest: digest,
		createdAt: time.Now(),
	}
}

// VerifyKey checks a presented admission key against the stored digest in
// constant time.
func (r *Room) VerifyKey(key string) bool {
	return r.keyDigest.Verify(key)
}

// claimSlot seats the client in the first empty slot, broadcaster first.
// A client that already holds a slot in this room is refused, so the same
// connection can never occupy both sides of the pairing.
func (r *Room) claimSlot(c types.ClientInterface) (types.RoleType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.broadcaster != nil && r.broadcaster.GetID() == c.GetID() {
		return types.RoleTypeNone, false
	}
	if r.viewer != nil && r.viewer.GetID() == c.GetID() {
		return types.RoleTypeNone, false
	}

	if r.broadcaster == nil {
		r.broadcaster = c
		return types.RoleTypeBroadcaster, true
	}
	if r.viewer == nil {
		r.viewer = c
		return types.RoleTypeViewer, true
	}
	return types.RoleTypeNone, false
}

// releaseSlot clears whichever slot references the client and reports which
// role was vacated. Releasing a client that holds no slot is a no-op, which
// makes the hub's leave path idempotent.
func (r *Room) releaseSlot(c types.ClientInterface) (types.RoleType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.broadcaster != nil && r.broadcaster.GetID() == c.GetID() {
		r.broadcaster = nil
		return types.RoleTypeBroadcaster, true
	}
	if r.viewer != nil && r.viewer.GetID() == c.GetID() {
		r.viewer = nil
		return types.RoleTypeViewer, true
	}
	return types.RoleTypeNone, false
}

// Broadcaster returns the current broadcaster slot occupant, nil when empty.
func (r *Room) Broadcaster() types.ClientInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.broadcaster
}

// Viewer returns the current viewer slot occupant, nil when empty.
func (r *Room) Viewer() types.ClientInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.viewer
}

// Counterpart returns the occupant of the slot opposite the given role, nil
// when that slot is empty or the role holds no slot.
func (r *Room) Counterpart(role types.RoleType) types.ClientInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch role {
	case types.RoleTypeBroadcaster:
		return r.viewer
	case types.RoleTypeViewer:
		return r.broadcaster
	default:
		return nil
	}
}

// Participants counts occupied slots, 0 to 2.
func (r *Room) Participants() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participantsLocked()
}

func (r *Room) participantsLocked() int {
	n := 0
	if r.broadcaster != nil {
		n++
	}
	if r.viewer != nil {
		n++
	}
	return n
}

// IsEmpty reports whether both slots are vacant.
func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.broadcaster == nil && r.viewer == nil
}

// IsFull reports whether both slots are taken.
func (r *Room) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.broadcaster != nil && r.viewer != nil
}

// Summary renders the room's public directory entry. It carries no secret
// material and no connection identifiers.
func (r *Room) Summary() protocol.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.participantsLocked()
	return protocol.RoomSummary{
		ID:           string(r.ID),
		Name:         r.Name,
		Participants: n,
		IsFull:       n == 2,
	}
}
