// Package protocol defines the JSON frame vocabulary spoken over the
// signaling WebSocket. The vocabulary is closed: every frame is a tagged
// object whose "type" field selects which of the remaining fields are
// meaningful. Anything outside the vocabulary is discarded by the caller.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FrameType tags a wire frame.
type FrameType string

// Client → server frame types.
const (
	TypePing             FrameType = "ping"
	TypeCreateRoom       FrameType = "create-room"
	TypeJoinRoom         FrameType = "join-room"
	TypeLeaveRoom        FrameType = "leave-room"
	TypeGetRoomList      FrameType = "get-room-list"
	TypeBroadcasterReady FrameType = "broadcaster-ready"
	TypeViewerJoin       FrameType = "viewer-join"
	TypeChatMessage      FrameType = "chat-message"
)

// Server → client frame types.
const (
	TypePong                 FrameType = "pong"
	TypeRoomCreated          FrameType = "room-created"
	TypeRoomJoined           FrameType = "room-joined"
	TypeRoomLeft             FrameType = "room-left"
	TypeRoomError            FrameType = "room-error"
	TypeRoomList             FrameType = "room-list"
	TypeViewerJoined         FrameType = "viewer-joined"
	TypeViewerLeft           FrameType = "viewer-left"
	TypeBroadcasterAvailable FrameType = "broadcaster-available"
	TypeBroadcasterLeft      FrameType = "broadcaster-left"
	TypeNoBroadcaster        FrameType = "no-broadcaster"
	TypeChatBroadcast        FrameType = "chat-broadcast"
)

// Signaling frame types, relayed in both directions.
const (
	TypeOffer        FrameType = "offer"
	TypeAnswer       FrameType = "answer"
	TypeIceCandidate FrameType = "ice-candidate"
)

// ErrorCode enumerates the admission failure codes carried by room-error.
type ErrorCode string

const (
	CodeRoomNotFound  ErrorCode = "ROOM_NOT_FOUND"
	CodeInvalidKey    ErrorCode = "INVALID_KEY"
	CodeRoomFull      ErrorCode = "ROOM_FULL"
	CodeMaxRooms      ErrorCode = "MAX_ROOMS"
	CodeAlreadyInRoom ErrorCode = "ALREADY_IN_ROOM"
)

// MaxChatLength bounds a single chat message, in bytes.
const MaxChatLength = 1000

// MaxRoomNameLength bounds a room's display name, in runes.
const MaxRoomNameLength = 64

// Frame is the wire envelope. One frame travels per WebSocket text message.
// Offer, Answer and Candidate are opaque WebRTC payloads: the server relays
// their bytes untouched and never inspects them.
//
// Key is only ever read on inbound frames; the server never echoes it.
type Frame struct {
	Type      FrameType       `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	Name      string          `json:"name,omitempty"`
	Key       string          `json:"key,omitempty"`
	Role      string          `json:"role,omitempty"`
	ViewerID  string          `json:"viewerId,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Message   string          `json:"message,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Code      ErrorCode       `json:"code,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// RoomSummary is one entry of the public room directory.
type RoomSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Participants int    `json:"participants"`
	IsFull       bool   `json:"isFull"`
}

// RoomListFrame is the directory push. Rooms always serializes as a JSON
// array, [] when no rooms exist, so it gets its own envelope without
// omitempty.
type RoomListFrame struct {
	Type  FrameType     `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

// NewRoomList builds a directory frame from a snapshot, normalising a nil
// slice to an empty array.
func NewRoomList(rooms []RoomSummary) *RoomListFrame {
	if rooms == nil {
		rooms = []RoomSummary{}
	}
	return &RoomListFrame{Type: TypeRoomList, Rooms: rooms}
}

// ErrMissingType reports an inbound object without a type tag.
var ErrMissingType = errors.New("frame has no type tag")

// Decode parses one inbound text message into a Frame. Malformed JSON and
// untagged objects are errors; callers log and drop such frames without
// touching the connection.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if f.Type == "" {
		return nil, ErrMissingType
	}
	return &f, nil
}

// ValidateChat rejects empty and oversize chat messages before relay.
func ValidateChat(message string) error {
	if len(message) == 0 {
		return errors.New("chat message cannot be empty")
	}
	if len(message) > MaxChatLength {
		return fmt.Errorf("chat message cannot exceed %d bytes", MaxChatLength)
	}
	return nil
}

// NormalizeRoomName trims surrounding whitespace and truncates the name to
// MaxRoomNameLength runes. Names are display-only and never required.
func NormalizeRoomName(name string) string {
	name = strings.TrimSpace(name)
	runes := []rune(name)
	if len(runes) > MaxRoomNameLength {
		return string(runes[:MaxRoomNameLength])
	}
	return name
}
