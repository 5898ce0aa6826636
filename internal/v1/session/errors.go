package session

import (
	"fmt"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/protocol"
)

// AdmissionError rejects a create-room or join-room attempt. It crosses the
// coordinator boundary as a room-error frame carrying a stable code and a
// display message; the connection itself stays open.
type AdmissionError struct {
	Code    protocol.ErrorCode
	Message string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// The five admission failures. The messages are shown verbatim in client
// UIs, so they stay short and never mention the submitted key.
var (
	ErrRoomNotFound  = &AdmissionError{Code: protocol.CodeRoomNotFound, Message: "Room not found."}
	ErrInvalidKey    = &AdmissionError{Code: protocol.CodeInvalidKey, Message: "Incorrect room key."}
	ErrRoomFull      = &AdmissionError{Code: protocol.CodeRoomFull, Message: "Room is full."}
	ErrMaxRooms      = &AdmissionError{Code: protocol.CodeMaxRooms, Message: "Maximum number of rooms reached."}
	ErrAlreadyInRoom = &AdmissionError{Code: protocol.CodeAlreadyInRoom, Message: "Already in a room."}
)
