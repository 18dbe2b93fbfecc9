/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

// Transport delivers named events to connected participants. Emits must not
// block; a room calls them from its own goroutine.
type Transport interface {
	JoinChannel(participantID, roomKey string)
	LeaveChannel(participantID, roomKey string)
	EmitToParticipant(participantID, event string, payload any)
	EmitToRoom(roomKey, event string, payload any)
	EmitToRoomExcept(roomKey, excludedID, event string, payload any)
}

// Participant is one connection inside a room.
type Participant struct {
	ID      string `json:"id"`
	Handle  string `json:"pseudo"`
	Captain bool   `json:"captain,omitempty"`
}
