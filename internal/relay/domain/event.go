package domain

import "time"

// EventKind definition fan-out event kind
type EventKind string

const (
	// EventMessageInserted a message row was committed for the room
	EventMessageInserted EventKind = "message_inserted"
	// EventRoomDestroyed the room was torn down, subscribers must leave
	EventRoomDestroyed EventKind = "room_destroyed"
	// EventPresenceSync the live subscriber set changed, carries the full set
	EventPresenceSync EventKind = "presence_sync"
)

// PresenceEntry one live connection in a room. Ephemeral, never stored
// with messages.
type PresenceEntry struct {
	ID       string    `json:"id"`
	OnlineAt time.Time `json:"online_at"`
}

// Event envelope carried on a room channel. Delivery is at-most-once with
// no ordering guarantee; lost events are not redelivered.
type Event struct {
	Kind     EventKind       `json:"kind"`
	RoomCode string          `json:"room_code"`
	Message  *Message        `json:"message,omitempty"`
	Presence []PresenceEntry `json:"presence,omitempty"`
}

// Occupancy count of live presence entries in a presence_sync event.
func (e *Event) Occupancy() int {
	return len(e.Presence)
}
