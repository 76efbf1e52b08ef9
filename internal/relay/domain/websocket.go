package domain

// Action websocket request action
type Action string

const (
	// JoinRoom websocket action join_room
	JoinRoom Action = "join_room"
	// ExitRoom websocket action exit_room
	ExitRoom Action = "exit_room"
	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// DestroyRoom websocket action destroy_room
	DestroyRoom Action = "destroy_room"
	// GetOccupancy websocket action get_occupancy
	GetOccupancy Action = "get_occupancy"

	// NotifyEvent server push carrying a fan-out event
	NotifyEvent Action = "notify_event"
)

// WSRequest websocket Request
type WSRequest struct {
	Action   string `json:"action"`
	RoomCode string `json:"room_code"`
	Kind     string `json:"kind"`
	Content  string `json:"content"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
