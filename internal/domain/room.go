package domain

type RoomID string

// StartRoomTag marks the room every fresh registration lands in.
// The room is created lazily on first use.
const StartRoomTag = "NewUsers"

type Room struct {
	ID   RoomID `json:"id"`
	Type string `json:"type"`
	Tag  string `json:"tag,omitempty"`
	Name string `json:"name"`
}
