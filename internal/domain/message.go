package domain

// MessageTimeLayout is the stamp format clients render verbatim.
const MessageTimeLayout = "2006-01-02 15:04:05"

type MessageID string

type Message struct {
	ID     MessageID `json:"id"`
	RoomID RoomID    `json:"roomID"`
	UserID UserID    `json:"userID"`
	Body   string    `json:"body"`
	Time   string    `json:"time"`
	Status string    `json:"status"`
}

// ReadCount tracks the highest message index a user has read in a room.
type ReadCount struct {
	MaxCount int `json:"maxCount"`
}
