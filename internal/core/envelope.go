package core

import "encoding/json"

// Envelope types exchanged over the wire. Every frame is one JSON
// envelope: a client method call, a server response, or a server push
// (a method call the client never answers).
const (
	TypeMethodCall = "methodCall"
	TypeResponse   = "response"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIVersion is stamped on every response envelope.
const APIVersion = "1.1"

// MessageID is the client-chosen correlation id. Clients send numbers
// or strings; the raw token is kept and echoed back unchanged.
type MessageID struct {
	raw json.RawMessage
}

func (id *MessageID) UnmarshalJSON(b []byte) error {
	id.raw = append(id.raw[:0], b...)
	return nil
}

func (id MessageID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("0"), nil
	}
	return id.raw, nil
}

// String returns the id without JSON quoting, for logs and comparisons.
func (id MessageID) String() string {
	var s string
	if err := json.Unmarshal(id.raw, &s); err == nil {
		return s
	}
	return string(id.raw)
}

// Envelope is the inbound frame shape. Args stay raw so each handler
// decodes its own argument struct; a missing args object is normalized
// to an empty one before dispatch.
type Envelope struct {
	Type      string       `json:"type"`
	MessageID MessageID    `json:"messageID"`
	Data      EnvelopeData `json:"data"`
}

type EnvelopeData struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args"`
}

// Response is the outbound answer to one method call, correlated by
// echoing the originating request's messageID in ResponseTo.
type Response struct {
	Type       string       `json:"type"`
	APIVersion string       `json:"ApiVersion"`
	Data       ResponseData `json:"data"`
}

type ResponseData struct {
	Status      string      `json:"status"`
	Return      interface{} `json:"return,omitempty"`
	ErrorString string      `json:"errorString,omitempty"`
	ResponseTo  MessageID   `json:"responseTo"`
}

// Push is a server-initiated method call. MessageID comes from a
// locally monotonic counter and exists only for traceability.
type Push struct {
	Type      string   `json:"type"`
	MessageID uint64   `json:"messageID"`
	Data      PushData `json:"data"`
}

type PushData struct {
	Method string      `json:"method"`
	Args   interface{} `json:"args"`
}
