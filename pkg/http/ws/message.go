package ws

import "encoding/json"

// Message types on the leaderboard feed.
const (
	// Client -> Server
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"

	// Server -> Client
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeSubscribed        = "subscribed"
	TypeError             = "error"
	TypePong              = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a Message of the given type.
func NewMessage(typ string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, Payload: raw}, nil
}

// SubscribePayload selects a leaderboard window.
type SubscribePayload struct {
	Window string `json:"window"`
}

// LeaderboardUpdatePayload carries the current top of one window.
type LeaderboardUpdatePayload struct {
	Window string             `json:"window"`
	Top    []LeaderboardEntry `json:"top"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	UserID   string  `json:"userId"`
	Username string  `json:"username,omitempty"`
	Points   float64 `json:"points"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
