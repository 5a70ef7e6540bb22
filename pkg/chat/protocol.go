// Package chat provides the live-chat transport: a reconnecting websocket
// client that replays its join handshake so a joined room's message history
// resumes deterministically after a disconnect.
package chat

import "encoding/json"

// Client→server message types.
const (
	TypeJoin    = "join"
	TypeMessage = "message"
)

// Server→client message types.
const (
	TypeHistory     = "history"
	TypeStreamEnded = "stream_ended"
	TypeError       = "error"
)

// JoinMessage is the handshake sent immediately after the connection opens,
// and again after every reconnect.
type JoinMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
}

// OutboundMessage is a chat line sent by this client.
type OutboundMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Message is one chat line as delivered by the server.
type Message struct {
	ID       string `json:"id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
	Content  string `json:"content"`
	SentAt   int64  `json:"sent_at,omitempty"`
}

// serverFrame is the envelope for all server→client traffic. Message holds an
// object for "message" frames and a bare string for "error" frames, so it
// stays raw until the type is known.
type serverFrame struct {
	Type     string          `json:"type"`
	Messages json.RawMessage `json:"messages,omitempty"`
	Message  json.RawMessage `json:"message,omitempty"`
}
