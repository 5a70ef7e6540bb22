package voice

import "encoding/json"

// EventType discriminates frames on the answer stream.
type EventType string

const (
	// EventTextChunk carries an incremental fragment of the response body.
	EventTextChunk EventType = "text_chunk"
	// EventFollowup carries a single follow-up prompt, spoken after the body.
	EventFollowup EventType = "followup"
	// EventRecommendations carries structured side-data that is stored on the
	// turn but never synthesized.
	EventRecommendations EventType = "recommendations"
	// EventError carries a user-facing failure message; the stream terminates
	// after it.
	EventError EventType = "error"
)

// Recommendation is one structured entity suggested alongside a response.
type Recommendation struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Event is one decoded frame from the answer stream.
type Event struct {
	Type            EventType
	Text            string
	Recommendations []Recommendation
}

// eventFrame is the wire shape of an answer-stream frame. Unknown types
// decode fine and are dropped by the consumer so the server can add frame
// kinds without breaking older clients.
type eventFrame struct {
	Type    string          `json:"type"`
	Content string          `json:"content,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Role labels a conversation participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior exchange entry sent as turn history.
type Message struct {
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	Followup string `json:"followup,omitempty"`
}
