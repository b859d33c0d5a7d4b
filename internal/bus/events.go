package bus

import "time"

// InboundMessage is a message received from a channel.
type InboundMessage struct {
	Channel   string // "telegram", "websocket"
	SenderID  string
	ChatID    string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

// SessionKey returns a stable key identifying the conversation session.
func (m InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage is a message to send through a channel.
type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	ReplyTo  string
	Metadata map[string]any
}

// Stream event types emitted while a reply is being paced out.
const (
	EventTypingStart     = "typing_start"
	EventMessageChunk    = "message_chunk"
	EventMessageComplete = "message_complete"
	EventError           = "error"
)

// StreamEvent is one step of a paced reply. Exactly one of the
// type-specific field groups is meaningful, selected by Type.
type StreamEvent struct {
	Type    string `json:"type"`
	Channel string `json:"-"`
	ChatID  string `json:"-"`

	// typing_start
	AgentType      string  `json:"agent_type,omitempty"`
	EstimatedDelay float64 `json:"estimated_delay,omitempty"`

	// message_chunk
	Chunk       string `json:"chunk,omitempty"`
	ChunkIndex  int    `json:"chunk_index,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
	IsFinal     bool   `json:"is_final,omitempty"`

	// message_complete
	Confidence float64        `json:"confidence,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	// error
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}
