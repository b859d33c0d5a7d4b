// Package store is the persistence layer: users, conversations, messages,
// memory facts, followup timers and human handoffs, backed by SQLite.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

type ConversationState string

const (
	ConversationActive    ConversationState = "active"
	ConversationDiscovery ConversationState = "discovery"
	ConversationHandoff   ConversationState = "handoff"
	ConversationCompleted ConversationState = "completed"
	ConversationArchived  ConversationState = "archived"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type TimerStatus string

const (
	TimerPending   TimerStatus = "pending"
	TimerRunning   TimerStatus = "running"
	TimerCompleted TimerStatus = "completed"
	TimerFailed    TimerStatus = "failed"
	TimerCancelled TimerStatus = "cancelled"
)

type HandoffStatus string

const (
	HandoffPending  HandoffStatus = "pending"
	HandoffAssigned HandoffStatus = "assigned"
	HandoffResolved HandoffStatus = "resolved"
)

type User struct {
	ID            string
	Channel       string
	ChannelUserID string
	Name          string
	Phone         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Conversation struct {
	ID            string
	UserID        string
	Channel       string
	ChatID        string
	State         ConversationState
	LastMessageAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	AgentType      string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// MemoryFact is one (category, key) -> value record about a user. Value is
// the JSON encoding of a typed memory value; the memory package owns the
// schema.
type MemoryFact struct {
	ID                string
	UserID            string
	Category          string
	Key               string
	Value             string
	Confidence        float64
	Weight            float64
	Source            string
	NeedsConfirmation bool
	ConfirmedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Timer struct {
	ID             string
	UserID         string
	ConversationID string
	Kind           string
	RunAt          time.Time
	Status         TimerStatus
	Payload        map[string]any
	Attempts       int
	MaxAttempts    int
	LastError      string
	LastAttemptAt  *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Handoff struct {
	ID             string
	UserID         string
	ConversationID string
	Reason         string
	Urgency        string
	Context        string
	Status         HandoffStatus
	AssignedTo     string
	ResolvedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Stats summarizes row counts for the status command.
type Stats struct {
	Users           int64
	Conversations   int64
	Messages        int64
	Facts           int64
	Unconfirmed     int64
	PendingTimers   int64
	PendingHandoffs int64
}

// Store is the persistence contract consumed by the rest of the system.
type Store interface {
	EnsureUser(ctx context.Context, channel, channelUserID string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)

	EnsureConversation(ctx context.Context, userID, channel, chatID string) (Conversation, error)
	GetConversation(ctx context.Context, id string) (Conversation, error)
	SetConversationState(ctx context.Context, id string, state ConversationState) error

	CreateMessage(ctx context.Context, msg Message) (Message, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	CreateFact(ctx context.Context, fact MemoryFact) (MemoryFact, error)
	GetFact(ctx context.Context, userID, category, key string) (MemoryFact, error)
	ListFacts(ctx context.Context, userID string) ([]MemoryFact, error)
	UpdateFact(ctx context.Context, fact MemoryFact) (MemoryFact, error)

	CreateTimer(ctx context.Context, timer Timer) (Timer, error)
	DueTimers(ctx context.Context, now time.Time, limit int) ([]Timer, error)
	UpdateTimer(ctx context.Context, timer Timer) (Timer, error)

	CreateHandoff(ctx context.Context, h Handoff) (Handoff, error)
	PendingHandoffs(ctx context.Context, limit int) ([]Handoff, error)

	Stats(ctx context.Context) (Stats, error)
	Close() error
}
