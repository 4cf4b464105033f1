package events

import (
	"time"
)

// EventType represents the type of client event
type EventType string

const (
	// Connection events
	EventStatus EventType = "status"

	// Chat registry events
	EventChatsChanged EventType = "chats_changed"

	// Turn events
	EventUserMessage      EventType = "user_message"
	EventAssistantMessage EventType = "assistant_message"
	EventAwaiting         EventType = "awaiting"

	// Notifications shown to the user
	EventNotification EventType = "notification"

	// Synchronization events
	EventSyncComplete EventType = "sync_complete"
)

// Event is the base interface for all client events
type Event interface {
	GetType() EventType
	GetTimestamp() time.Time
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) GetType() EventType      { return e.Type }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// NewBase creates a base event stamped with the current time
func NewBase(t EventType) BaseEvent {
	return BaseEvent{Type: t, Timestamp: time.Now()}
}

// ConnectionStatus is the externally visible state of the backend connection
type ConnectionStatus string

const (
	StatusConnecting     ConnectionStatus = "connecting"
	StatusAuthenticating ConnectionStatus = "authenticating"
	StatusConnected      ConnectionStatus = "connected"
	StatusDisconnected   ConnectionStatus = "disconnected"
	StatusError          ConnectionStatus = "error"
)

// StatusEvent reports a connection state change
type StatusEvent struct {
	BaseEvent
	Status ConnectionStatus `json:"status"`
	Err    error            `json:"-"`
}

// ChangeOp is the kind of change applied to the chat registry
type ChangeOp string

const (
	OpCreate   ChangeOp = "create"
	OpUpdate   ChangeOp = "update"
	OpDelete   ChangeOp = "delete"
	OpActivate ChangeOp = "activate"
	OpReload   ChangeOp = "reload"
)

// ChatsChangedEvent reports a change to the chat registry.
// ChatID is empty for reloads that touch the whole collection.
type ChatsChangedEvent struct {
	BaseEvent
	Op     ChangeOp `json:"op"`
	ChatID string   `json:"chat_id,omitempty"`
}

// UserMessageEvent reports a message sent by the user
type UserMessageEvent struct {
	BaseEvent
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// AssistantMessageEvent reports a reply from the assistant
type AssistantMessageEvent struct {
	BaseEvent
	ChatID         string `json:"chat_id"`
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// AwaitingEvent toggles the "awaiting response" indicator
type AwaitingEvent struct {
	BaseEvent
	Awaiting bool `json:"awaiting"`
}

// Level is the severity of a notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// NotificationEvent is a transient, dismissable message for the user
type NotificationEvent struct {
	BaseEvent
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// SyncCompleteEvent reports the outcome of a synchronization pass
type SyncCompleteEvent struct {
	BaseEvent
	Merged  int   `json:"merged"`
	Skipped int   `json:"skipped"`
	Err     error `json:"-"`
}
