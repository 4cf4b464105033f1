package chat

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultTitle is used until the first user message names the chat
const DefaultTitle = "New chat"

const maxTitleRunes = 48

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Chat is one conversation session with the assistant.
//
// ConversationID is assigned by the backend on the first successful turn and
// must be sent with every later request of the chat. It only changes through
// an explicit reset.
type Chat struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	ConversationID string    `json:"conversation_id,omitempty"`
	MessageCounter int       `json:"message_counter"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Messages       []Message `json:"messages"`
}

// New returns an empty chat with the placeholder title
func New(id string, now time.Time) Chat {
	return Chat{
		ID:             id,
		Title:          DefaultTitle,
		MessageCounter: 1,
		CreatedAt:      now,
		LastActivityAt: now,
		Messages:       []Message{},
	}
}

// Append adds a message and bumps LastActivityAt. The first user message
// replaces the placeholder title.
func (c *Chat) Append(m Message) {
	c.Messages = append(c.Messages, m)
	c.LastActivityAt = m.Timestamp
	if m.Role == RoleUser && (c.Title == "" || c.Title == DefaultTitle) {
		if t := TitleFromText(m.Text); t != "" {
			c.Title = t
		}
	}
}

// Clone returns a deep copy so callers can't mutate shared history
func (c Chat) Clone() Chat {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// Preview returns the first message text or the title for empty chats
func (c Chat) Preview() string {
	if len(c.Messages) > 0 {
		return c.Messages[0].Text
	}
	return c.Title
}

// TitleFromText derives a display title from the first line of text
func TitleFromText(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	runes := []rune(line)
	return strings.TrimSpace(string(runes[:maxTitleRunes-1])) + "…"
}

// SyntheticTitle is the title given to chats rebuilt from a bare message list
func SyntheticTitle(id string) string {
	prefix := id
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return "Chat " + prefix
}

// Normalize repairs fields that older or foreign records may leave unset
func (c *Chat) Normalize() {
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.MessageCounter < 1 {
		c.MessageCounter = 1
	}
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	if c.LastActivityAt.IsZero() {
		if n := len(c.Messages); n > 0 {
			c.LastActivityAt = c.Messages[n-1].Timestamp
		} else {
			c.LastActivityAt = c.CreatedAt
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.LastActivityAt
	}
}
