package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Message is a single entry of a chat history
type Message struct {
	Text      string    `json:"text"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// Part is one content block of a structured message as written by the
// assistant backend when it records tool calls
type Part struct {
	Text       string  `json:"text"`
	ToolCallID *string `json:"tool_call_id,omitempty"`
}

// messageWire accepts every shape a message has been stored in: the current
// flat form, the structured parts form and the older IsUser form.
type messageWire struct {
	Text      string    `json:"text"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	IsUser    *bool     `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	role := Role(strings.ToLower(string(w.Role)))
	if role == "" && w.IsUser != nil && *w.IsUser {
		role = RoleUser
	}
	// other clients write roles such as "model" or "system"; those are
	// shown as replies rather than dropping the record
	if !role.Valid() {
		role = RoleAssistant
	}

	text := w.Text
	if len(w.Parts) > 0 {
		text = RenderParts(role, w.Parts)
	}

	m.Text = text
	m.Role = role
	m.Timestamp = w.Timestamp
	return nil
}

// RenderParts flattens structured parts into display text. Tool messages
// become a short placeholder describing the call rather than the payload.
func RenderParts(role Role, parts []Part) string {
	if role != RoleTool {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.Text)
		}
		return b.String()
	}

	var toolName string
	var text strings.Builder
	for _, p := range parts {
		if strings.TrimSpace(p.Text) != "" {
			text.WriteString(p.Text)
		}
		if p.ToolCallID != nil {
			toolName = *p.ToolCallID
		}
	}

	name := strings.TrimSpace(toolName)
	body := strings.TrimSpace(text.String())
	switch {
	case name != "" && body != "":
		return fmt.Sprintf("[calling tool %s: %s]", name, body)
	case name != "":
		return fmt.Sprintf("[calling tool %s]", name)
	case body != "":
		return body
	default:
		return "[tool call completed]"
	}
}
