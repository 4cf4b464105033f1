package syncer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gizmoapp/gizmo/src/chat"
	"github.com/gizmoapp/gizmo/src/remote"
)

var errUnknownRecord = errors.New("history is neither a chat object nor a message list")

// DecodeRecord rebuilds a chat from a remote history value. The value is
// either a full chat object or a bare list of messages. The key's id and
// the metadata's conversation id always win over what the value says.
// fallback is used as activity time for empty message lists.
func DecodeRecord(id string, raw []byte, meta remote.Meta, fallback time.Time) (chat.Chat, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return chat.Chat{}, errUnknownRecord
	}

	var c chat.Chat
	switch trimmed[0] {
	case '{':
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return chat.Chat{}, fmt.Errorf("decode chat: %w", err)
		}
		c.ID = id

	case '[':
		var msgs []chat.Message
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return chat.Chat{}, fmt.Errorf("decode messages: %w", err)
		}
		c = chat.Chat{
			ID:       id,
			Title:    chat.SyntheticTitle(id),
			Messages: msgs,
		}
		if len(msgs) > 0 {
			c.CreatedAt = msgs[0].Timestamp
			c.LastActivityAt = msgs[len(msgs)-1].Timestamp
		} else {
			c.CreatedAt = fallback
			c.LastActivityAt = fallback
		}

	default:
		return chat.Chat{}, errUnknownRecord
	}

	if meta.ConversationID != "" {
		c.ConversationID = meta.ConversationID
	}
	c.Normalize()
	return c, nil
}
