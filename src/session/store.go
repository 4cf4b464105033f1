// Package session keeps the in-memory registry of chats and the active chat
// pointer, persisting the full collection after every mutation.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gizmoapp/gizmo/src/chat"
	"github.com/gizmoapp/gizmo/src/events"
)

// Persister writes the full chat collection
type Persister interface {
	Save(ctx context.Context, chats map[string]chat.Chat) error
}

// Config holds the dependencies of a Store
type Config struct {
	Persister Persister
	Events    events.Sink
	IDs       *chat.IDGenerator
	Logger    *slog.Logger

	// Now overrides the clock, for tests
	Now func() time.Time
}

// Store is the chat registry. All state lives behind one mutex and callers
// only ever see deep copies.
type Store struct {
	persister Persister
	sink      events.Sink
	ids       *chat.IDGenerator
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	chats    map[string]chat.Chat
	activeID string

	// saveMu orders snapshot writes without holding mu during I/O
	saveMu sync.Mutex
}

// New creates an empty store
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ids := cfg.IDs
	if ids == nil {
		ids = chat.NewIDGenerator("unknown-device")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		persister: cfg.Persister,
		sink:      cfg.Events,
		ids:       ids,
		logger:    logger.With("component", "session"),
		now:       now,
		chats:     make(map[string]chat.Chat),
	}
}

// StartNewChat creates a chat, makes it active and persists
func (s *Store) StartNewChat(ctx context.Context) chat.Chat {
	s.mu.Lock()
	c := chat.New(s.ids.Next(), s.now())
	s.chats[c.ID] = c
	s.activeID = c.ID
	out := c.Clone()
	s.mu.Unlock()

	s.changed(ctx, events.OpCreate, c.ID)
	return out
}

// Activate makes id the active chat. Unknown ids are rejected.
func (s *Store) Activate(ctx context.Context, id string) bool {
	s.mu.Lock()
	if _, ok := s.chats[id]; !ok {
		s.mu.Unlock()
		return false
	}
	s.activeID = id
	s.mu.Unlock()

	s.changed(ctx, events.OpActivate, id)
	return true
}

// AddMessage appends a message to the active chat. Without an active chat
// the message is dropped and false is returned.
func (s *Store) AddMessage(ctx context.Context, text string, role chat.Role) (chat.Chat, bool) {
	s.mu.Lock()
	c, ok := s.chats[s.activeID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("message dropped, no active chat", "role", role)
		return chat.Chat{}, false
	}
	c = c.Clone()
	c.Append(chat.Message{Text: text, Role: role, Timestamp: s.now()})
	s.chats[c.ID] = c
	out := c.Clone()
	s.mu.Unlock()

	s.changed(ctx, events.OpUpdate, c.ID)
	return out, true
}

// AddReply appends an assistant message to the active chat and records the
// backend conversation id when the chat has none yet. Both happen under one
// lock so a concurrent Activate can't split them across chats.
func (s *Store) AddReply(ctx context.Context, text, conversationID string) (chat.Chat, bool) {
	s.mu.Lock()
	c, ok := s.chats[s.activeID]
	if !ok {
		s.mu.Unlock()
		return chat.Chat{}, false
	}
	c = c.Clone()
	if c.ConversationID == "" && conversationID != "" {
		c.ConversationID = conversationID
	}
	c.Append(chat.Message{Text: text, Role: chat.RoleAssistant, Timestamp: s.now()})
	s.chats[c.ID] = c
	out := c.Clone()
	s.mu.Unlock()

	s.changed(ctx, events.OpUpdate, c.ID)
	return out, true
}

// Delete removes a chat and clears the active pointer when it pointed at it
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	if _, ok := s.chats[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.chats, id)
	if s.activeID == id {
		s.activeID = ""
	}
	s.mu.Unlock()

	s.changed(ctx, events.OpDelete, id)
	return true
}

// GetSorted returns all chats, most recent activity first
func (s *Store) GetSorted() []chat.Chat {
	s.mu.Lock()
	out := make([]chat.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, c.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Active returns the active chat, if any
func (s *Store) Active() (chat.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[s.activeID]
	if !ok {
		return chat.Chat{}, false
	}
	return c.Clone(), true
}

// Get returns the chat with the given id
func (s *Store) Get(id string) (chat.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return chat.Chat{}, false
	}
	return c.Clone(), true
}

// EnsureActive returns the active chat. Without one it activates the most
// recently used chat, or starts a new chat when the store is empty.
func (s *Store) EnsureActive(ctx context.Context) chat.Chat {
	if c, ok := s.Active(); ok {
		return c
	}
	if sorted := s.GetSorted(); len(sorted) > 0 {
		if s.Activate(ctx, sorted[0].ID) {
			if c, ok := s.Get(sorted[0].ID); ok {
				return c
			}
		}
	}
	return s.StartNewChat(ctx)
}

// NextSequence returns the message counter for the next outbound request
// of chat id and advances it. Unknown ids yield 0.
func (s *Store) NextSequence(ctx context.Context, id string) int {
	s.mu.Lock()
	c, ok := s.chats[id]
	if !ok {
		s.mu.Unlock()
		return 0
	}
	seq := c.MessageCounter
	c.MessageCounter++
	s.chats[id] = c
	s.mu.Unlock()

	s.changed(ctx, events.OpUpdate, id)
	return seq
}

// SetConversationID records the backend conversation id for a chat. An id
// that is already set is never replaced.
func (s *Store) SetConversationID(ctx context.Context, id, conversationID string) bool {
	if conversationID == "" {
		return false
	}
	s.mu.Lock()
	c, ok := s.chats[id]
	if !ok || c.ConversationID != "" {
		s.mu.Unlock()
		return false
	}
	c.ConversationID = conversationID
	s.chats[id] = c
	s.mu.Unlock()

	s.changed(ctx, events.OpUpdate, id)
	return true
}

// ForgetConversation clears the backend conversation id so the next turn
// starts a fresh backend conversation
func (s *Store) ForgetConversation(ctx context.Context, id string) bool {
	s.mu.Lock()
	c, ok := s.chats[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	c.ConversationID = ""
	s.chats[id] = c
	s.mu.Unlock()

	s.changed(ctx, events.OpUpdate, id)
	return true
}

// Load replaces the whole collection without persisting. The active
// pointer survives only if its chat is still present.
func (s *Store) Load(chats map[string]chat.Chat) {
	s.mu.Lock()
	s.chats = make(map[string]chat.Chat, len(chats))
	for id, c := range chats {
		s.chats[id] = c.Clone()
	}
	if _, ok := s.chats[s.activeID]; !ok {
		s.activeID = ""
	}
	s.mu.Unlock()

	events.Publish(s.sink, s.logger, &events.ChatsChangedEvent{
		BaseEvent: events.NewBase(events.EventChatsChanged),
		Op:        events.OpReload,
	})
}

// Merge inserts or replaces chats without persisting and returns how many
// were applied. A non-empty merge publishes one reload change.
func (s *Store) Merge(chats []chat.Chat) int {
	if len(chats) == 0 {
		return 0
	}
	s.mu.Lock()
	for _, c := range chats {
		s.chats[c.ID] = c.Clone()
	}
	s.mu.Unlock()

	events.Publish(s.sink, s.logger, &events.ChatsChangedEvent{
		BaseEvent: events.NewBase(events.EventChatsChanged),
		Op:        events.OpReload,
	})
	return len(chats)
}

// Snapshot returns a deep copy of the collection
func (s *Store) Snapshot() map[string]chat.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Save persists the current collection
func (s *Store) Save(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	// copy after taking saveMu so a later writer always sees newer state
	return s.persister.Save(ctx, s.Snapshot())
}

func (s *Store) copyLocked() map[string]chat.Chat {
	out := make(map[string]chat.Chat, len(s.chats))
	for id, c := range s.chats {
		out[id] = c.Clone()
	}
	return out
}

// changed persists and announces a mutation. Failed writes are logged and
// the in-memory state is kept.
func (s *Store) changed(ctx context.Context, op events.ChangeOp, id string) {
	if err := s.Save(ctx); err != nil {
		s.logger.Error("failed to persist chats", "op", op, "chat_id", id, "error", err)
	}
	events.Publish(s.sink, s.logger, &events.ChatsChangedEvent{
		BaseEvent: events.NewBase(events.EventChatsChanged),
		Op:        op,
		ChatID:    id,
	})
}
