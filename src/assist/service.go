// Package assist runs conversation turns: it sends user text through the
// channel and applies the backend's replies to the session store.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gizmoapp/gizmo/src/chat"
	"github.com/gizmoapp/gizmo/src/events"
	"github.com/gizmoapp/gizmo/src/protocol"
	"github.com/gizmoapp/gizmo/src/session"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNotConnected = errors.New("not connected to the assistant")
)

// IntentNotSupportedHint follows the backend error when no intent matched
const IntentNotSupportedHint = "Try rephrasing the request, or check that the device is exposed to the assistant."

// Sender writes frames to the backend
type Sender interface {
	Send(ctx context.Context, payload []byte) error
	Ready() bool
}

// Pusher copies a chat to the shared store
type Pusher interface {
	Push(ctx context.Context, id string) error
}

// Config holds the Service dependencies
type Config struct {
	Store    *session.Store
	Protocol *protocol.Protocol
	Sender   Sender
	Pusher   Pusher
	Events   events.Sink
	Logger   *slog.Logger
}

// Service connects the session store with the backend connection
type Service struct {
	store    *session.Store
	proto    *protocol.Protocol
	sender   Sender
	pusher   Pusher
	sink     events.Sink
	logger   *slog.Logger
	awaiting atomic.Bool
}

// New creates a Service
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  cfg.Store,
		proto:  cfg.Protocol,
		sender: cfg.Sender,
		pusher: cfg.Pusher,
		sink:   cfg.Events,
		logger: logger.With("component", "assist"),
	}
}

// SetSender attaches the channel after construction, since the channel
// needs the Service's frame handler first
func (s *Service) SetSender(sender Sender) {
	s.sender = sender
}

// Awaiting reports whether a reply is outstanding
func (s *Service) Awaiting() bool {
	return s.awaiting.Load()
}

// Send records text as a user message in the active chat, creating or
// picking a chat when none is active, and sends the turn request
func (s *Service) Send(ctx context.Context, text string) (chat.Chat, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Chat{}, ErrEmptyMessage
	}
	if s.sender == nil || !s.sender.Ready() {
		return chat.Chat{}, fmt.Errorf("cannot send: %w", ErrNotConnected)
	}

	active := s.store.EnsureActive(ctx)
	c, ok := s.store.AddMessage(ctx, text, chat.RoleUser)
	if !ok {
		return chat.Chat{}, fmt.Errorf("cannot send: chat %s disappeared", active.ID)
	}
	events.Publish(s.sink, s.logger, &events.UserMessageEvent{
		BaseEvent: events.NewBase(events.EventUserMessage),
		ChatID:    c.ID,
		Text:      text,
	})

	seq := s.store.NextSequence(ctx, c.ID)
	req := s.proto.BuildTurnRequest(c, text)
	payload, err := req.Marshal()
	if err != nil {
		return c, fmt.Errorf("encode turn request: %w", err)
	}

	s.setAwaiting(true)
	if err := s.sender.Send(ctx, payload); err != nil {
		s.setAwaiting(false)
		return c, fmt.Errorf("send turn request: %w", err)
	}
	s.logger.Debug("sent turn", "chat_id", c.ID, "request_id", req.ID, "sequence", seq, "has_conversation", c.ConversationID != "")
	return c, nil
}

// HandleFrame applies one inbound frame. It is the channel's frame handler
// and therefore runs on the receive goroutine.
func (s *Service) HandleFrame(ctx context.Context, frame []byte) {
	res := protocol.Interpret(frame)

	switch res.Kind {
	case protocol.KindSpeech:
		s.handleSpeech(ctx, res)
	case protocol.KindError:
		s.handleError(res)
	default:
		s.logger.Debug("ignoring frame", "type", protocol.FrameType(frame), "request_id", res.RequestID)
	}
}

// OnConnect resets per-connection protocol state
func (s *Service) OnConnect(ctx context.Context) {
	s.proto.ResetCorrelation()
	if s.setAwaiting(false) {
		s.notify(events.LevelWarning, "Connection was re-established; the last request may not have been answered.")
	}
}

// replies go to whichever chat is active when they arrive
func (s *Service) handleSpeech(ctx context.Context, res protocol.Result) {
	c, ok := s.store.AddReply(ctx, res.Speech, res.ConversationID)
	s.setAwaiting(false)
	if !ok {
		s.logger.Warn("reply dropped, no active chat", "request_id", res.RequestID)
		return
	}

	events.Publish(s.sink, s.logger, &events.AssistantMessageEvent{
		BaseEvent:      events.NewBase(events.EventAssistantMessage),
		ChatID:         c.ID,
		Text:           res.Speech,
		ConversationID: c.ConversationID,
	})

	if s.pusher != nil {
		if err := s.pusher.Push(ctx, c.ID); err != nil {
			s.logger.Warn("failed to push chat", "chat_id", c.ID, "error", err)
		}
	}
}

func (s *Service) handleError(res protocol.Result) {
	s.setAwaiting(false)
	s.logger.Info("backend reported an error", "code", res.Code, "message", res.Message, "request_id", res.RequestID)

	s.notify(events.LevelError, res.Message)
	if res.Code == protocol.IntentNotSupported {
		s.notify(events.LevelInfo, IntentNotSupportedHint)
	}
}

func (s *Service) notify(level events.Level, text string) {
	events.Publish(s.sink, s.logger, &events.NotificationEvent{
		BaseEvent: events.NewBase(events.EventNotification),
		Level:     level,
		Text:      text,
	})
}

// setAwaiting updates the flag and reports whether it changed
func (s *Service) setAwaiting(v bool) bool {
	if s.awaiting.Swap(v) == v {
		return false
	}
	events.Publish(s.sink, s.logger, &events.AwaitingEvent{
		BaseEvent: events.NewBase(events.EventAwaiting),
		Awaiting:  v,
	})
	return true
}
