package console

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gizmoapp/gizmo/src/events"
	"github.com/stretchr/testify/assert"
)

func TestEventProcessorRendersEvents(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventProcessor(&buf, ProcessorConfig{ShowStatus: true, ShowSync: true})

	p.Process(&events.UserMessageEvent{BaseEvent: events.NewBase(events.EventUserMessage), Text: "hidden"})
	p.Process(&events.AssistantMessageEvent{BaseEvent: events.NewBase(events.EventAssistantMessage), Text: "The light is on"})
	p.Process(&events.NotificationEvent{BaseEvent: events.NewBase(events.EventNotification), Level: events.LevelError, Text: "no intent"})
	p.Process(&events.StatusEvent{BaseEvent: events.NewBase(events.EventStatus), Status: events.StatusError, Err: errors.New("refused")})
	p.Process(&events.SyncCompleteEvent{BaseEvent: events.NewBase(events.EventSyncComplete), Merged: 2})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "The light is on")
	assert.Contains(t, out, "no intent")
	assert.Contains(t, out, "refused")
	assert.Contains(t, out, "synced 2 chat(s)")
}

func TestEventProcessorRaw(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventProcessor(&buf, ProcessorConfig{Raw: true})

	p.Process(&events.NotificationEvent{BaseEvent: events.NewBase(events.EventNotification), Level: events.LevelInfo, Text: "hint"})
	p.Process(&events.AssistantMessageEvent{BaseEvent: events.NewBase(events.EventAssistantMessage), Text: "done"})

	assert.Equal(t, "done\n", buf.String())
}
