// Package console prints client events to a terminal.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/gizmoapp/gizmo/src/events"
	"github.com/gizmoapp/gizmo/src/theme"
)

// ProcessorConfig configures the console event processor
type ProcessorConfig struct {
	// ShowStatus prints connection status changes
	ShowStatus bool
	// ShowSync prints background sync results
	ShowSync bool
	// EchoUser repeats the user's own messages
	EchoUser bool
	// Raw disables styling and prints only assistant replies
	Raw bool
}

// EventProcessor renders events as lines of text
type EventProcessor struct {
	config ProcessorConfig
	styles theme.Styles

	mu  sync.Mutex
	out io.Writer
}

// NewEventProcessor creates a processor writing to out
func NewEventProcessor(out io.Writer, config ProcessorConfig) *EventProcessor {
	return &EventProcessor{
		config: config,
		styles: theme.NewStyles(),
		out:    out,
	}
}

// Process handles a single event
func (p *EventProcessor) Process(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Raw {
		if msg, ok := event.(*events.AssistantMessageEvent); ok {
			_, err := fmt.Fprintln(p.out, msg.Text)
			return err
		}
		return nil
	}

	switch e := event.(type) {
	case *events.UserMessageEvent:
		if p.config.EchoUser {
			p.println(p.styles.User.Render("you:") + " " + e.Text)
		}

	case *events.AssistantMessageEvent:
		p.println(p.styles.Assistant.Render("assistant:") + " " + e.Text)

	case *events.NotificationEvent:
		p.processNotification(e)

	case *events.StatusEvent:
		if p.config.ShowStatus {
			p.processStatus(e)
		}

	case *events.SyncCompleteEvent:
		if p.config.ShowSync {
			p.processSync(e)
		}

	case *events.AwaitingEvent, *events.ChatsChangedEvent:
		// nothing to print
	}
	return nil
}

// Close cleans up resources
func (p *EventProcessor) Close() error {
	return nil
}

func (p *EventProcessor) processNotification(e *events.NotificationEvent) {
	switch e.Level {
	case events.LevelError:
		p.println(p.styles.Error.Render("error:") + " " + e.Text)
	case events.LevelWarning:
		p.println(p.styles.Warning.Render("warning: " + e.Text))
	default:
		p.println(p.styles.Muted.Render(e.Text))
	}
}

func (p *EventProcessor) processStatus(e *events.StatusEvent) {
	line := "connection: " + string(e.Status)
	if e.Err != nil {
		line += " (" + e.Err.Error() + ")"
	}
	if e.Status == events.StatusError {
		p.println(p.styles.Warning.Render(line))
		return
	}
	p.println(p.styles.Muted.Render(line))
}

func (p *EventProcessor) processSync(e *events.SyncCompleteEvent) {
	if e.Err != nil {
		p.println(p.styles.Warning.Render("sync failed: " + e.Err.Error()))
		return
	}
	if e.Merged > 0 {
		p.println(p.styles.Muted.Render(fmt.Sprintf("synced %d chat(s)", e.Merged)))
	}
}

func (p *EventProcessor) println(s string) {
	fmt.Fprintln(p.out, s)
}
