package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gizmoapp/gizmo/src/console"
	"github.com/gizmoapp/gizmo/src/events"
)

// AskCmd sends one message and waits for the reply
type AskCmd struct {
	Text    []string      `arg:"" help:"The message to send"`
	Chat    string        `help:"Continue this chat instead of the most recent one"`
	New     bool          `short:"n" help:"Start a new chat"`
	Timeout time.Duration `help:"How long to wait for the reply" default:"30s"`
	Raw     bool          `help:"Print only the reply text"`
}

// outcome is the first reply or error notification of a turn
type outcome struct {
	reply string
	err   string
}

// turnWatcher forwards the end of a turn to a channel
type turnWatcher struct {
	done chan outcome
}

func (w *turnWatcher) Process(event events.Event) error {
	var o outcome
	switch e := event.(type) {
	case *events.AssistantMessageEvent:
		o.reply = e.Text
	case *events.NotificationEvent:
		if e.Level != events.LevelError {
			return nil
		}
		o.err = e.Text
	default:
		return nil
	}
	select {
	case w.done <- o:
	default:
	}
	return nil
}

func (w *turnWatcher) Close() error { return nil }

func (c *AskCmd) Run(ctx *kong.Context, cli *CLI) error {
	text := strings.TrimSpace(strings.Join(c.Text, " "))

	sigCtx, stop := signalContext()
	defer stop()

	watcher := &turnWatcher{done: make(chan outcome, 1)}
	printer := console.NewEventProcessor(os.Stdout, console.ProcessorConfig{Raw: c.Raw})
	a, _, err := openApp(sigCtx, cli, watcher, printer)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case c.New:
		a.Sessions.StartNewChat(sigCtx)
	case c.Chat != "":
		if !a.Sessions.Activate(sigCtx, c.Chat) {
			return fmt.Errorf("%w: unknown chat %s", errUsage, c.Chat)
		}
	}

	turnCtx, cancel := context.WithTimeout(sigCtx, c.Timeout)
	defer cancel()

	if err := a.Connect(turnCtx); err != nil {
		return err
	}
	if _, err := a.Assist.Send(turnCtx, text); err != nil {
		return err
	}

	select {
	case o := <-watcher.done:
		if o.err != "" {
			return fmt.Errorf("%w: %s", errAssistantFailed, o.err)
		}
		return nil
	case <-turnCtx.Done():
		return fmt.Errorf("waiting for reply: %w", turnCtx.Err())
	}
}
