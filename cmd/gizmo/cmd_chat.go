package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/gizmoapp/gizmo/src/app"
	"github.com/gizmoapp/gizmo/src/console"
	"github.com/gizmoapp/gizmo/src/events"
	"github.com/gizmoapp/gizmo/src/theme"
)

const replHelp = `Commands:
  /new            start a new chat
  /list           list chats
  /use <n|id>     switch to a chat (n is the position in /list)
  /show           print the active chat
  /delete <n|id>  delete a chat
  /forget         start a fresh backend conversation in the active chat
  /sync           pull from the shared store now
  /help           show this help
  /quit           exit`

// errQuit ends the REPL without an error
var errQuit = errors.New("quit")

// ChatCmd runs the interactive conversation
type ChatCmd struct {
	Chat  string `help:"Resume this chat"`
	New   bool   `short:"n" help:"Start with a new chat"`
	Quiet bool   `short:"q" help:"Hide connection and sync notices"`
}

func (c *ChatCmd) Run(ctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	logger := createSessionLogger(cfg.Logging.Level, cfg.Logging.File)

	sigCtx, stop := signalContext()
	defer stop()

	printer := console.NewEventProcessor(os.Stdout, console.ProcessorConfig{
		ShowStatus: !c.Quiet,
		ShowSync:   !c.Quiet,
	})
	a, err := app.New(sigCtx, app.Options{
		Config:     cfg,
		Logger:     logger,
		Processors: []events.Processor{printer},
	})
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
	default:
		a.Sessions.EnsureActive(sigCtx)
	}

	if err := a.Connect(sigCtx); err != nil {
		// keep going: the channel retries in the background
		fmt.Fprintf(os.Stderr, "%s\n", theme.NewStyles().Warning.Render("not connected: "+err.Error()))
	}

	r := &repl{app: a, in: os.Stdin, out: os.Stdout}
	return r.run(sigCtx)
}

// repl reads lines and turns them into commands or turns
type repl struct {
	app *app.App
	in  io.Reader
	out io.Writer
}

func (r *repl) run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	// the reader blocks in Read until the process exits, so it is not waited on
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprintln(r.out, "Type a message, or /help for commands.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if err := r.handle(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		if _, err := r.app.Assist.Send(ctx, line); err != nil {
			r.warn(err.Error())
		}
		return nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	sessions := r.app.Sessions

	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/new":
		c := sessions.StartNewChat(ctx)
		fmt.Fprintf(r.out, "Started %s\n", c.ID)
	case "/list":
		active, _ := sessions.Active()
		r.list(active.ID)
	case "/use":
		id, ok := r.resolve(arg)
		if !ok || !sessions.Activate(ctx, id) {
			r.warn("no such chat: " + arg)
			return nil
		}
		c, _ := sessions.Get(id)
		printTranscript(r.out, c)
	case "/show":
		c, ok := sessions.Active()
		if !ok {
			r.warn("no active chat")
			return nil
		}
		printTranscript(r.out, c)
	case "/delete":
		id, ok := r.resolve(arg)
		if !ok || !sessions.Delete(ctx, id) {
			r.warn("no such chat: " + arg)
		}
	case "/forget":
		c, ok := sessions.Active()
		if !ok || !sessions.ForgetConversation(ctx, c.ID) {
			r.warn("no active chat")
		}
	case "/sync":
		if r.app.Remote == nil {
			r.warn("no shared store configured")
			return nil
		}
		if err := r.app.Sync.RunOnce(ctx); err != nil {
			r.warn(err.Error())
		}
	default:
		r.warn("unknown command " + cmd + ", try /help")
	}
	return nil
}

func (r *repl) list(activeID string) {
	chats := r.app.Sessions.GetSorted()
	if len(chats) == 0 {
		fmt.Fprintln(r.out, "No chats yet.")
		return
	}
	styles := theme.NewStyles()
	for i, c := range chats {
		marker := " "
		if c.ID == activeID {
			marker = styles.Active.Render("*")
		}
		fmt.Fprintf(r.out, "%s %2d  %s  %s\n", marker, i+1, truncate(c.Title, previewWidth), styles.Muted.Render(c.ID))
	}
}

// resolve accepts a 1-based position in the sorted list or a chat id
func (r *repl) resolve(arg string) (string, bool) {
	if arg == "" {
		return "", false
	}
	if n, err := strconv.Atoi(arg); err == nil {
		chats := r.app.Sessions.GetSorted()
		if n < 1 || n > len(chats) {
			return "", false
		}
		return chats[n-1].ID, true
	}
	if _, ok := r.app.Sessions.Get(arg); ok {
		return arg, true
	}
	return "", false
}

func (r *repl) warn(msg string) {
	fmt.Fprintln(r.out, theme.NewStyles().Warning.Render(msg))
}
