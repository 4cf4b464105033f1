package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/alecthomas/kong"
	"github.com/charmbracelet/x/ansi"
	"github.com/gizmoapp/gizmo/src/chat"
	"github.com/gizmoapp/gizmo/src/theme"
)

const previewWidth = 48

// ChatsCmd manages saved chats
type ChatsCmd struct {
	List   ChatsListCmd   `cmd:"" default:"1" help:"List chats, most recent first"`
	Show   ChatsShowCmd   `cmd:"" help:"Print the messages of a chat"`
	New    ChatsNewCmd    `cmd:"" help:"Start a new chat and make it active"`
	Delete ChatsDeleteCmd `cmd:"" help:"Delete a chat"`
	Forget ChatsForgetCmd `cmd:"" help:"Drop the backend conversation of a chat so the next turn starts fresh"`
}

// ChatsListCmd lists chats
type ChatsListCmd struct {
	Format string `help:"Output format (table, json)" default:"table" enum:"table,json"`
}

func (c *ChatsListCmd) Run(ctx *kong.Context, cli *CLI) error {
	a, _, err := openApp(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	chats := a.Sessions.GetSorted()
	if c.Format == "json" {
		return printJSON(os.Stdout, chats)
	}
	active, _ := a.Sessions.Active()
	return printChatsTable(os.Stdout, chats, active.ID)
}

func printChatsTable(w io.Writer, chats []chat.Chat, activeID string) error {
	if len(chats) == 0 {
		fmt.Fprintln(w, "No chats yet.")
		return nil
	}
	styles := theme.NewStyles()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tTITLE\tMESSAGES\tLAST ACTIVITY")
	for _, c := range chats {
		marker := ""
		if c.ID == activeID {
			marker = styles.Active.Render("*")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			marker,
			c.ID,
			truncate(c.Title, previewWidth),
			len(c.Messages),
			c.LastActivityAt.Local().Format(time.DateTime),
		)
	}
	return tw.Flush()
}

// truncate shortens s to width terminal cells
func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}

// ChatsShowCmd prints one chat
type ChatsShowCmd struct {
	ID   string `arg:"" optional:"" help:"Chat ID (default: active or most recent chat)"`
	JSON bool   `help:"Print the stored record as JSON"`
}

func (c *ChatsShowCmd) Run(ctx *kong.Context, cli *CLI) error {
	a, _, err := openApp(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		record chat.Chat
		ok     bool
	)
	if c.ID != "" {
		record, ok = a.Sessions.Get(c.ID)
	} else if record, ok = a.Sessions.Active(); !ok {
		if sorted := a.Sessions.GetSorted(); len(sorted) > 0 {
			record, ok = sorted[0], true
		}
	}
	if !ok {
		return fmt.Errorf("%w: no such chat", errUsage)
	}

	if c.JSON {
		return printJSON(os.Stdout, record)
	}
	printTranscript(os.Stdout, record)
	return nil
}

func printTranscript(w io.Writer, c chat.Chat) {
	styles := theme.NewStyles()
	fmt.Fprintln(w, styles.Title.Render(c.Title))
	if c.ConversationID != "" {
		fmt.Fprintln(w, styles.Muted.Render("conversation "+c.ConversationID))
	}
	for _, m := range c.Messages {
		label := styles.User.Render("you:")
		if m.Role == chat.RoleAssistant {
			label = styles.Assistant.Render("assistant:")
		}
		fmt.Fprintf(w, "%s %s %s\n", styles.Muted.Render(m.Timestamp.Local().Format(time.TimeOnly)), label, m.Text)
	}
}

// printJSON writes v as indented JSON, highlighted when w is a terminal
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		if err := quick.Highlight(w, string(data)+"\n", "json", "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// ChatsNewCmd starts a chat
type ChatsNewCmd struct{}

func (c *ChatsNewCmd) Run(ctx *kong.Context, cli *CLI) error {
	a, _, err := openApp(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	created := a.Sessions.StartNewChat(context.Background())
	fmt.Println(created.ID)
	return nil
}

// ChatsDeleteCmd deletes chats
type ChatsDeleteCmd struct {
	IDs []string `arg:"" help:"Chat IDs"`
}

func (c *ChatsDeleteCmd) Run(ctx *kong.Context, cli *CLI) error {
	a, _, err := openApp(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	var missing []string
	for _, id := range c.IDs {
		if !a.Sessions.Delete(context.Background(), id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: unknown chat(s) %s", errUsage, strings.Join(missing, ", "))
	}
	return nil
}

// ChatsForgetCmd clears the conversation id of a chat
type ChatsForgetCmd struct {
	ID string `arg:"" help:"Chat ID"`
}

func (c *ChatsForgetCmd) Run(ctx *kong.Context, cli *CLI) error {
	a, _, err := openApp(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Sessions.ForgetConversation(context.Background(), c.ID) {
		return fmt.Errorf("%w: unknown chat %s", errUsage, c.ID)
	}
	return nil
}
