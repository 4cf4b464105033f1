package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/alecthomas/kong"
	"github.com/gizmoapp/gizmo/src/syncer"
)

// SyncCmd manages synchronization with the shared store
type SyncCmd struct {
	Run  SyncRunCmd  `cmd:"" default:"1" help:"Pull remote histories and save the snapshot"`
	Diff SyncDiffCmd `cmd:"" help:"Show what a pull would change"`
	Push SyncPushCmd `cmd:"" help:"Upload chats to the shared store"`
}

// SyncRunCmd runs one pull
type SyncRunCmd struct {
	Force bool `help:"Pull even when the network is not trusted"`
}

func (c *SyncRunCmd) Run(ctx *kong.Context, cli *CLI) error {
	sigCtx, stop := signalContext()
	defer stop()

	a, _, err := openApp(sigCtx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Remote == nil {
		return syncer.ErrNoRemote
	}
	if !c.Force && !a.Sync.Trusted() {
		fmt.Println("Network is not trusted; nothing synchronized. Use --force to pull anyway.")
		return nil
	}

	report, err := a.Sync.Pull(sigCtx)
	if err != nil {
		return err
	}
	if err := a.Sessions.Save(sigCtx); err != nil {
		return err
	}
	fmt.Printf("Scanned %d, merged %d, skipped %d\n", report.Scanned, report.Merged, report.Skipped)
	for _, id := range report.SkippedIDs {
		fmt.Printf("  skipped %s\n", id)
	}
	return nil
}

// SyncDiffCmd previews a pull
type SyncDiffCmd struct {
	All bool `help:"Also list chats that only exist locally"`
}

func (c *SyncDiffCmd) Run(ctx *kong.Context, cli *CLI) error {
	sigCtx, stop := signalContext()
	defer stop()

	a, _, err := openApp(sigCtx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	diffs, err := a.Sync.Diff(sigCtx)
	if err != nil {
		return err
	}

	shown := 0
	for _, d := range diffs {
		if d.Status == syncer.DiffLocalOnly {
			if c.All {
				fmt.Printf("local only: %s\n", d.ID)
			}
			continue
		}
		shown++
		if isTerminal(os.Stdout) {
			if err := quick.Highlight(os.Stdout, d.Unified, "diff", "terminal256", "monokai"); err == nil {
				continue
			}
		}
		fmt.Print(d.Unified)
	}
	if shown == 0 {
		fmt.Println("Local chats are up to date.")
	}
	return nil
}

// SyncPushCmd uploads chats
type SyncPushCmd struct {
	IDs []string `arg:"" optional:"" help:"Chat IDs (default: all chats)"`
}

func (c *SyncPushCmd) Run(ctx *kong.Context, cli *CLI) error {
	sigCtx, stop := signalContext()
	defer stop()

	a, _, err := openApp(sigCtx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Remote == nil {
		return syncer.ErrNoRemote
	}
	if !a.Sync.Trusted() {
		fmt.Println("Network is not trusted; nothing pushed.")
		return nil
	}

	ids := c.IDs
	if len(ids) == 0 {
		for _, ch := range a.Sessions.GetSorted() {
			ids = append(ids, ch.ID)
		}
	}
	for _, id := range ids {
		if err := a.Sync.Push(sigCtx, id); err != nil {
			return fmt.Errorf("push %s: %w", id, err)
		}
	}
	fmt.Printf("Pushed %d chat(s)\n", len(ids))
	return nil
}

