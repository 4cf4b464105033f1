package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
)

// StatusCmd prints where state lives and whether syncing is allowed
type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *kong.Context, cli *CLI) error {
	a, _, err := openApp(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	backend := a.Config.Remote.Backend
	if backend == "" {
		backend = "none"
	}

	fmt.Printf("Device:         %s\n", a.DeviceID)
	fmt.Printf("Snapshot:       %s\n", a.Snapshot.Path())
	fmt.Printf("Chats:          %d\n", len(a.Sessions.GetSorted()))
	fmt.Printf("Remote store:   %s\n", backend)
	fmt.Printf("Trust mode:     %s\n", a.Config.Network.Trust)
	fmt.Printf("Trusted now:    %t\n", a.Probe.IsOnTrustedNetwork())
	fmt.Printf("Pipeline:       %s\n", a.Protocol.PipelineID())
	if err := a.Config.RequireAssistant(); err != nil {
		fmt.Printf("Assistant:      not configured (%v)\n", err)
	} else {
		fmt.Printf("Assistant:      %s\n", a.Config.Assistant.BaseURL)
	}
	return nil
}
