package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/gizmoapp/gizmo/src/config"
	"github.com/gizmoapp/gizmo/src/schema"
)

// ConfigCmd manages configuration
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" help:"Print the effective configuration"`
	Validate ConfigValidateCmd `cmd:"" help:"Check the configuration"`
	Schema   ConfigSchemaCmd   `cmd:"" help:"Print the JSON Schema of config.json"`
	Init     ConfigInitCmd     `cmd:"" help:"Write a config file with default values"`
	Path     ConfigPathCmd     `cmd:"" help:"List the files that are read"`
}

// ConfigShowCmd prints the merged configuration
type ConfigShowCmd struct {
	ShowToken bool `help:"Do not mask the access token"`
}

func (c *ConfigShowCmd) Run(ctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if !c.ShowToken {
		cfg.Assistant.Token = maskSecret(cfg.Assistant.Token)
	}
	return printJSON(os.Stdout, cfg)
}

// ConfigValidateCmd validates the configuration
type ConfigValidateCmd struct{}

func (c *ConfigValidateCmd) Run(ctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if err := cfg.RequireAssistant(); err != nil {
		return err
	}
	fmt.Println("Configuration is valid.")
	return nil
}

// ConfigSchemaCmd prints the config schema
type ConfigSchemaCmd struct{}

func (c *ConfigSchemaCmd) Run(ctx *kong.Context, cli *CLI) error {
	data, err := json.MarshalIndent(schema.ConfigSchema(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// ConfigInitCmd writes a default config file
type ConfigInitCmd struct {
	Path  string `arg:"" optional:"" type:"path" help:"Destination (default: user config file)"`
	Force bool   `help:"Overwrite an existing file"`
}

func (c *ConfigInitCmd) Run(ctx *kong.Context, cli *CLI) error {
	path := c.Path
	if path == "" {
		path = config.GetDefaultUserConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%w: %s exists, use --force to overwrite", errUsage, path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	precedence := config.GetConfigPaths()
	if err := config.NewLoader(precedence).SaveFile(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// ConfigPathCmd lists configuration sources
type ConfigPathCmd struct{}

func (c *ConfigPathCmd) Run(ctx *kong.Context, cli *CLI) error {
	p := config.GetConfigPaths()
	if cli.ConfigFile != "" {
		p.UserConfig = cli.ConfigFile
	}
	p.EnvFile = cli.EnvFile

	for _, entry := range []struct{ name, path string }{
		{"system", p.SystemConfig},
		{"user", p.UserConfig},
		{"local", p.LocalConfig},
		{"dotenv", p.EnvFile},
	} {
		state := "missing"
		if _, err := os.Stat(entry.path); err == nil {
			state = "found"
		}
		fmt.Printf("%-7s %-8s %s\n", entry.name, state, entry.path)
	}
	fmt.Printf("env     prefix   %s_*, HA_BASE_URL, HA_TOKEN\n", p.EnvironmentPrefix)
	return nil
}
