package main

import (
	"os"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	ConfigFile string `name:"config" short:"c" type:"path" help:"Configuration file (replaces the user config)"`
	EnvFile    string `name:"env-file" type:"path" help:"Dotenv file with HA_BASE_URL / HA_TOKEN" default:".env"`
	LogLevel   string `help:"Log level (debug, info, warn, error)"`

	// Chat is the default command - interactive conversation
	Chat ChatCmd `cmd:"" default:"1" help:"Start an interactive conversation (default)"`

	// Other commands
	Ask    AskCmd    `cmd:"" help:"Send a single message and print the reply"`
	Chats  ChatsCmd  `cmd:"" help:"Manage saved chats"`
	Sync   SyncCmd   `cmd:"" help:"Synchronize chat history with the shared store"`
	Status StatusCmd `cmd:"" help:"Show device, network and storage status"`
	Cfg    ConfigCmd `cmd:"" name:"config" help:"Configuration management"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gizmo"),
		kong.Description("Text chat with a Home Assistant voice assistant"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		HandleError(createCLILogger("error"), err)
	}
	os.Exit(ExitSuccess)
}
