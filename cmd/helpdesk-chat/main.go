package main

import (
	"context"
	"fmt"
	"os"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/helpdesk-chat/cmd/helpdesk-chat/cmds"
	"github.com/go-go-golems/helpdesk-chat/pkg/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "helpdesk-chat",
	Short:   "helpdesk-chat is a terminal client for the support knowledge base assistant",
	Version: version,
	// Running without a subcommand opens the chat.
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	// Commands that open the app reconfigure logging from the resolved
	// config; this covers the ones that don't.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitLoggerFromCobra(cmd)
	},
}

func initRootCmd() error {
	helpSystem := help.NewHelpSystem()
	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	if err := clay.InitGlazed(config.AppName, rootCmd); err != nil {
		return err
	}
	cmds.RegisterGlobalFlags(rootCmd)

	chatCmd := cmds.NewChatCommand()
	rootCmd.RunE = chatCmd.RunE

	rootCmd.AddCommand(
		chatCmd,
		cmds.NewSendCommand(),
		cmds.NewNewCommand(),
		cmds.NewSessionsCommand(),
		cmds.NewArticleCommand(),
		cmds.NewRenderCommand(),
		cmds.NewTokensCobraCommand(),
	)
	return nil
}

func main() {
	cobra.CheckErr(initRootCmd())
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
