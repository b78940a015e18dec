package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewNewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Forget the current conversation so the next message starts a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			previous, _ := app.currentSessionID(cmd.Context())
			app.Manager.StartNewChat(cmd.Context())
			if previous == "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No active conversation.")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Left conversation %s. The next message starts a new one.\n", previous)
			return nil
		},
	}
}
