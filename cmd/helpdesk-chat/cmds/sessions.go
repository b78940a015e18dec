package cmds

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/lifecycle"
	"github.com/go-go-golems/helpdesk-chat/pkg/persistence/sessionstore"
	"github.com/go-go-golems/helpdesk-chat/pkg/redisstream"
	"github.com/go-go-golems/helpdesk-chat/pkg/ui"
)

type SessionsCommand struct {
	*cobra.Command
}

func NewSessionsCommand() *cobra.Command {
	c := &SessionsCommand{}
	cobraCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and manage conversations",
	}
	cobraCmd.AddCommand(buildGlazeCommand(NewSessionsListCommand()))
	cobraCmd.AddCommand(c.newShowCommand())
	cobraCmd.AddCommand(buildGlazeCommand(NewSessionsMessagesCommand()))
	cobraCmd.AddCommand(c.newDeleteCommand())
	cobraCmd.AddCommand(c.newRenameCommand())
	cobraCmd.AddCommand(c.newBrowseCommand())
	c.Command = cobraCmd
	return cobraCmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func (c *SessionsCommand) newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print a conversation (default: the current one)",
		Long: `Print a conversation with its citations rendered for the terminal. Use
"sessions messages --output json" for structured output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			id, err := sessionArg(cmd.Context(), app, args)
			if err != nil {
				return err
			}
			messages, err := loadTranscript(cmd.Context(), app, id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ui.RenderTranscript(messages, app.TerminalRenderer(), 0))
			return err
		},
	}
}

// loadTranscript fetches a conversation through a throwaway manager so
// the stored current session is left alone.
func loadTranscript(ctx context.Context, app *App, id string) ([]chat.Message, error) {
	mgr, err := lifecycle.NewManager(lifecycle.Config{Client: app.Client, Store: sessionstore.NewInMemoryStore()})
	if err != nil {
		return nil, err
	}
	if err := mgr.LoadSession(ctx, id); err != nil {
		return nil, errors.Wrapf(err, "%s %s", chat.MessageLoadFailed, id)
	}
	return mgr.Messages(), nil
}

func sessionArg(ctx context.Context, app *App, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	id, err := app.currentSessionID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", chat.ErrNoActiveSession
	}
	return id, nil
}

func (c *SessionsCommand) newDeleteCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a conversation (default: the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			ctx := cmd.Context()

			id, err := sessionArg(ctx, app, args)
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(fmt.Sprintf("Delete conversation %s? [y/N]", id))
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := app.Client.DeleteChatSession(ctx, id); err != nil {
				return errors.Wrap(err, chat.MessageDeleteFailed)
			}
			if current, _ := app.currentSessionID(ctx); current == id {
				if err := app.Store.Save(ctx, ""); err != nil {
					return errors.Wrap(err, "clear current session")
				}
			}

			app.publish(redisstream.SessionEvent{Type: redisstream.EventSessionDeleted, SessionID: id})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func confirm(query string) (bool, error) {
	prompt := &input.UI{
		Writer: os.Stderr,
		Reader: os.Stdin,
	}
	answer, err := prompt.Ask(query, &input.Options{
		Default:     "n",
		HideDefault: true,
		Loop:        true,
		ValidateFunc: func(answer string) error {
			switch strings.ToLower(answer) {
			case "y", "yes", "n", "no", "":
				return nil
			default:
				return errors.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to get user input")
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (c *SessionsCommand) newRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title...>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			id := args[0]
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return errors.New("title must not be empty")
			}
			if err := app.Client.UpdateChatSession(cmd.Context(), id, chat.SessionUpdate{Title: title}); err != nil {
				return errors.Wrap(err, chat.MessageRenameFailed)
			}
			app.publish(redisstream.SessionEvent{Type: redisstream.EventSessionRenamed, SessionID: id, Title: title})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", id, title)
			return nil
		},
	}
}
