package cmds

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/render"
)

const (
	formatTerminal = "terminal"
	formatHTML     = "html"
	formatMarkdown = "markdown"
)

func NewSendCommand() *cobra.Command {
	var format string
	var fresh bool
	cmd := &cobra.Command{
		Use:   "send <text...>",
		Short: "Send one message and print the reply",
		Long: `Send one message in the current conversation and print the assistant's
reply. A new conversation is started when none is active or --new is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			ctx := cmd.Context()

			if fresh {
				app.Manager.StartNewChat(ctx)
			} else if err := app.Manager.Hydrate(ctx); err != nil {
				log.Warn().Err(err).Msg("could not restore the current conversation, starting a new one")
				app.Manager.StartNewChat(ctx)
			}

			text := strings.Join(args, " ")
			res, err := app.Manager.SendMessage(ctx, text)
			if err != nil {
				return err
			}
			if res == nil {
				return errors.New("nothing to send")
			}
			if res.Failed() {
				return errors.New(res.Reply.Text)
			}
			if res.SessionCreated {
				log.Info().Str("session_id", res.SessionID).Msg("started a new conversation")
			}
			return printReply(cmd.OutOrStdout(), app, res.Reply, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: terminal, html, markdown (default terminal on a TTY)")
	cmd.Flags().BoolVar(&fresh, "new", false, "Start a new conversation")
	return cmd
}

func printReply(w io.Writer, app *App, reply chat.Message, format string) error {
	if format == "" {
		format = formatMarkdown
		if stdoutIsTerminal() {
			format = formatTerminal
		}
	}
	var out string
	switch format {
	case formatTerminal:
		out = app.TerminalRenderer().Render(reply.Text)
	case formatHTML:
		out = render.NewHTMLRenderer(app.Config.Articles.BaseURL).Render(reply.Text)
	case formatMarkdown:
		out = reply.Text
	default:
		return errors.Errorf("unknown format %q", format)
	}
	if _, err := fmt.Fprintln(w, out); err != nil {
		return err
	}
	if format != formatHTML && len(reply.Citations) > 0 {
		_, _ = fmt.Fprintln(w)
		for _, a := range reply.Citations {
			line := "- #" + a.ID
			if a.Title != "" {
				line += " " + a.Title
			}
			if u := render.ArticleURL(app.Config.Articles.BaseURL, a.ID); u != "" {
				line += " <" + u + ">"
			}
			_, _ = fmt.Fprintln(w, line)
		}
	}
	return nil
}
