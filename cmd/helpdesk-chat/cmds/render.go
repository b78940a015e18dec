package cmds

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/helpdesk-chat/pkg/render"
)

// NewRenderCommand renders assistant text without talking to the API. It
// does not open the app so it works without any configuration.
func NewRenderCommand() *cobra.Command {
	var format string
	var articlesURL string
	cmd := &cobra.Command{
		Use:   "render [FILE|-]",
		Short: "Tokenize and render assistant text with citations",
		Long: `Read assistant text from FILE or stdin and print it rendered. Use
"tokens" to see the citation tokens as yaml, json or a table.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			text, err := readTextArg(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			if articlesURL == "" {
				articlesURL, _ = cmd.Flags().GetString("articles-url")
			}
			return renderText(cmd.OutOrStdout(), text, format, articlesURL)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTerminal, "Output format: terminal, html")
	cmd.Flags().StringVar(&articlesURL, "base-url", "", "Base URL for external article links (defaults to --articles-url)")
	return cmd
}

func renderText(w io.Writer, text string, format string, articlesURL string) error {
	switch format {
	case formatTerminal:
		_, err := fmt.Fprintln(w, render.NewTerminalRenderer(articlesURL).Render(text))
		return err
	case formatHTML:
		_, err := fmt.Fprintln(w, render.NewHTMLRenderer(articlesURL).Render(text))
		return err
	default:
		return errors.Errorf("unknown format %q", format)
	}
}
