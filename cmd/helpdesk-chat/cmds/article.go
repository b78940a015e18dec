package cmds

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/render"
)

func NewArticleCommand() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "article <id>",
		Short: "Print a knowledge base article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			id := strings.TrimPrefix(strings.TrimSpace(args[0]), "#")
			article, err := app.Articles.GetArticle(cmd.Context(), id)
			if err != nil {
				return errors.Wrapf(err, "fetch article %s", id)
			}

			md := articleMarkdown(article, app.Config.Articles.BaseURL)
			if raw || !stdoutIsTerminal() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), md)
				return err
			}
			out, err := glamour.Render(md, "dark")
			if err != nil {
				return errors.Wrap(err, "render article")
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal styling")
	return cmd
}

func articleMarkdown(a *chat.Article, baseURL string) string {
	var b strings.Builder
	title := a.Title
	if title == "" {
		title = "Article " + a.ID
	}
	b.WriteString("# " + title + "\n\n")
	b.WriteString(strings.TrimSpace(a.Body))
	b.WriteString("\n")
	link := a.URL
	if link == "" {
		link = render.ArticleURL(baseURL, a.ID)
	}
	if link != "" {
		b.WriteString("\n" + link + "\n")
	}
	return b.String()
}
