package cmds

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/sources"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/config"
	"github.com/go-go-golems/helpdesk-chat/pkg/references"
)

// glazeCommand is a structured-output command that opens the app through
// the cobra command it ends up attached to, so the root flags apply.
type glazeCommand interface {
	cmds.GlazeCommand
	attach(cmd *cobra.Command)
}

type appOpener struct {
	cobraCmd *cobra.Command
}

func (o *appOpener) attach(cmd *cobra.Command) { o.cobraCmd = cmd }

func (o *appOpener) open() (*App, error) {
	if o.cobraCmd == nil {
		return nil, errors.New("command is not attached to cobra")
	}
	return openApp(o.cobraCmd, appOptions{})
}

func buildGlazeCommand(c glazeCommand, err error) *cobra.Command {
	cobra.CheckErr(err)
	cobraCmd, err := cli.BuildCobraCommand(c, cli.WithCobraMiddlewaresFunc(glazeMiddlewares))
	cobra.CheckErr(err)
	c.attach(cobraCmd)
	return cobraCmd
}

func glazeMiddlewares(
	_ *values.Values,
	cmd *cobra.Command,
	args []string,
) ([]sources.Middleware, error) {
	return []sources.Middleware{
		sources.FromCobra(cmd),
		sources.FromArgs(args),
		sources.FromEnv(config.EnvPrefix,
			fields.WithSource("env"),
		),
		sources.FromDefaults(),
	}, nil
}

func newOutputSections() ([]cmds.CommandDescriptionOption, error) {
	glazedSection, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}
	commandSettingsSection, err := cli.NewCommandSettingsSection()
	if err != nil {
		return nil, err
	}
	return []cmds.CommandDescriptionOption{cmds.WithSections(glazedSection, commandSettingsSection)}, nil
}

type SessionsListCommand struct {
	*cmds.CommandDescription
	appOpener
}

type SessionsListSettings struct {
	Limit int `glazed:"limit"`
}

func NewSessionsListCommand() (*SessionsListCommand, error) {
	sections, err := newOutputSections()
	if err != nil {
		return nil, err
	}
	opts := append([]cmds.CommandDescriptionOption{
		cmds.WithShort("List recent conversations"),
		cmds.WithLong("List recent conversations, newest first. The current one is marked."),
		cmds.WithFlags(
			fields.New(
				"limit",
				fields.TypeInteger,
				fields.WithShortFlag("n"),
				fields.WithDefault(0),
				fields.WithHelp("Maximum number of sessions (0 = session_list.limit from config)"),
			),
		),
	}, sections...)
	return &SessionsListCommand{CommandDescription: cmds.NewCommandDescription("list", opts...)}, nil
}

func (c *SessionsListCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedValues *values.Values,
	gp middlewares.Processor,
) error {
	s := &SessionsListSettings{}
	if err := parsedValues.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	app, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	limit := s.Limit
	if limit <= 0 {
		limit = app.Config.SessionList.Limit
	}
	list, err := app.Client.GetChatSessions(ctx, limit)
	if err != nil {
		return errors.New(chat.ClassifyError(err))
	}
	current, _ := app.currentSessionID(ctx)
	for _, row := range sessionRows(list.Sessions, current) {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func sessionRows(sessions []chat.SessionSummary, current string) []types.Row {
	rows := make([]types.Row, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, types.NewRow(
			types.MRP("current", s.ID == current),
			types.MRP("id", s.ID),
			types.MRP("title", s.Title),
			types.MRP("updated_at", formatTime(s.UpdatedAt)),
		))
	}
	return rows
}

type SessionsMessagesCommand struct {
	*cmds.CommandDescription
	appOpener
}

type SessionsMessagesSettings struct {
	SessionID string `glazed:"session-id"`
}

func NewSessionsMessagesCommand() (*SessionsMessagesCommand, error) {
	sections, err := newOutputSections()
	if err != nil {
		return nil, err
	}
	opts := append([]cmds.CommandDescriptionOption{
		cmds.WithShort("List the messages of a conversation (default: the current one)"),
		cmds.WithLong("List the messages of a conversation, one row per message, with the cited article ids."),
		cmds.WithArguments(
			fields.New(
				"session-id",
				fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Conversation to list"),
			),
		),
	}, sections...)
	return &SessionsMessagesCommand{CommandDescription: cmds.NewCommandDescription("messages", opts...)}, nil
}

func (c *SessionsMessagesCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedValues *values.Values,
	gp middlewares.Processor,
) error {
	s := &SessionsMessagesSettings{}
	if err := parsedValues.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	app, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	id, err := sessionArg(ctx, app, []string{s.SessionID})
	if err != nil {
		return err
	}
	messages, err := loadTranscript(ctx, app, id)
	if err != nil {
		return err
	}
	for _, row := range messageRows(messages) {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func messageRows(messages []chat.Message) []types.Row {
	rows := make([]types.Row, 0, len(messages))
	for _, m := range messages {
		ids := make([]string, 0, len(m.Citations))
		for _, c := range m.Citations {
			ids = append(ids, c.ID)
		}
		rows = append(rows, types.NewRow(
			types.MRP("id", m.ID),
			types.MRP("sender", string(m.Sender)),
			types.MRP("status", string(m.Status)),
			types.MRP("timestamp", formatTime(m.Timestamp)),
			types.MRP("text", m.Text),
			types.MRP("citations", strings.Join(ids, ",")),
		))
	}
	return rows
}

// TokensCommand prints the citation tokens of assistant text. Like
// "render" it works without any configuration.
type TokensCommand struct {
	*cmds.CommandDescription
	appOpener
}

type TokensSettings struct {
	File string `glazed:"file"`
}

func NewTokensCommand() (*TokensCommand, error) {
	sections, err := newOutputSections()
	if err != nil {
		return nil, err
	}
	opts := append([]cmds.CommandDescriptionOption{
		cmds.WithShort("Split assistant text into text and citation tokens"),
		cmds.WithLong("Read assistant text from FILE or stdin and print one row per token."),
		cmds.WithArguments(
			fields.New(
				"file",
				fields.TypeString,
				fields.WithDefault("-"),
				fields.WithHelp("File to read, - for stdin"),
			),
		),
	}, sections...)
	return &TokensCommand{CommandDescription: cmds.NewCommandDescription("tokens", opts...)}, nil
}

func NewTokensCobraCommand() *cobra.Command {
	return buildGlazeCommand(NewTokensCommand())
}

func (c *TokensCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedValues *values.Values,
	gp middlewares.Processor,
) error {
	s := &TokensSettings{}
	if err := parsedValues.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	var stdin io.Reader = os.Stdin
	if c.cobraCmd != nil {
		stdin = c.cobraCmd.InOrStdin()
	}
	text, err := readTextArg(stdin, s.File)
	if err != nil {
		return err
	}
	for _, row := range tokenRows(references.Tokenize(text)) {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func tokenRows(tokens []references.Token) []types.Row {
	rows := make([]types.Row, 0, len(tokens))
	for i, t := range tokens {
		rows = append(rows, types.NewRow(
			types.MRP("index", i),
			types.MRP("kind", string(t.Kind)),
			types.MRP("literal", t.Literal),
			types.MRP("article_id", t.ArticleID),
			types.MRP("label", t.Label()),
		))
	}
	return rows
}

// readTextArg reads path, or stdin for "" and "-".
func readTextArg(stdin io.Reader, path string) (string, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "read input")
	}
	return string(data), nil
}

var (
	_ cmds.GlazeCommand = &SessionsListCommand{}
	_ cmds.GlazeCommand = &SessionsMessagesCommand{}
	_ cmds.GlazeCommand = &TokensCommand{}
)
