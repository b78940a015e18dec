package cmds

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/lifecycle"
	"github.com/go-go-golems/helpdesk-chat/pkg/persistence/sessionstore"
	"github.com/go-go-golems/helpdesk-chat/pkg/render"
	"github.com/go-go-golems/helpdesk-chat/pkg/sessionlist"
	"github.com/go-go-golems/helpdesk-chat/pkg/ui"
)

const listWidth = 48

var (
	browserTitleStyle = lipgloss.NewStyle().MarginLeft(2).Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	paginationStyle   = list.DefaultStyles().PaginationStyle.PaddingLeft(4)
	helpStyle         = list.DefaultStyles().HelpStyle.PaddingLeft(4).PaddingBottom(1)

	listPane = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	previewPane = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	noSelectionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888")).
				Align(lipgloss.Center).
				PaddingTop(2)

	browserErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var (
	keyChoose  = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "continue"))
	keyRefresh = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh"))
)

func browserHelpKeys() []key.Binding {
	return []key.Binding{keyChoose, keyRefresh}
}

// sessionItem adapts a session summary to the bubbles list.
type sessionItem struct {
	summary chat.SessionSummary
	current bool
}

func (s sessionItem) Title() string {
	t := s.summary.Title
	if t == "" {
		t = "(untitled)"
	}
	if s.current {
		t = "* " + t
	}
	return t
}

func (s sessionItem) Description() string {
	return s.summary.ID + "  " + formatTime(s.summary.UpdatedAt)
}

func (s sessionItem) FilterValue() string { return s.summary.Title + " " + s.summary.ID }

type previewMsg struct {
	id       string
	messages []chat.Message
	err      error
}

type browserModel struct {
	ctx      context.Context
	client   chat.ConversationClient
	renderer *render.TerminalRenderer
	trigger  func()

	list     list.Model
	viewport viewport.Model
	current  string
	selected string
	chosen   string
	listErr  error
	ready    bool
	width    int
	height   int
}

func newBrowserModel(ctx context.Context, client chat.ConversationClient, r *render.TerminalRenderer, current string, trigger func()) browserModel {
	delegate := list.NewDefaultDelegate()
	l := list.New(nil, delegate, 0, 0)
	l.Title = "Conversations"
	l.Styles.Title = browserTitleStyle
	l.Styles.PaginationStyle = paginationStyle
	l.Styles.HelpStyle = helpStyle
	l.SetShowStatusBar(false)
	l.AdditionalShortHelpKeys = browserHelpKeys
	return browserModel{
		ctx:      ctx,
		client:   client,
		renderer: r,
		trigger:  trigger,
		list:     l,
		viewport: viewport.New(40, 10),
		current:  current,
	}
}

func (m browserModel) Init() tea.Cmd { return nil }

func (m browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(listWidth, max(msg.Height-4, 3))
		m.viewport.Width = max(msg.Width-listWidth-8, 10)
		m.viewport.Height = max(msg.Height-4, 3)
		m.ready = true

	case ui.SessionsMsg:
		m.listErr = msg.Err
		if msg.Err == nil {
			items := make([]list.Item, 0, len(msg.Sessions))
			for _, s := range msg.Sessions {
				items = append(items, sessionItem{summary: s, current: s.ID == m.current})
			}
			cmds = append(cmds, m.list.SetItems(items))
		}

	case previewMsg:
		if msg.id != m.selected {
			break
		}
		if msg.err != nil {
			m.viewport.SetContent(browserErrorStyle.Render(chat.MessageLoadFailed))
		} else {
			m.viewport.SetContent(ui.RenderTranscript(msg.messages, m.renderer, m.viewport.Width))
		}
		m.viewport.GotoTop()

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			if it, ok := m.list.SelectedItem().(sessionItem); ok {
				m.chosen = it.summary.ID
				return m, tea.Quit
			}
		case "r":
			if m.trigger != nil {
				m.trigger()
			}
			return m, nil
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)

	if it, ok := m.list.SelectedItem().(sessionItem); ok && it.summary.ID != m.selected {
		m.selected = it.summary.ID
		m.viewport.SetContent("Loading...")
		cmds = append(cmds, m.loadPreview(it.summary.ID))
	}

	return m, tea.Batch(cmds...)
}

func (m browserModel) loadPreview(id string) tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		mgr, err := lifecycle.NewManager(lifecycle.Config{Client: client, Store: sessionstore.NewInMemoryStore()})
		if err != nil {
			return previewMsg{id: id, err: err}
		}
		if err := mgr.LoadSession(ctx, id); err != nil {
			return previewMsg{id: id, err: err}
		}
		return previewMsg{id: id, messages: mgr.Messages()}
	}
}

func (m browserModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	listContent := listPane.Width(listWidth).Render(m.list.View())

	var right string
	switch {
	case m.listErr != nil && len(m.list.Items()) == 0:
		right = noSelectionStyle.Render(chat.ClassifyError(m.listErr))
	case m.selected == "":
		right = noSelectionStyle.Render("Select a conversation to preview it")
	default:
		right = m.viewport.View()
	}
	previewContent := previewPane.
		Width(max(m.width-listWidth-6, 10)).
		Height(max(m.height-2, 3)).
		Render(right)

	return lipgloss.JoinHorizontal(lipgloss.Top, listContent, previewContent)
}

func (c *SessionsCommand) newBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse conversations and pick one to continue",
		Long: `Browse recent conversations in a split-pane view. The list refreshes in
the background. Press enter to make the selected conversation current,
r to refresh and q to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, appOptions{tui: true})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			chosen, err := runBrowser(cmd.Context(), app)
			if err != nil {
				return err
			}
			if chosen == "" {
				return nil
			}
			if err := app.Store.Save(cmd.Context(), chosen); err != nil {
				return errors.Wrap(err, "save current session")
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Current conversation is now %s\n", chosen)
			return nil
		},
	}
}

func runBrowser(parent context.Context, app *App) (string, error) {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	current, _ := app.currentSessionID(ctx)

	var refresher *sessionlist.Refresher
	model := newBrowserModel(ctx, app.Client, app.TerminalRenderer(), current, func() { refresher.Trigger() })
	p := tea.NewProgram(model, tea.WithAltScreen())

	refresher, err := sessionlist.NewRefresher(sessionlist.Config{
		Client:    app.Client,
		Scheduler: sessionlist.NewTickerScheduler(app.Config.SessionList.PollInterval),
		Limit:     app.Config.SessionList.Limit,
		OnUpdate:  func(s sessionlist.Snapshot) { p.Send(ui.SessionsMsg(s)) },
	})
	if err != nil {
		return "", err
	}

	var chosen string
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return refresher.Run(egCtx) })
	eg.Go(func() error { return app.watchSessionEvents(egCtx, refresher) })
	eg.Go(func() error {
		<-egCtx.Done()
		p.Quit()
		return nil
	})
	eg.Go(func() error {
		defer cancel()
		final, err := p.Run()
		if err != nil {
			return errors.Wrap(err, "session browser")
		}
		if bm, ok := final.(browserModel); ok {
			chosen = bm.chosen
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return "", err
	}
	return strings.TrimSpace(chosen), nil
}
