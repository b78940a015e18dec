package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/lifecycle"
	"github.com/go-go-golems/helpdesk-chat/pkg/redisstream"
	"github.com/go-go-golems/helpdesk-chat/pkg/render"
	"github.com/go-go-golems/helpdesk-chat/pkg/sessionlist"
)

const (
	chatMode = iota
	articleMode
)

type Options struct {
	Manager *lifecycle.Manager
	// Articles resolves citations for /open. Optional.
	Articles chat.ArticleFetcher
	Renderer *render.TerminalRenderer
	// Events receives deleted/renamed notifications. Optional.
	Events message.Publisher
	// Copy defaults to the system clipboard.
	Copy func(string) error
	// RenderArticle turns article markdown into terminal output. Defaults to
	// glamour's dark style.
	RenderArticle func(markdown string) (string, error)
}

// SessionsMsg carries a session list refresh into the program.
type SessionsMsg sessionlist.Snapshot

type sendDoneMsg struct {
	result *lifecycle.SendResult
	err    error
}

type opDoneMsg struct {
	note string
	err  error
}

type articleMsg struct {
	title    string
	rendered string
	err      error
}

type Model struct {
	ctx  context.Context
	opts Options

	viewport viewport.Model
	article  viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	mode         int
	articleTitle string
	sessions     SessionsMsg
	note         string
	busy         int
	content      string

	width  int
	height int
	ready  bool
}

func New(ctx context.Context, opts Options) (Model, error) {
	if opts.Manager == nil {
		return Model{}, errors.New("ui: manager is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewTerminalRenderer("")
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	if opts.RenderArticle == nil {
		opts.RenderArticle = func(md string) (string, error) { return glamour.Render(md, "dark") }
	}

	in := textinput.New()
	in.Placeholder = "Ask a question, or /help"
	in.Prompt = "> "
	in.CharLimit = 4000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	return Model{
		ctx:      ctx,
		opts:     opts,
		viewport: viewport.New(80, 20),
		article:  viewport.New(80, 20),
		input:    in,
		spinner:  sp,
		mode:     chatMode,
	}, nil
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.article.Width = max(msg.Width-4, 1)
		m.article.Height = max(msg.Height-6, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.content = ""

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.mode == articleMode {
			switch msg.String() {
			case "esc", "q", "enter", "backspace":
				m.mode = chatMode
				m.input.Focus()
				return m, nil
			}
			var cmd tea.Cmd
			m.article, cmd = m.article.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "enter":
			value := m.input.Value()
			m.input.Reset()
			cmds = append(cmds, m.submit(value))
		case "pgup", "pgdown", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		if m.busy > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case sendDoneMsg:
		m.busy--
		if msg.err != nil {
			m.note = msg.err.Error()
		}

	case opDoneMsg:
		m.busy--
		m.note = msg.note
		if msg.err != nil {
			m.note = msg.err.Error()
		}

	case articleMsg:
		m.busy--
		if msg.err != nil {
			m.note = msg.err.Error()
			break
		}
		m.articleTitle = msg.title
		m.article.SetContent(msg.rendered)
		m.article.GotoTop()
		m.mode = articleMode
		m.input.Blur()

	case SessionsMsg:
		m.sessions = msg
	}

	m.sync()
	return m, tea.Batch(cmds...)
}

// sync repaints the transcript when the manager state has changed.
func (m *Model) sync() {
	st := m.opts.Manager.Snapshot()
	content := RenderTranscript(st.Messages, m.opts.Renderer, m.viewport.Width)
	if content == m.content {
		return
	}
	m.content = content
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m *Model) submit(value string) tea.Cmd {
	cmd := ParseCommand(value)
	mgr := m.opts.Manager
	ctx := m.ctx
	m.note = ""

	switch cmd.Kind {
	case CommandNone:
		text := messageText(value)
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return m.background(func() tea.Msg {
			res, err := mgr.SendMessage(ctx, text)
			return sendDoneMsg{result: res, err: err}
		})

	case CommandNew:
		mgr.StartNewChat(ctx)
		m.note = "Started a new conversation."
		return nil

	case CommandClear:
		mgr.ClearMessages()
		m.note = "Cleared the view. The conversation itself is kept."
		return nil

	case CommandDelete:
		id := mgr.SessionID()
		if id == "" {
			m.note = "Nothing to delete yet."
			return nil
		}
		pub := m.opts.Events
		return m.background(func() tea.Msg {
			if err := mgr.DeleteCurrentSession(ctx); err != nil {
				return opDoneMsg{err: errors.New(chat.MessageDeleteFailed)}
			}
			publishEvent(pub, redisstream.SessionEvent{Type: redisstream.EventSessionDeleted, SessionID: id})
			return opDoneMsg{note: "Conversation deleted."}
		})

	case CommandRename:
		if cmd.Arg == "" {
			m.note = "Usage: /rename TITLE"
			return nil
		}
		id := mgr.SessionID()
		if id == "" {
			m.note = "Send a message first; new conversations get a title automatically."
			return nil
		}
		pub := m.opts.Events
		title := cmd.Arg
		return m.background(func() tea.Msg {
			if err := mgr.UpdateSessionTitle(ctx, title); err != nil {
				return opDoneMsg{err: errors.New(chat.MessageRenameFailed)}
			}
			publishEvent(pub, redisstream.SessionEvent{Type: redisstream.EventSessionRenamed, SessionID: id, Title: title})
			return opDoneMsg{note: fmt.Sprintf("Renamed to %q.", title)}
		})

	case CommandOpen:
		if m.opts.Articles == nil {
			m.note = "Articles are not available in this mode."
			return nil
		}
		id, err := citationTarget(mgr.Messages(), cmd.Arg)
		if err != nil {
			m.note = err.Error()
			return nil
		}
		fetcher, renderArticle := m.opts.Articles, m.opts.RenderArticle
		return m.background(func() tea.Msg {
			a, err := fetcher.GetArticle(ctx, id)
			if err != nil {
				log.Warn().Err(err).Str("article_id", id).Msg("failed to fetch article")
				return articleMsg{err: errors.Errorf("Could not open article %s.", id)}
			}
			out, err := renderArticle(a.Body)
			if err != nil {
				out = a.Body
			}
			title := a.Title
			if title == "" {
				title = "Article " + a.ID
			}
			return articleMsg{title: title, rendered: out}
		})

	case CommandCopy:
		reply, ok := lastAssistantReply(mgr.Messages())
		if !ok {
			m.note = "No reply to copy yet."
			return nil
		}
		if err := m.opts.Copy(reply.Text); err != nil {
			m.note = "Could not copy to the clipboard: " + err.Error()
			return nil
		}
		m.note = "Copied the last reply to the clipboard."
		return nil

	case CommandQuit:
		return tea.Quit

	case CommandHelp:
		m.note = helpText
		return nil

	default:
		m.note = fmt.Sprintf("Unknown command /%s. %s", cmd.Name, helpText)
		return nil
	}
}

// background runs fn off the update loop and keeps the spinner going
// until its result arrives.
func (m *Model) background(fn func() tea.Msg) tea.Cmd {
	m.busy++
	if m.busy == 1 {
		return tea.Batch(fn, m.spinner.Tick)
	}
	return fn
}

func publishEvent(pub message.Publisher, ev redisstream.SessionEvent) {
	if pub == nil {
		return
	}
	if err := redisstream.Publish(pub, ev); err != nil {
		log.Warn().Err(err).Str("session_id", ev.SessionID).Msg("failed to publish session event")
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.mode == articleMode {
		return articlePane.Width(max(m.width-2, 1)).Render(lipgloss.JoinVertical(
			lipgloss.Left,
			articleTitleStyle.Render(m.articleTitle),
			m.article.View(),
			closeHelpStyle.Render("esc to return to the conversation"),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		m.viewport.View(),
		m.statusLine(),
		m.input.View(),
	)
}

func (m Model) header() string {
	st := m.opts.Manager.Snapshot()
	title := st.Title
	if title == "" {
		title = "New conversation"
	}
	return titleStyle.Render(title)
}

func (m Model) statusLine() string {
	st := m.opts.Manager.Snapshot()
	var parts []string
	if st.Loading || m.busy > 0 {
		parts = append(parts, m.spinner.View()+" waiting for the assistant")
	}
	if st.CurrentSessionID != "" {
		parts = append(parts, "session "+shortID(st.CurrentSessionID))
	}
	if m.sessions.Err != nil {
		parts = append(parts, "session list unavailable")
	} else if !m.sessions.RefreshAt.IsZero() {
		parts = append(parts, fmt.Sprintf("%d sessions", len(m.sessions.Sessions)))
	}
	line := statusStyle.Render(strings.Join(parts, " · "))

	switch {
	case st.Error != "":
		line += "  " + errorStyle.Render(st.Error)
	case st.LoadFailed:
		line += "  " + errorStyle.Render("Could not restore the previous conversation.")
	}
	if m.note != "" {
		line += "  " + noteStyle.Render(m.note)
	}
	return line
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
