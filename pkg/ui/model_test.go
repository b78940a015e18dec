package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/kbclient"
	"github.com/go-go-golems/helpdesk-chat/pkg/lifecycle"
	"github.com/go-go-golems/helpdesk-chat/pkg/redisstream"
)

type harness struct {
	t       *testing.T
	model   Model
	copied  []string
	quit    bool
	client  *kbclient.InMemoryClient
	manager *lifecycle.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, client: kbclient.NewInMemoryClient()}
	mgr, err := lifecycle.NewManager(lifecycle.Config{Client: h.client})
	require.NoError(t, err)
	h.manager = mgr
	m, err := New(context.Background(), Options{
		Manager:       mgr,
		Articles:      h.client,
		Copy:          func(s string) error { h.copied = append(h.copied, s); return nil },
		RenderArticle: func(md string) (string, error) { return "RENDERED:" + md, nil },
	})
	require.NoError(t, err)
	h.model = m
	h.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

// send feeds msg to the model and runs the resulting commands to
// completion. Spinner ticks are dropped so the loop terminates.
func (h *harness) send(msg tea.Msg) {
	h.t.Helper()
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	h.run(cmd)
}

func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			h.run(c)
		}
	case spinner.TickMsg:
	case tea.QuitMsg:
		h.quit = true
	default:
		h.send(msg)
	}
}

func (h *harness) submit(text string) {
	h.t.Helper()
	h.model.input.SetValue(text)
	h.send(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestModel_SendShowsReplyAndTitle(t *testing.T) {
	h := newHarness(t)
	h.submit("How do I order custom lanyards?")

	st := h.manager.Snapshot()
	require.Len(t, st.Messages, 2)
	require.NotEmpty(t, st.CurrentSessionID)
	require.Equal(t, 0, h.model.busy)
	require.Contains(t, h.model.content, "How do I order custom lanyards?")
	require.Contains(t, h.model.content, "Sources: Ordering custom lanyards (#101)")
	require.Contains(t, h.model.View(), "How do I order custom lanyards?")
	require.Empty(t, h.model.input.Value())
}

func TestModel_FailedSendShowsErrorBanner(t *testing.T) {
	h := newHarness(t)
	h.client.FailNext(&chat.APIError{Status: 503})
	h.submit("hello")
	require.Contains(t, h.model.statusLine(), chat.MessageServiceDown)
}

func TestModel_OpenAndCloseArticle(t *testing.T) {
	h := newHarness(t)
	h.submit("Where is my shipping tracking number?")
	h.submit("/open 1")
	require.Equal(t, articleMode, h.model.mode)
	require.Equal(t, "Shipping and delivery times", h.model.articleTitle)
	require.Contains(t, h.model.View(), "RENDERED:")

	h.send(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, chatMode, h.model.mode)
}

func TestModel_OpenWithoutCitations(t *testing.T) {
	h := newHarness(t)
	h.submit("/open")
	require.Equal(t, chatMode, h.model.mode)
	require.Equal(t, "no cited articles yet", h.model.note)
}

func TestModel_CopyLastReply(t *testing.T) {
	h := newHarness(t)
	h.submit("/copy")
	require.Empty(t, h.copied)

	h.submit("password reset please")
	h.submit("/copy")
	require.Len(t, h.copied, 1)
	require.True(t, strings.Contains(h.copied[0], "[Article 104]"))
}

func TestModel_RenameDeleteNew(t *testing.T) {
	h := newHarness(t)
	ch := redisstream.NewInProcessBus(redisstream.NewWatermillLogger(zerolog.Nop()))
	t.Cleanup(func() { _ = ch.Close() })
	h.model.opts.Events = ch.Publisher

	h.submit("/rename")
	require.Equal(t, "Usage: /rename TITLE", h.model.note)

	h.submit("returns for damaged items")
	h.submit("/rename Damaged order")
	require.Equal(t, "Damaged order", h.manager.Snapshot().Title)
	require.Contains(t, h.model.header(), "Damaged order")

	h.submit("/delete")
	require.Equal(t, "Conversation deleted.", h.model.note)
	require.Equal(t, lifecycle.PhaseIdle, h.manager.Snapshot().Phase())

	list, err := h.client.GetChatSessions(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, list.Sessions)

	h.submit("again")
	require.Len(t, h.manager.Messages(), 2)
	h.submit("/new")
	require.Empty(t, h.manager.Messages())
	require.Contains(t, h.model.content, "Ask a question")
}

func TestModel_ClearKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.submit("hello")
	id := h.manager.SessionID()
	h.submit("/clear")
	require.Empty(t, h.manager.Messages())
	require.Equal(t, id, h.manager.SessionID())
}

func TestModel_QuitAndUnknown(t *testing.T) {
	h := newHarness(t)
	h.submit("/bogus")
	require.Contains(t, h.model.note, "Unknown command /bogus")
	h.submit("/quit")
	require.True(t, h.quit)
}

func TestModel_SessionsMsgUpdatesStatus(t *testing.T) {
	h := newHarness(t)
	h.send(SessionsMsg{
		Sessions:  []chat.SessionSummary{{ID: "x"}, {ID: "y"}},
		RefreshAt: time.Now(),
	})
	require.Contains(t, h.model.statusLine(), "2 sessions")

	h.send(SessionsMsg{Err: errors.New("offline"), RefreshAt: time.Now()})
	require.Contains(t, h.model.statusLine(), "session list unavailable")
}
