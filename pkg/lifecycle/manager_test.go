package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/persistence/sessionstore"
)

type sendCall struct {
	text      string
	sessionID string
}

type fakeClient struct {
	mu sync.Mutex

	send   func(ctx context.Context, text, sessionID string) (*chat.SendResponse, error)
	get    func(ctx context.Context, sessionID string) (*chat.SessionMessages, error)
	delErr error
	updErr error

	sendCalls   []sendCall
	getCalls    []string
	deleteCalls []string
	updateCalls []chat.SessionUpdate
}

var _ chat.ConversationClient = &fakeClient{}

func (f *fakeClient) SendMessage(ctx context.Context, text string, sessionID string) (*chat.SendResponse, error) {
	f.mu.Lock()
	f.sendCalls = append(f.sendCalls, sendCall{text: text, sessionID: sessionID})
	send := f.send
	f.mu.Unlock()
	if send == nil {
		return &chat.SendResponse{SessionID: "abc", Message: "reply to " + text}, nil
	}
	return send(ctx, text, sessionID)
}

func (f *fakeClient) GetSessionMessages(ctx context.Context, sessionID string) (*chat.SessionMessages, error) {
	f.mu.Lock()
	f.getCalls = append(f.getCalls, sessionID)
	get := f.get
	f.mu.Unlock()
	if get == nil {
		return &chat.SessionMessages{}, nil
	}
	return get(ctx, sessionID)
}

func (f *fakeClient) GetChatSessions(context.Context, int) (*chat.SessionList, error) {
	return &chat.SessionList{}, nil
}

func (f *fakeClient) DeleteChatSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, sessionID)
	return f.delErr
}

func (f *fakeClient) UpdateChatSession(_ context.Context, _ string, update chat.SessionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, update)
	return f.updErr
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sendCalls) + len(f.getCalls) + len(f.deleteCalls) + len(f.updateCalls)
}

func newTestManager(t *testing.T, client *fakeClient) (*Manager, *sessionstore.InMemoryStore) {
	t.Helper()
	store := sessionstore.NewInMemoryStore()
	var n int64
	m, err := NewManager(Config{
		Client: client,
		Store:  store,
		Now:    func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) },
		NewID:  func() string { return fmt.Sprintf("m%d", atomic.AddInt64(&n, 1)) },
	})
	require.NoError(t, err)
	return m, store
}

func TestNewManager_RequiresClient(t *testing.T) {
	_, err := NewManager(Config{})
	require.Error(t, err)
}

func TestSendMessage_FromIdleBindsSessionAndNotifiesOnce(t *testing.T) {
	client := &fakeClient{}
	m, store := newTestManager(t, client)

	var created []string
	m.Subscribe(SessionObserverFunc(func(_ context.Context, id string) {
		created = append(created, id)
	}))

	ctx := context.Background()
	res, err := m.SendMessage(ctx, "What is the MOQ for lanyards?")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.True(t, res.SessionCreated)
	require.Equal(t, "abc", res.SessionID)
	require.Equal(t, "abc", m.SessionID())
	require.Equal(t, []string{"abc"}, created)

	id, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", id)

	res, err = m.SendMessage(ctx, "And for keychains?")
	require.NoError(t, err)
	require.False(t, res.SessionCreated)
	require.Equal(t, []string{"abc"}, created)
	require.Equal(t, []sendCall{
		{text: "What is the MOQ for lanyards?", sessionID: ""},
		{text: "And for keychains?", sessionID: "abc"},
	}, client.sendCalls)

	st := m.Snapshot()
	require.Equal(t, PhaseActive, st.Phase())
	require.Equal(t, "What is the MOQ for lanyards?", st.Title)
	require.False(t, st.Loading)
	require.Len(t, st.Messages, 4)
	require.Equal(t, chat.SenderUser, st.Messages[0].Sender)
	require.Equal(t, chat.SenderAssistant, st.Messages[1].Sender)
	require.Equal(t, chat.StatusSuccess, st.Messages[1].Status)
	require.Equal(t, "What is the MOQ for lanyards?", st.Messages[1].OriginalQuestion)
	require.Equal(t, "reply to And for keychains?", st.Messages[3].Text)
}

func TestSendMessage_CarriesCitations(t *testing.T) {
	client := &fakeClient{send: func(context.Context, string, string) (*chat.SendResponse, error) {
		return &chat.SendResponse{
			SessionID: "s1",
			Message:   "See [Article 12]",
			Articles:  []chat.ArticleRef{{ID: "12", Title: "Lanyard sizes"}},
		}, nil
	}}
	m, _ := newTestManager(t, client)

	res, err := m.SendMessage(context.Background(), "sizes?")
	require.NoError(t, err)
	require.Equal(t, []chat.ArticleRef{{ID: "12", Title: "Lanyard sizes"}}, res.Reply.Citations)
	require.Equal(t, res.Reply, m.Messages()[1])
}

func TestSendMessage_BlankTextIsNoop(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(t, client)

	res, err := m.SendMessage(context.Background(), "  \n\t")
	require.NoError(t, err)
	require.Nil(t, res)
	require.Equal(t, 0, client.calls())
	require.Equal(t, State{}, m.Snapshot())
}

func TestSendMessage_RateLimitedFailure(t *testing.T) {
	client := &fakeClient{send: func(context.Context, string, string) (*chat.SendResponse, error) {
		return nil, &chat.APIError{Status: 429, Message: "Too Many Requests"}
	}}
	m, store := newTestManager(t, client)

	var notified int
	m.Subscribe(SessionObserverFunc(func(context.Context, string) { notified++ }))

	res, err := m.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, res.Failed())

	st := m.Snapshot()
	require.Len(t, st.Messages, 2)
	require.Equal(t, chat.Message{
		ID:        "m1",
		Text:      "hello",
		Sender:    chat.SenderUser,
		Timestamp: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Status:    chat.StatusSuccess,
	}, st.Messages[0])
	last := st.Messages[1]
	require.Equal(t, chat.StatusError, last.Status)
	require.Equal(t, chat.SenderAssistant, last.Sender)
	require.Equal(t, chat.MessageRateLimited, last.Text)
	require.Equal(t, chat.MessageRateLimited, st.Error)
	require.False(t, st.Loading)

	// a failed first send neither binds a session nor seeds the title
	require.Equal(t, PhaseIdle, st.Phase())
	require.Equal(t, "", st.Title)
	require.Equal(t, 0, notified)
	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSendMessage_NextSendClearsErrorFlag(t *testing.T) {
	fail := true
	client := &fakeClient{send: func(_ context.Context, text, _ string) (*chat.SendResponse, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return &chat.SendResponse{SessionID: "s2", Message: "ok"}, nil
	}}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	_, err := m.SendMessage(ctx, "first")
	require.NoError(t, err)
	require.Equal(t, "boom", m.Snapshot().Error)

	fail = false
	_, err = m.SendMessage(ctx, "second")
	require.NoError(t, err)
	st := m.Snapshot()
	require.Equal(t, "", st.Error)
	require.Equal(t, "s2", st.CurrentSessionID)
	// the failed exchange stays in the history
	require.Len(t, st.Messages, 4)
	require.Equal(t, "second", st.Title)
}

func TestSendMessage_TitleComesFromFirstSuccessfulIdleSend(t *testing.T) {
	fail := true
	client := &fakeClient{send: func(_ context.Context, text, _ string) (*chat.SendResponse, error) {
		if fail {
			return nil, &chat.APIError{Status: 503}
		}
		return &chat.SendResponse{SessionID: "s3", Message: "ok"}, nil
	}}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	_, _ = m.SendMessage(ctx, "this one fails")
	require.Equal(t, "", m.Snapshot().Title)

	fail = false
	_, _ = m.SendMessage(ctx, "this one works")
	require.Equal(t, "this one works", m.Snapshot().Title)
}

func TestSendMessage_LoadingWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := &fakeClient{send: func(context.Context, string, string) (*chat.SendResponse, error) {
		close(started)
		<-release
		return &chat.SendResponse{SessionID: "s4", Message: "done"}, nil
	}}
	m, _ := newTestManager(t, client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.SendMessage(context.Background(), "slow question")
	}()

	<-started
	st := m.Snapshot()
	require.True(t, st.Loading)
	require.Len(t, st.Messages, 1)
	require.Equal(t, "slow question", st.Messages[0].Text)

	close(release)
	<-done
	require.False(t, m.Snapshot().Loading)
}

func TestSendMessage_OverlappingSendsAppendInCompletionOrder(t *testing.T) {
	gates := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	var inFlight sync.WaitGroup
	inFlight.Add(2)
	client := &fakeClient{send: func(_ context.Context, text, _ string) (*chat.SendResponse, error) {
		inFlight.Done()
		<-gates[text]
		return &chat.SendResponse{SessionID: "s5", Message: "re: " + text}, nil
	}}
	m, _ := newTestManager(t, client)

	var notified int32
	m.Subscribe(SessionObserverFunc(func(context.Context, string) { atomic.AddInt32(&notified, 1) }))

	var wg sync.WaitGroup
	for _, text := range []string{"first", "second"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, _ = m.SendMessage(context.Background(), text)
		}(text)
	}
	inFlight.Wait()

	close(gates["second"])
	require.Eventually(t, func() bool { return len(m.Messages()) == 3 }, time.Second, time.Millisecond)
	close(gates["first"])
	wg.Wait()

	msgs := m.Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, chat.SenderUser, msgs[0].Sender)
	require.Equal(t, chat.SenderUser, msgs[1].Sender)
	require.Equal(t, "re: second", msgs[2].Text)
	require.Equal(t, "re: first", msgs[3].Text)
	require.Equal(t, "first", msgs[3].OriginalQuestion)
	require.Equal(t, int32(1), atomic.LoadInt32(&notified))
	require.Equal(t, "s5", m.SessionID())
	require.False(t, m.Snapshot().Loading)
}

func TestSendMessage_ReplyAfterResetIsDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := &fakeClient{send: func(context.Context, string, string) (*chat.SendResponse, error) {
		close(started)
		<-release
		return &chat.SendResponse{SessionID: "late", Message: "late reply"}, nil
	}}
	m, _ := newTestManager(t, client)

	done := make(chan *SendResult, 1)
	go func() {
		res, _ := m.SendMessage(context.Background(), "question")
		done <- res
	}()
	<-started
	m.StartNewChat(context.Background())
	close(release)

	res := <-done
	require.Equal(t, "late reply", res.Reply.Text)
	require.False(t, res.SessionCreated)
	st := m.Snapshot()
	require.Empty(t, st.Messages)
	require.Equal(t, PhaseIdle, st.Phase())
	require.False(t, st.Loading)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(t, client)

	var calls int
	unsubscribe := m.Subscribe(SessionObserverFunc(func(context.Context, string) { calls++ }))
	unsubscribe()
	unsubscribe()

	_, err := m.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, 0, calls)
}

func TestLoadSession_MapsHistory(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	client := &fakeClient{get: func(_ context.Context, id string) (*chat.SessionMessages, error) {
		return &chat.SessionMessages{Messages: []chat.RemoteMessage{
			{ID: "1", Role: "user", Content: "Do you print on both sides of a lanyard?", CreatedAt: t0},
			{ID: "2", Role: "assistant", Content: "Yes, see [Article 44].", CreatedAt: t0.Add(time.Second),
				Metadata: chat.MessageMetadata{Articles: []chat.ArticleRef{{ID: "44", Title: "Double-sided printing"}}}},
			{ID: "3", Role: "user", Content: "What about colours?", CreatedAt: t0.Add(2 * time.Second)},
			{ID: "4", Role: "system", Content: "Up to 4 colours.", CreatedAt: t0.Add(3 * time.Second)},
		}}, nil
	}}
	m, store := newTestManager(t, client)
	ctx := context.Background()

	require.NoError(t, m.LoadSession(ctx, "sess-9"))
	require.Equal(t, []string{"sess-9"}, client.getCalls)

	st := m.Snapshot()
	require.Equal(t, "sess-9", st.CurrentSessionID)
	require.Equal(t, "Do you print on both sides of a lanyard?", st.Title)
	require.Len(t, st.Messages, 4)

	require.Equal(t, chat.SenderUser, st.Messages[0].Sender)
	require.Empty(t, st.Messages[0].OriginalQuestion)
	require.Equal(t, chat.SenderAssistant, st.Messages[1].Sender)
	require.Equal(t, "Do you print on both sides of a lanyard?", st.Messages[1].OriginalQuestion)
	require.Equal(t, []chat.ArticleRef{{ID: "44", Title: "Double-sided printing"}}, st.Messages[1].Citations)
	require.Equal(t, chat.SenderAssistant, st.Messages[3].Sender)
	require.Equal(t, "What about colours?", st.Messages[3].OriginalQuestion)
	require.Equal(t, t0.Add(3*time.Second), st.Messages[3].Timestamp)

	id, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sess-9", id)
}

func TestLoadSession_ConsecutiveAssistantRecordsShareQuestion(t *testing.T) {
	client := &fakeClient{get: func(context.Context, string) (*chat.SessionMessages, error) {
		return &chat.SessionMessages{Messages: []chat.RemoteMessage{
			{ID: "1", Role: "assistant", Content: "Welcome!"},
			{ID: "2", Role: "user", Content: "q1"},
			{ID: "3", Role: "assistant", Content: "part 1"},
			{ID: "4", Role: "assistant", Content: "part 2"},
		}}, nil
	}}
	m, _ := newTestManager(t, client)
	require.NoError(t, m.LoadSession(context.Background(), "s"))

	msgs := m.Messages()
	require.Equal(t, "", msgs[0].OriginalQuestion)
	require.Equal(t, "q1", msgs[2].OriginalQuestion)
	require.Equal(t, "q1", msgs[3].OriginalQuestion)
}

func TestLoadSession_FailureKeepsState(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	_, err := m.SendMessage(ctx, "keep me")
	require.NoError(t, err)
	before := m.Snapshot()

	client.get = func(context.Context, string) (*chat.SessionMessages, error) {
		return nil, &chat.APIError{Status: 404, Message: "not found"}
	}
	err = m.LoadSession(ctx, "other")
	require.Error(t, err)

	after := m.Snapshot()
	require.Equal(t, chat.MessageLoadFailed, after.Error)
	after.Error = ""
	require.Equal(t, before, after)
}

func TestLoadSession_EmptyID(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(t, client)
	require.ErrorIs(t, m.LoadSession(context.Background(), " "), chat.ErrEmptySessionID)
	require.Equal(t, 0, client.calls())
}

func TestHydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("no stored session", func(t *testing.T) {
		client := &fakeClient{}
		m, _ := newTestManager(t, client)
		require.NoError(t, m.Hydrate(ctx))
		require.Equal(t, 0, client.calls())
		require.Equal(t, PhaseIdle, m.Snapshot().Phase())
	})

	t.Run("restores stored session", func(t *testing.T) {
		client := &fakeClient{get: func(context.Context, string) (*chat.SessionMessages, error) {
			return &chat.SessionMessages{Messages: []chat.RemoteMessage{{ID: "1", Role: "user", Content: "hi"}}}, nil
		}}
		m, store := newTestManager(t, client)
		require.NoError(t, store.Save(ctx, "stored"))

		require.NoError(t, m.Hydrate(ctx))
		st := m.Snapshot()
		require.Equal(t, "stored", st.CurrentSessionID)
		require.Equal(t, "hi", st.Title)
		require.False(t, st.LoadFailed)
	})

	t.Run("failed restore stays idle", func(t *testing.T) {
		client := &fakeClient{get: func(context.Context, string) (*chat.SessionMessages, error) {
			return nil, errors.New("gone")
		}}
		m, store := newTestManager(t, client)
		require.NoError(t, store.Save(ctx, "stored"))

		require.Error(t, m.Hydrate(ctx))
		st := m.Snapshot()
		require.Equal(t, PhaseIdle, st.Phase())
		require.True(t, st.LoadFailed)
		require.Empty(t, st.Messages)
	})
}

func TestStartNewChat_ClearsEverythingAndIsIdempotent(t *testing.T) {
	client := &fakeClient{}
	m, store := newTestManager(t, client)
	ctx := context.Background()

	_, err := m.SendMessage(ctx, "hello")
	require.NoError(t, err)

	m.StartNewChat(ctx)
	m.StartNewChat(ctx)

	require.Equal(t, State{}, m.Snapshot())
	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStartNewChat_ClearsLoadFailed(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{get: func(context.Context, string) (*chat.SessionMessages, error) {
		return nil, errors.New("gone")
	}}
	m, store := newTestManager(t, client)
	require.NoError(t, store.Save(ctx, "stale"))

	require.Error(t, m.Hydrate(ctx))
	require.True(t, m.Snapshot().LoadFailed)

	m.StartNewChat(ctx)
	require.False(t, m.Snapshot().LoadFailed)

	_, err := m.SendMessage(ctx, "hello")
	require.NoError(t, err)
	st := m.Snapshot()
	require.Equal(t, PhaseActive, st.Phase())
	require.False(t, st.LoadFailed)
}

func TestSendMessage_BindingSessionClearsLoadFailed(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{get: func(context.Context, string) (*chat.SessionMessages, error) {
		return nil, errors.New("gone")
	}}
	m, store := newTestManager(t, client)
	require.NoError(t, store.Save(ctx, "stale"))
	require.Error(t, m.Hydrate(ctx))

	res, err := m.SendMessage(ctx, "hello")
	require.NoError(t, err)
	require.True(t, res.SessionCreated)
	require.False(t, m.Snapshot().LoadFailed)
}

func TestDeleteCurrentSession_IdleIsNoop(t *testing.T) {
	client := &fakeClient{send: func(context.Context, string, string) (*chat.SendResponse, error) {
		return nil, errors.New("offline")
	}}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	_, _ = m.SendMessage(ctx, "queued while idle")
	before := m.Snapshot()
	callsBefore := client.calls()

	require.NoError(t, m.DeleteCurrentSession(ctx))
	require.Equal(t, callsBefore, client.calls())
	require.Empty(t, client.deleteCalls)
	require.Equal(t, before, m.Snapshot())
}

func TestDeleteCurrentSession_ResetsEvenWhenRemoteFails(t *testing.T) {
	client := &fakeClient{}
	m, store := newTestManager(t, client)
	ctx := context.Background()

	_, err := m.SendMessage(ctx, "hello")
	require.NoError(t, err)
	client.delErr = &chat.APIError{Status: 500}

	err = m.DeleteCurrentSession(ctx)
	require.Error(t, err)
	require.Equal(t, []string{"abc"}, client.deleteCalls)

	st := m.Snapshot()
	require.Equal(t, PhaseIdle, st.Phase())
	require.Empty(t, st.Messages)
	require.Equal(t, chat.MessageDeleteFailed, st.Error)
	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteCurrentSession_Success(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	_, err := m.SendMessage(ctx, "hello")
	require.NoError(t, err)
	require.NoError(t, m.DeleteCurrentSession(ctx))
	require.Equal(t, State{}, m.Snapshot())
}

func TestUpdateSessionTitle(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	// idle: ignored
	require.NoError(t, m.UpdateSessionTitle(ctx, "Renamed"))
	require.Empty(t, client.updateCalls)

	_, err := m.SendMessage(ctx, "original question")
	require.NoError(t, err)

	require.NoError(t, m.UpdateSessionTitle(ctx, "  "))
	require.Empty(t, client.updateCalls)

	require.NoError(t, m.UpdateSessionTitle(ctx, "Lanyard pricing"))
	require.Equal(t, []chat.SessionUpdate{{Title: "Lanyard pricing"}}, client.updateCalls)
	require.Equal(t, "Lanyard pricing", m.Snapshot().Title)

	client.updErr = errors.New("nope")
	require.Error(t, m.UpdateSessionTitle(ctx, "Other"))
	st := m.Snapshot()
	require.Equal(t, "Lanyard pricing", st.Title)
	require.Equal(t, chat.MessageRenameFailed, st.Error)
}

func TestClearMessages_KeepsSession(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	_, err := m.SendMessage(ctx, "hello")
	require.NoError(t, err)
	m.ClearMessages()

	st := m.Snapshot()
	require.Empty(t, st.Messages)
	require.Equal(t, "abc", st.CurrentSessionID)
	require.Equal(t, "hello", st.Title)
	require.Equal(t, 0, len(client.deleteCalls))
}

func TestSnapshot_IsACopy(t *testing.T) {
	client := &fakeClient{send: func(context.Context, string, string) (*chat.SendResponse, error) {
		return &chat.SendResponse{SessionID: "s", Message: "r", Articles: []chat.ArticleRef{{ID: "1"}}}, nil
	}}
	m, _ := newTestManager(t, client)
	_, err := m.SendMessage(context.Background(), "q")
	require.NoError(t, err)

	st := m.Snapshot()
	st.Messages[1].Citations[0].ID = "mutated"
	st.Messages[0].Text = "mutated"

	again := m.Snapshot()
	require.Equal(t, "1", again.Messages[1].Citations[0].ID)
	require.Equal(t, "q", again.Messages[0].Text)
}
