package lifecycle

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/persistence/sessionstore"
)

type Config struct {
	Client chat.ConversationClient
	// Store persists the current session id. Defaults to an in-memory slot.
	Store sessionstore.Store
	Now   func() time.Time
	NewID func() string
}

// Manager owns the session id, the visible message history and the
// loading/error flags of one chat view.
//
// Operations may be called from several goroutines. The lock is never held
// across a network call, so overlapping sends each append their user
// message immediately and their replies land in completion order.
type Manager struct {
	client chat.ConversationClient
	store  sessionstore.Store
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger

	mu         sync.Mutex
	sessionID  string
	messages   []chat.Message
	title      string
	errMsg     string
	inflight   int
	loadFailed bool
	// generation changes whenever the view is reset or replaced; replies
	// that resolve for an older generation are dropped.
	generation uint64

	observers      map[int]SessionObserver
	nextObserverID int
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Client == nil {
		return nil, errors.New("lifecycle manager: conversation client is nil")
	}
	m := &Manager{
		client:    cfg.Client,
		store:     cfg.Store,
		now:       cfg.Now,
		newID:     cfg.NewID,
		logger:    log.With().Str("component", "lifecycle").Logger(),
		observers: map[int]SessionObserver{},
	}
	if m.store == nil {
		m.store = sessionstore.NewInMemoryStore()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m, nil
}

// Subscribe registers o for session-created notifications and returns a
// function that removes it again.
func (m *Manager) Subscribe(o SessionObserver) func() {
	if m == nil || o == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextObserverID
	m.nextObserverID++
	m.observers[id] = o
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		CurrentSessionID: m.sessionID,
		Messages:         chat.CloneMessages(m.messages),
		Loading:          m.inflight > 0,
		Error:            m.errMsg,
		Title:            m.title,
		LoadFailed:       m.loadFailed,
	}
}

func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

func (m *Manager) Messages() []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return chat.CloneMessages(m.messages)
}

// Hydrate restores the session recorded in the store, if any. A failed
// restore leaves the manager idle with LoadFailed set.
func (m *Manager) Hydrate(ctx context.Context) error {
	id, ok, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not read stored session id")
		m.setLoadFailed()
		return errors.Wrap(err, "hydrate")
	}
	if !ok {
		return nil
	}
	if err := m.LoadSession(ctx, id); err != nil {
		m.logger.Warn().Err(err).Str("session_id", id).Msg("could not restore stored session")
		m.setLoadFailed()
		return errors.Wrap(err, "hydrate")
	}
	return nil
}

func (m *Manager) setLoadFailed() {
	m.mu.Lock()
	m.loadFailed = true
	m.mu.Unlock()
}

// LoadSession replaces the view with the remote history of sessionID. On
// failure only the error flag changes.
func (m *Manager) LoadSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return chat.ErrEmptySessionID
	}

	m.mu.Lock()
	m.inflight++
	m.mu.Unlock()

	resp, err := m.client.GetSessionMessages(ctx, sessionID)

	m.mu.Lock()
	m.inflight--
	if err != nil {
		m.errMsg = chat.MessageLoadFailed
		m.mu.Unlock()
		m.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to load conversation")
		return errors.Wrap(err, "load session")
	}
	var records []chat.RemoteMessage
	if resp != nil {
		records = resp.Messages
	}
	messages := convertRemoteMessages(records)
	m.generation++
	m.sessionID = sessionID
	m.messages = messages
	m.title = titleFromMessages(messages)
	m.errMsg = ""
	m.loadFailed = false
	m.mu.Unlock()

	m.persist(ctx, sessionID)
	m.logger.Info().Str("session_id", sessionID).Int("message_count", len(messages)).Msg("loaded conversation")
	return nil
}

// StartNewChat drops the bound session and clears the view. It is safe to
// call repeatedly.
func (m *Manager) StartNewChat(ctx context.Context) {
	m.mu.Lock()
	m.generation++
	m.sessionID = ""
	m.messages = nil
	m.title = ""
	m.errMsg = ""
	m.loadFailed = false
	m.mu.Unlock()

	m.persist(ctx, "")
}

// SendMessage appends text optimistically and asks the service for a reply.
// Blank text is ignored and yields a nil result. Remote failures are
// classified into a synthetic error reply instead of being returned.
func (m *Manager) SendMessage(ctx context.Context, text string) (*SendResult, error) {
	if m == nil {
		return nil, errors.New("lifecycle manager is nil")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	m.mu.Lock()
	sessionID := m.sessionID
	wasIdle := sessionID == ""
	generation := m.generation
	userMsg := chat.Message{
		ID:        m.newID(),
		Text:      text,
		Sender:    chat.SenderUser,
		Timestamp: m.now(),
		Status:    chat.StatusSuccess,
	}
	m.messages = append(m.messages, userMsg)
	m.inflight++
	m.errMsg = ""
	m.mu.Unlock()

	logger := m.logger.With().Str("session_id", sessionID).Logger()
	logger.Debug().Int("length", len(text)).Msg("sending message")

	resp, err := m.client.SendMessage(ctx, text, sessionID)

	result := &SendResult{UserMessage: userMsg}
	var observers []SessionObserver

	m.mu.Lock()
	m.inflight--
	stale := generation != m.generation
	switch {
	case err != nil:
		classified := chat.ClassifyError(err)
		result.Reply = chat.Message{
			ID:               m.newID(),
			Text:             classified,
			Sender:           chat.SenderAssistant,
			Timestamp:        m.now(),
			Status:           chat.StatusError,
			OriginalQuestion: text,
		}
		if !stale {
			m.messages = append(m.messages, result.Reply)
			m.errMsg = classified
		}
	default:
		if resp == nil {
			resp = &chat.SendResponse{}
		}
		result.Reply = chat.Message{
			ID:               m.newID(),
			Text:             resp.Message,
			Sender:           chat.SenderAssistant,
			Timestamp:        m.now(),
			Status:           chat.StatusSuccess,
			Citations:        append([]chat.ArticleRef(nil), resp.Articles...),
			OriginalQuestion: text,
		}
		if !stale {
			if wasIdle && resp.SessionID != "" && m.sessionID == "" {
				m.sessionID = resp.SessionID
				m.loadFailed = false
				result.SessionCreated = true
				result.SessionID = resp.SessionID
				for _, o := range m.observers {
					observers = append(observers, o)
				}
			}
			m.messages = append(m.messages, result.Reply)
			if wasIdle && m.title == "" {
				m.title = chat.GenerateTitle(text)
			}
		}
	}
	m.mu.Unlock()

	if stale {
		logger.Warn().Msg("dropping reply for a conversation that was reset while the request was in flight")
		return result, nil
	}
	if err != nil {
		logger.Warn().Err(err).Str("classified", result.Reply.Text).Msg("send message failed")
		return result, nil
	}
	if result.SessionCreated {
		m.persist(ctx, result.SessionID)
		logger.Info().Str("new_session_id", result.SessionID).Msg("session created")
		for _, o := range observers {
			o.SessionCreated(ctx, result.SessionID)
		}
	}
	return result, nil
}

// DeleteCurrentSession deletes the bound session remotely and resets the
// view whatever the remote outcome. Idle managers make no remote call.
func (m *Manager) DeleteCurrentSession(ctx context.Context) error {
	sessionID := m.SessionID()
	if sessionID == "" {
		return nil
	}

	err := m.client.DeleteChatSession(ctx, sessionID)
	m.StartNewChat(ctx)
	if err != nil {
		m.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to delete conversation")
		m.mu.Lock()
		m.errMsg = chat.MessageDeleteFailed
		m.mu.Unlock()
		return errors.Wrap(err, "delete session")
	}
	m.logger.Info().Str("session_id", sessionID).Msg("deleted conversation")
	return nil
}

// UpdateSessionTitle renames the bound session. Idle managers and blank
// titles are ignored.
func (m *Manager) UpdateSessionTitle(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	sessionID := m.SessionID()
	if sessionID == "" || title == "" {
		return nil
	}

	if err := m.client.UpdateChatSession(ctx, sessionID, chat.SessionUpdate{Title: title}); err != nil {
		m.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to rename conversation")
		m.mu.Lock()
		m.errMsg = chat.MessageRenameFailed
		m.mu.Unlock()
		return errors.Wrap(err, "update session title")
	}

	m.mu.Lock()
	if m.sessionID == sessionID {
		m.title = title
	}
	m.mu.Unlock()
	return nil
}

// ClearMessages empties the visible history without touching the session.
func (m *Manager) ClearMessages() {
	m.mu.Lock()
	m.messages = nil
	m.mu.Unlock()
}

func (m *Manager) persist(ctx context.Context, sessionID string) {
	if err := m.store.Save(ctx, sessionID); err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("could not persist current session id")
	}
}
