package kbclient

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
)

// InMemoryClient is an offline stand-in for the knowledge-base service.
// Replies are canned: each one cites the article whose keywords best match
// the question. Failures can be injected for demos and tests.
type InMemoryClient struct {
	mu sync.Mutex

	now   func() time.Time
	newID func() string

	articles []chat.Article
	sessions map[string]*memSession
	nextMsg  int

	failNext error
	latency  time.Duration
}

type memSession struct {
	summary  chat.SessionSummary
	messages []chat.RemoteMessage
}

var (
	_ chat.ConversationClient = &InMemoryClient{}
	_ chat.ArticleFetcher     = &InMemoryClient{}
)

type MemoryOption func(*InMemoryClient)

func WithArticles(articles ...chat.Article) MemoryOption {
	return func(c *InMemoryClient) { c.articles = append([]chat.Article(nil), articles...) }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(c *InMemoryClient) {
		if now != nil {
			c.now = now
		}
	}
}

func WithIDGenerator(newID func() string) MemoryOption {
	return func(c *InMemoryClient) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithLatency delays every send, which makes the loading state visible.
func WithLatency(d time.Duration) MemoryOption {
	return func(c *InMemoryClient) { c.latency = d }
}

func NewInMemoryClient(opts ...MemoryOption) *InMemoryClient {
	c := &InMemoryClient{
		now:      time.Now,
		newID:    uuid.NewString,
		articles: DefaultArticles(),
		sessions: map[string]*memSession{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DefaultArticles is the small catalogue served in offline mode.
func DefaultArticles() []chat.Article {
	return []chat.Article{
		{ID: "101", Title: "Ordering custom lanyards", Body: "# Ordering custom lanyards\n\nUpload your **logo** in the designer, pick a width and attachment, then confirm the proof.\n\n- Minimum order: 50 units\n- Production time: 7 business days"},
		{ID: "102", Title: "Shipping and delivery times", Body: "# Shipping and delivery\n\nStandard shipping takes 3-5 business days. *Express* shipping is available at checkout.\n\nTracking numbers are emailed once the order leaves the warehouse."},
		{ID: "103", Title: "Returns and refunds", Body: "# Returns and refunds\n\nCustom printed items can only be returned when they arrive damaged.\n\nOpen a ticket with a photo of the damage within 14 days."},
		{ID: "104", Title: "Resetting your password", Body: "# Resetting your password\n\nUse the `Forgot password` link on the sign-in page. The reset link expires after one hour."},
	}
}

var articleKeywords = map[string][]string{
	"101": {"lanyard", "logo", "custom", "order", "print"},
	"102": {"ship", "deliver", "track", "express"},
	"103": {"return", "refund", "damage"},
	"104": {"password", "sign in", "login", "reset"},
}

// FailNext makes the next SendMessage return err.
func (c *InMemoryClient) FailNext(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = err
}

func (c *InMemoryClient) SendMessage(ctx context.Context, text string, sessionID string) (*chat.SendResponse, error) {
	if c.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.latency):
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failNext; err != nil {
		c.failNext = nil
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, &chat.APIError{Status: 400, Message: "message is required"}
	}

	now := c.now()
	var s *memSession
	if sessionID != "" {
		var ok bool
		s, ok = c.sessions[sessionID]
		if !ok {
			return nil, &chat.APIError{Status: 404, Message: "session not found"}
		}
	} else {
		id := c.newID()
		s = &memSession{summary: chat.SessionSummary{ID: id, Title: chat.GenerateTitle(text)}}
		c.sessions[id] = s
	}

	reply, refs := c.compose(text)
	s.messages = append(s.messages,
		chat.RemoteMessage{ID: c.msgID(), Content: text, Role: "user", CreatedAt: now},
		chat.RemoteMessage{ID: c.msgID(), Content: reply, Role: "assistant", CreatedAt: now, Metadata: chat.MessageMetadata{Articles: refs}},
	)
	s.summary.UpdatedAt = now

	return &chat.SendResponse{
		SessionID: s.summary.ID,
		Message:   reply,
		Articles:  append([]chat.ArticleRef(nil), refs...),
	}, nil
}

func (c *InMemoryClient) compose(question string) (string, []chat.ArticleRef) {
	a, ok := c.bestArticle(question)
	if !ok {
		return "I could not find an article about that. Could you rephrase your question?", nil
	}
	reply := fmt.Sprintf("**%s** should help here [Article %s]. See also Article #%s for the details.", a.Title, a.ID, a.ID)
	return reply, []chat.ArticleRef{{ID: a.ID, Title: a.Title, URL: a.URL}}
}

func (c *InMemoryClient) bestArticle(question string) (chat.Article, bool) {
	q := strings.ToLower(question)
	best, bestScore := -1, 0
	for i, a := range c.articles {
		score := 0
		for _, kw := range articleKeywords[a.ID] {
			if strings.Contains(q, kw) {
				score++
			}
		}
		for _, w := range strings.Fields(strings.ToLower(a.Title)) {
			if len(w) > 3 && strings.Contains(q, w) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return chat.Article{}, false
	}
	return c.articles[best], true
}

func (c *InMemoryClient) msgID() string {
	c.nextMsg++
	return strconv.Itoa(c.nextMsg)
}

func (c *InMemoryClient) GetSessionMessages(_ context.Context, sessionID string) (*chat.SessionMessages, error) {
	if sessionID == "" {
		return nil, chat.ErrEmptySessionID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, &chat.APIError{Status: 404, Message: "session not found"}
	}
	out := make([]chat.RemoteMessage, len(s.messages))
	for i, m := range s.messages {
		out[i] = m
		out[i].Metadata.Articles = append([]chat.ArticleRef(nil), m.Metadata.Articles...)
	}
	return &chat.SessionMessages{Messages: out}, nil
}

// GetChatSessions returns sessions most recently updated first.
func (c *InMemoryClient) GetChatSessions(_ context.Context, limit int) (*chat.SessionList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.SessionSummary, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s.summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return &chat.SessionList{Sessions: out}, nil
}

func (c *InMemoryClient) DeleteChatSession(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return chat.ErrEmptySessionID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[sessionID]; !ok {
		return &chat.APIError{Status: 404, Message: "session not found"}
	}
	delete(c.sessions, sessionID)
	return nil
}

func (c *InMemoryClient) UpdateChatSession(_ context.Context, sessionID string, update chat.SessionUpdate) error {
	if sessionID == "" {
		return chat.ErrEmptySessionID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return &chat.APIError{Status: 404, Message: "session not found"}
	}
	s.summary.Title = update.Title
	s.summary.UpdatedAt = c.now()
	return nil
}

func (c *InMemoryClient) GetArticle(_ context.Context, articleID string) (*chat.Article, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.articles {
		if a.ID == articleID {
			cp := a
			return &cp, nil
		}
	}
	return nil, &chat.APIError{Status: 404, Message: "article not found"}
}
