package chat

import (
	"context"
	"time"
)

// ConversationClient is the remote conversation service.
type ConversationClient interface {
	// SendMessage posts text to the assistant. An empty sessionID asks the
	// service to open a new session, whose id is returned in the response.
	SendMessage(ctx context.Context, text string, sessionID string) (*SendResponse, error)
	GetSessionMessages(ctx context.Context, sessionID string) (*SessionMessages, error)
	GetChatSessions(ctx context.Context, limit int) (*SessionList, error)
	DeleteChatSession(ctx context.Context, sessionID string) error
	UpdateChatSession(ctx context.Context, sessionID string, update SessionUpdate) error
}

// ArticleFetcher resolves a citation to its article content.
type ArticleFetcher interface {
	GetArticle(ctx context.Context, articleID string) (*Article, error)
}

type SendResponse struct {
	SessionID string       `json:"sessionId"`
	Message   string       `json:"message"`
	Articles  []ArticleRef `json:"articles"`
}

type MessageMetadata struct {
	Articles []ArticleRef `json:"articles,omitempty"`
}

// RemoteMessage is a history record as stored by the service.
type RemoteMessage struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	Role      string          `json:"role"`
	CreatedAt time.Time       `json:"created_at"`
	Metadata  MessageMetadata `json:"metadata"`
}

type SessionMessages struct {
	Messages []RemoteMessage `json:"messages"`
}

type SessionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionList struct {
	Sessions []SessionSummary `json:"sessions"`
}

type SessionUpdate struct {
	Title string `json:"title"`
}
