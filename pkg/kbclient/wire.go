package kbclient

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
)

// flexID accepts both JSON strings and numbers; the platform uses numeric
// ids for articles and messages and opaque strings for sessions.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type wireArticleRef struct {
	ID    flexID `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (a wireArticleRef) toChat() chat.ArticleRef {
	return chat.ArticleRef{ID: string(a.ID), Title: a.Title, URL: a.URL}
}

func articleRefs(in []wireArticleRef) []chat.ArticleRef {
	if len(in) == 0 {
		return nil
	}
	out := make([]chat.ArticleRef, 0, len(in))
	for _, a := range in {
		out = append(out, a.toChat())
	}
	return out
}

type sendRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"sessionId"`
}

type sendResponse struct {
	SessionID flexID           `json:"sessionId"`
	Message   string           `json:"message"`
	Articles  []wireArticleRef `json:"articles"`
}

type wireMessage struct {
	ID        flexID    `json:"id"`
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  struct {
		Articles []wireArticleRef `json:"articles"`
	} `json:"metadata"`
}

type messagesResponse struct {
	Messages []wireMessage `json:"messages"`
}

type wireSession struct {
	ID        flexID    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

type sessionsResponse struct {
	Sessions []wireSession `json:"sessions"`
}

type wireArticle struct {
	ID          flexID `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// text prefers the service's "error" field and falls back to "message".
func (e errorResponse) text() string {
	if m := strings.TrimSpace(e.Error); m != "" {
		return m
	}
	return strings.TrimSpace(e.Message)
}
