package chat

import "time"

// Sender identifies who authored a message in the visible history.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Status tracks the delivery state of a message.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ArticleRef is a knowledge-base article cited by an assistant reply.
type ArticleRef struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Session is a persisted conversation thread. The ID is assigned by the
// remote service on the first successful send and never changes afterwards.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one entry of the conversation history as shown to the user.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`

	// Citations and OriginalQuestion are only set on assistant messages.
	Citations        []ArticleRef `json:"citations,omitempty"`
	OriginalQuestion string       `json:"original_question,omitempty"`
}

func (m Message) IsUser() bool      { return m.Sender == SenderUser }
func (m Message) IsAssistant() bool { return m.Sender == SenderAssistant }
func (m Message) IsError() bool     { return m.Status == StatusError }

// Article is the full content behind a citation.
type Article struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// CloneMessages returns a deep copy so callers can hold on to a snapshot
// while the owner keeps appending.
func CloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m
		if m.Citations != nil {
			out[i].Citations = append([]ArticleRef(nil), m.Citations...)
		}
	}
	return out
}
