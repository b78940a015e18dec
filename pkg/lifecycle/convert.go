package lifecycle

import (
	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
)

const roleUser = "user"

// convertRemoteMessages maps service records onto the visible message
// shape. Any role other than "user" is shown as the assistant.
func convertRemoteMessages(records []chat.RemoteMessage) []chat.Message {
	out := make([]chat.Message, 0, len(records))
	for i, r := range records {
		msg := chat.Message{
			ID:        r.ID,
			Text:      r.Content,
			Sender:    chat.SenderAssistant,
			Timestamp: r.CreatedAt,
			Status:    chat.StatusSuccess,
		}
		if r.Role == roleUser {
			msg.Sender = chat.SenderUser
		} else {
			msg.Citations = append([]chat.ArticleRef(nil), r.Metadata.Articles...)
			msg.OriginalQuestion = precedingQuestion(records, i)
		}
		out = append(out, msg)
	}
	return out
}

// precedingQuestion returns the nearest user message before index i.
// NOTE: this assumes the history alternates user/assistant. Consecutive
// assistant records (multi-part replies) all point at the same question.
func precedingQuestion(records []chat.RemoteMessage, i int) string {
	for j := i - 1; j >= 0; j-- {
		if records[j].Role == roleUser {
			return records[j].Content
		}
	}
	return ""
}

func titleFromMessages(messages []chat.Message) string {
	for _, m := range messages {
		if m.IsUser() {
			return chat.GenerateTitle(m.Text)
		}
	}
	return ""
}
