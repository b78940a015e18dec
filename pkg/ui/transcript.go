package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/render"
)

// RenderTranscript draws the message history. Citations are tokenized at
// paint time; nothing rendered here is stored back on the messages.
func RenderTranscript(messages []chat.Message, r *render.TerminalRenderer, width int) string {
	if len(messages) == 0 {
		return emptyStyle.Width(max(width, 1)).Render("Ask a question to start a conversation.")
	}
	body := lipgloss.NewStyle()
	if width > 4 {
		body = body.Width(width - 2)
	}

	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		ts := ""
		if !m.Timestamp.IsZero() {
			ts = " " + timeStyle.Render(m.Timestamp.Local().Format("15:04"))
		}
		switch {
		case m.IsUser():
			sb.WriteString(userLabelStyle.Render("You") + ts + "\n")
			sb.WriteString(body.Render(m.Text))
		case m.IsError():
			sb.WriteString(botLabelStyle.Render("Assistant") + ts + "\n")
			sb.WriteString(errorStyle.Render(m.Text))
		default:
			sb.WriteString(botLabelStyle.Render("Assistant") + ts + "\n")
			sb.WriteString(body.Render(r.Render(m.Text)))
			if s := formatSources(m.Citations); s != "" {
				sb.WriteString("\n")
				sb.WriteString(sourceStyle.Render(s))
			}
		}
	}
	return sb.String()
}

func formatSources(refs []chat.ArticleRef) string {
	if len(refs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(refs))
	for _, a := range refs {
		if a.Title != "" {
			parts = append(parts, fmt.Sprintf("%s (#%s)", a.Title, a.ID))
		} else {
			parts = append(parts, "#"+a.ID)
		}
	}
	return "Sources: " + strings.Join(parts, ", ")
}
