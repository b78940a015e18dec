package ui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		kind CommandKind
		arg  string
	}{
		{"hello there", CommandNone, ""},
		{"  /new ", CommandNew, ""},
		{"/RENAME  Billing question ", CommandRename, "Billing question"},
		{"/open 2", CommandOpen, "2"},
		{"/exit", CommandQuit, ""},
		{"/frobnicate", CommandUnknown, ""},
		{"//etc/hosts is missing", CommandNone, ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			c := ParseCommand(tc.in)
			require.Equal(t, tc.kind, c.Kind)
			require.Equal(t, tc.arg, c.Arg)
		})
	}
}

func TestMessageText_StripsEscape(t *testing.T) {
	require.Equal(t, "/etc/hosts is missing", messageText("//etc/hosts is missing"))
	require.Equal(t, "plain", messageText("plain"))
}

func TestCitationTarget(t *testing.T) {
	messages := []chat.Message{
		{Sender: chat.SenderAssistant, Status: chat.StatusSuccess, Text: "See [Article 1]"},
		{Sender: chat.SenderUser, Text: "more?"},
		{Sender: chat.SenderAssistant, Status: chat.StatusSuccess, Text: "Try [Article 7] and [ID: 9], again [Article 7]"},
		{Sender: chat.SenderAssistant, Status: chat.StatusError, Text: "Too many requests [Article 5]"},
	}

	id, err := citationTarget(messages, "")
	require.NoError(t, err)
	require.Equal(t, "7", id)

	id, err = citationTarget(messages, "2")
	require.NoError(t, err)
	require.Equal(t, "9", id)

	_, err = citationTarget(messages, "3")
	require.Error(t, err)
	_, err = citationTarget(messages, "zero")
	require.Error(t, err)
}

func TestCitationTarget_FallsBackToArticleList(t *testing.T) {
	messages := []chat.Message{
		{Sender: chat.SenderAssistant, Status: chat.StatusSuccess, Text: "No inline refs", Citations: []chat.ArticleRef{{ID: "42"}}},
	}
	id, err := citationTarget(messages, "1")
	require.NoError(t, err)
	require.Equal(t, "42", id)

	_, err = citationTarget(nil, "1")
	require.Error(t, err)
}
