package kbclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/references"
)

func newTestMemoryClient() *InMemoryClient {
	n := 0
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return NewInMemoryClient(
		WithIDGenerator(func() string { n++; return fmt.Sprintf("s%d", n) }),
		WithClock(func() time.Time { clock = clock.Add(time.Second); return clock }),
	)
}

func TestInMemoryClient_SendCreatesSessionAndCites(t *testing.T) {
	c := newTestMemoryClient()
	ctx := context.Background()

	resp, err := c.SendMessage(ctx, "How do I order custom lanyards?", "")
	require.NoError(t, err)
	require.Equal(t, "s1", resp.SessionID)
	require.Len(t, resp.Articles, 1)
	require.Equal(t, "101", resp.Articles[0].ID)

	tokens := references.Tokenize(resp.Message)
	require.Equal(t, []string{"101"}, references.ModalCitations(tokens))

	msgs, err := c.GetSessionMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs.Messages, 2)
	require.Equal(t, "user", msgs.Messages[0].Role)
	require.Equal(t, "assistant", msgs.Messages[1].Role)

	resp, err = c.SendMessage(ctx, "and shipping?", "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", resp.SessionID)
	require.Equal(t, "102", resp.Articles[0].ID)
}

func TestInMemoryClient_NoMatch(t *testing.T) {
	c := newTestMemoryClient()
	resp, err := c.SendMessage(context.Background(), "hello there", "")
	require.NoError(t, err)
	require.Empty(t, resp.Articles)
}

func TestInMemoryClient_UnknownSession(t *testing.T) {
	c := newTestMemoryClient()
	_, err := c.SendMessage(context.Background(), "hi", "missing")
	var apiErr *chat.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 404, apiErr.Status)
}

func TestInMemoryClient_FailNext(t *testing.T) {
	c := newTestMemoryClient()
	c.FailNext(&chat.APIError{Status: 429})
	_, err := c.SendMessage(context.Background(), "hi", "")
	require.Error(t, err)
	require.Equal(t, chat.MessageRateLimited, chat.ClassifyError(err))

	_, err = c.SendMessage(context.Background(), "hi", "")
	require.NoError(t, err)
}

func TestInMemoryClient_SessionListOrderAndLimit(t *testing.T) {
	c := newTestMemoryClient()
	ctx := context.Background()
	for _, q := range []string{"first", "second", "third"} {
		_, err := c.SendMessage(ctx, q, "")
		require.NoError(t, err)
	}
	list, err := c.GetChatSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list.Sessions, 2)
	require.Equal(t, "s3", list.Sessions[0].ID)
	require.Equal(t, "s2", list.Sessions[1].ID)

	require.NoError(t, c.UpdateChatSession(ctx, "s1", chat.SessionUpdate{Title: "Pinned"}))
	list, err = c.GetChatSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list.Sessions, 3)
	require.Equal(t, "Pinned", list.Sessions[0].Title)

	require.NoError(t, c.DeleteChatSession(ctx, "s1"))
	require.Error(t, c.DeleteChatSession(ctx, "s1"))
	list, err = c.GetChatSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list.Sessions, 2)
}

func TestInMemoryClient_GetArticle(t *testing.T) {
	c := newTestMemoryClient()
	a, err := c.GetArticle(context.Background(), "103")
	require.NoError(t, err)
	require.Equal(t, "Returns and refunds", a.Title)

	_, err = c.GetArticle(context.Background(), "999")
	require.Error(t, err)
}
