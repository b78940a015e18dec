package kbclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
)

const maxErrorBody = 64 << 10

// HTTPClient talks JSON to the knowledge-base chat API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var (
	_ chat.ConversationClient = &HTTPClient{}
	_ chat.ArticleFetcher     = &HTTPClient{}
)

type HTTPOption func(*HTTPClient)

func WithToken(token string) HTTPOption {
	return func(c *HTTPClient) { c.token = strings.TrimSpace(token) }
}

func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("kb client: empty base URL")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "kb client: invalid base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("kb client: unsupported scheme %q", u.Scheme)
	}
	c := &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, text string, sessionID string) (*chat.SendResponse, error) {
	req := sendRequest{Message: text}
	if sessionID != "" {
		req.SessionID = &sessionID
	}
	var resp sendResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", nil, req, &resp); err != nil {
		return nil, err
	}
	return &chat.SendResponse{
		SessionID: string(resp.SessionID),
		Message:   resp.Message,
		Articles:  articleRefs(resp.Articles),
	}, nil
}

func (c *HTTPClient) GetSessionMessages(ctx context.Context, sessionID string) (*chat.SessionMessages, error) {
	if sessionID == "" {
		return nil, chat.ErrEmptySessionID
	}
	var resp messagesResponse
	p := "/api/chat/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.do(ctx, http.MethodGet, p, nil, nil, &resp); err != nil {
		return nil, err
	}
	out := &chat.SessionMessages{Messages: make([]chat.RemoteMessage, 0, len(resp.Messages))}
	for _, m := range resp.Messages {
		out.Messages = append(out.Messages, chat.RemoteMessage{
			ID:        string(m.ID),
			Content:   m.Content,
			Role:      m.Role,
			CreatedAt: m.CreatedAt,
			Metadata:  chat.MessageMetadata{Articles: articleRefs(m.Metadata.Articles)},
		})
	}
	return out, nil
}

func (c *HTTPClient) GetChatSessions(ctx context.Context, limit int) (*chat.SessionList, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp sessionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/chat/sessions", q, nil, &resp); err != nil {
		return nil, err
	}
	out := &chat.SessionList{Sessions: make([]chat.SessionSummary, 0, len(resp.Sessions))}
	for _, s := range resp.Sessions {
		out.Sessions = append(out.Sessions, chat.SessionSummary{ID: string(s.ID), Title: s.Title, UpdatedAt: s.UpdatedAt})
	}
	return out, nil
}

func (c *HTTPClient) DeleteChatSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return chat.ErrEmptySessionID
	}
	return c.do(ctx, http.MethodDelete, "/api/chat/sessions/"+url.PathEscape(sessionID), nil, nil, nil)
}

func (c *HTTPClient) UpdateChatSession(ctx context.Context, sessionID string, update chat.SessionUpdate) error {
	if sessionID == "" {
		return chat.ErrEmptySessionID
	}
	return c.do(ctx, http.MethodPatch, "/api/chat/sessions/"+url.PathEscape(sessionID), nil, update, nil)
}

func (c *HTTPClient) GetArticle(ctx context.Context, articleID string) (*chat.Article, error) {
	if articleID == "" {
		return nil, errors.New("kb client: empty article id")
	}
	var resp wireArticle
	if err := c.do(ctx, http.MethodGet, "/api/articles/"+url.PathEscape(articleID), nil, nil, &resp); err != nil {
		return nil, err
	}
	body := resp.Body
	if body == "" {
		body = resp.Description
	}
	return &chat.Article{ID: string(resp.ID), Title: resp.Title, Body: body, URL: resp.URL}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in any, out any) error {
	if c == nil || c.http == nil {
		return errors.New("kb client is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "kb client: encode request")
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrap(err, "kb client: build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "kb client: %s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()
	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("kb api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "kb client: decode %s %s", method, path)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &chat.APIError{Status: resp.StatusCode}
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		// Proxies answer with HTML pages; those never reach the user.
		log.Debug().Int("status", resp.StatusCode).Int("body_bytes", len(raw)).Msg("non-JSON error body")
		return apiErr
	}
	apiErr.Message = er.text()
	return apiErr
}
