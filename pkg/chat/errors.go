package chat

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrEmptySessionID  = errors.New("session id is empty")
	ErrNoActiveSession = errors.New("no active session")
)

// User-facing texts produced by ClassifyError.
const (
	MessageRateLimited    = "Too many requests. Please wait a moment before trying again."
	MessageSessionExpired = "Your session has expired. Please sign in again."
	MessageServiceDown    = "The support assistant is temporarily unavailable. Please try again shortly."
	MessageMisconfigured  = "The support assistant is unavailable due to a configuration issue."
	MessageGenericFailure = "Something went wrong. Please try again."
	MessageLoadFailed     = "Failed to load conversation"
	MessageDeleteFailed   = "Failed to delete conversation"
	MessageRenameFailed   = "Failed to rename conversation"
)

// APIError is returned by transports when the service answers with an error.
// Status is 0 when the failure did not come from an HTTP response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("conversation service: status %d: %s", e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("conversation service: status %d", e.Status)
	default:
		return "conversation service: " + e.Message
	}
}

// ClassifyError maps a client failure to the text shown to the user.
// Rules are evaluated in order and the first match wins.
func ClassifyError(err error) string {
	if err == nil {
		return MessageGenericFailure
	}

	status := 0
	serverMessage := ""
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		status = apiErr.Status
		serverMessage = apiErr.Message
	}

	switch {
	case status == 429:
		return MessageRateLimited
	case status == 401:
		return MessageSessionExpired
	case status >= 500:
		return MessageServiceDown
	}

	raw := err.Error()
	text := serverMessage
	if text == "" {
		text = raw
	}
	switch {
	case strings.Contains(text, "rate limit"):
		return MessageRateLimited
	case strings.Contains(text, "API key"):
		return MessageMisconfigured
	}

	if serverMessage != "" {
		return serverMessage
	}
	if raw != "" {
		return raw
	}
	return MessageGenericFailure
}
