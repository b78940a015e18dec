package chat

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClassifyError_StatusRules(t *testing.T) {
	require.Equal(t, MessageRateLimited, ClassifyError(&APIError{Status: 429, Message: "slow down"}))
	require.Equal(t, MessageSessionExpired, ClassifyError(&APIError{Status: 401}))
	require.Equal(t, MessageServiceDown, ClassifyError(&APIError{Status: 503, Message: "API key missing"}))
	require.Equal(t, MessageServiceDown, ClassifyError(&APIError{Status: 500}))
}

func TestClassifyError_MessageRules(t *testing.T) {
	require.Equal(t, MessageRateLimited, ClassifyError(&APIError{Message: "upstream rate limit exceeded"}))
	require.Equal(t, MessageRateLimited, ClassifyError(errors.New("hit rate limit while streaming")))
	require.Equal(t, MessageMisconfigured, ClassifyError(&APIError{Status: 400, Message: "invalid API key provided"}))
}

func TestClassifyError_FallsBackToServerThenRawMessage(t *testing.T) {
	require.Equal(t, "article index is rebuilding", ClassifyError(&APIError{Status: 409, Message: "article index is rebuilding"}))
	require.Equal(t, "dial tcp: connection refused", ClassifyError(errors.New("dial tcp: connection refused")))
	require.Equal(t, MessageGenericFailure, ClassifyError(nil))
}

func TestClassifyError_UnwrapsWrappedAPIError(t *testing.T) {
	err := errors.Wrap(&APIError{Status: 429}, "send message")
	require.Equal(t, MessageRateLimited, ClassifyError(err))
}
