package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	perm := PermanentAPIError(404, "Not Found")
	wrapped := fmt.Errorf("list tags: %w", perm)

	assert.True(t, stderrors.Is(wrapped, ErrPermanentAPI))
	assert.False(t, stderrors.Is(wrapped, ErrTransientAPI))
	assert.Equal(t, 404, StatusCode(wrapped))
}

func TestTransientAPIError(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := TransientAPIError(cause, 502, 4)

	assert.True(t, stderrors.Is(err, ErrTransientAPI))
	assert.Equal(t, 4, err.Attempts)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "status 502")
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"filter", FilterValidationError("since must precede until"), "invalid filter"},
		{"permanent", PermanentAPIError(404, "Not Found"), "status 404"},
		{"rate limited", TransientAPIError(nil, 429, 3), "rate-limited"},
		{"unavailable", TransientAPIError(fmt.Errorf("eof"), 503, 4), "unavailable"},
		{"plain", fmt.Errorf("boom"), "unexpected error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, UserMessage(tt.err), tt.contains)
		})
	}
	assert.Empty(t, UserMessage(nil))
}

func TestDetailShowsContextAndStack(t *testing.T) {
	err := fmt.Errorf("list tags: %w",
		PermanentAPIError(404, "Not Found").WithContext("endpoint", "repos/acme/api/tags"))

	detail := Detail(err)
	assert.Contains(t, detail, "list tags: Not Found (status 404)")
	assert.Contains(t, detail, "[HIGH] [PERMANENT_API] Not Found")
	assert.Contains(t, detail, "endpoint: repos/acme/api/tags")
	assert.Contains(t, detail, "Stack trace:")
	assert.Contains(t, detail, "TestDetailShowsContextAndStack")

	assert.Equal(t, "boom\n", Detail(fmt.Errorf("boom")))
	assert.Empty(t, Detail(nil))
}
