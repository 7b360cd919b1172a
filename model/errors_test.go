package model

import (
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatusErr struct {
	code int
}

func (e *fakeStatusErr) Error() string   { return fmt.Sprintf("http %d", e.code) }
func (e *fakeStatusErr) StatusCode() int { return e.code }

func TestWrapProviderError_RateLimit(t *testing.T) {
	wrapped := WrapProviderError("anthropic", &fakeStatusErr{code: 429})

	var rl *RateLimitError
	require.ErrorAs(t, wrapped, &rl)
	assert.Equal(t, "anthropic", rl.Provider)
	assert.True(t, IsRetryable(wrapped))
}

func TestWrapProviderError_ServerError(t *testing.T) {
	wrapped := WrapProviderError("openai", &fakeStatusErr{code: 503})

	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, wrapped, &unavailable)
	assert.True(t, IsRetryable(wrapped))
}

func TestWrapProviderError_ClientErrorPassesThrough(t *testing.T) {
	orig := &fakeStatusErr{code: 400}
	wrapped := WrapProviderError("openai", orig)
	assert.Equal(t, error(orig), wrapped)
	assert.False(t, IsRetryable(wrapped))
}

func TestWrapProviderError_NetworkError(t *testing.T) {
	netErr := &url.Error{Op: "Post", URL: "https://api.example.com", Err: errors.New("connection refused")}
	wrapped := WrapProviderError("google", netErr)

	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, wrapped, &unavailable)
}

func TestWrapProviderError_Nil(t *testing.T) {
	assert.NoError(t, WrapProviderError("p", nil))
}

func TestIsRetryable_NonRetryableTaxonomy(t *testing.T) {
	assert.False(t, IsRetryable(&ProviderProtocolError{Provider: "p", Err: errors.New("bad pairing")}))
	assert.False(t, IsRetryable(&SchemaIncompatibleError{Provider: "p", Tool: "t", Field: "f", Reason: "r"}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestRetryAfter_Extraction(t *testing.T) {
	err := fmt.Errorf("calling model: %w", &RateLimitError{
		Provider:   "anthropic",
		RetryAfter: 2 * time.Second,
		Err:        errors.New("429"),
	})
	assert.Equal(t, 2*time.Second, RetryAfter(err))
	assert.Equal(t, time.Duration(0), RetryAfter(errors.New("plain")))
}
