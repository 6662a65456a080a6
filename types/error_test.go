package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrProviderError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("flux").
		WithDetail("reason", "upstream")

	assert.Equal(t, ErrProviderError, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, root))
	assert.Equal(t, "upstream", err.Details["reason"])
	assert.Contains(t, err.Error(), "[PROVIDER_ERROR] upstream failed")
}

func TestAsError_Wrapped(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrInvalidParameters, "bad params").WithFields("width: must be >= 64", "steps: required")
	wrapped := fmt.Errorf("dispatch: %w", inner)

	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Len(t, got.Fields, 2)
	assert.True(t, IsErrorCode(wrapped, ErrInvalidParameters))
	assert.False(t, IsErrorCode(wrapped, ErrProviderError))
	assert.False(t, IsRetryable(wrapped))
}

func TestGetErrorCode_PlainError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
