package types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, ok := TraceID(ctx)
	assert.False(t, ok)

	ctx = WithTraceID(ctx, "t1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithSessionID(ctx, "shot-9")
	ctx = WithAdapter(ctx, "FluxAdapter")

	got, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "t1", got)

	got, ok = RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", got)

	got, ok = SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "shot-9", got)

	got, ok = Adapter(ctx)
	assert.True(t, ok)
	assert.Equal(t, "FluxAdapter", got)
}

func TestContextHelpers_EmptyValue(t *testing.T) {
	t.Parallel()

	ctx := WithSessionID(context.Background(), "")
	_, ok := SessionID(ctx)
	assert.False(t, ok)
}
