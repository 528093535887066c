package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestContext(t *testing.T) {
	ctx := context.Background()
	assert.False(t, ResolveIgnoreRates(ctx, false))
	assert.True(t, ResolveIgnoreRates(ctx, true))
	assert.NotEmpty(t, ResolveRequestID(ctx))

	ignore := true
	ctx = WithRequestContext(ctx, &RequestContext{IgnoreRates: &ignore})
	assert.True(t, ResolveIgnoreRates(ctx, false))

	id := ResolveRequestID(ctx)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, ResolveRequestID(ctx), "request id is stable once assigned")
}
