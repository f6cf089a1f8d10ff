package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetRequestIDFromCtx(t *testing.T) {
	assert.Empty(t, GetRequestIDFromCtx(context.Background()))

	ctx := CreateCtxWithRqID(context.Background())
	assert.NotEmpty(t, GetRequestIDFromCtx(ctx))

	ctx = CtxWithRqID(context.Background(), "rq-1")
	assert.Equal(t, "rq-1", GetRequestIDFromCtx(ctx))

	ctx = CtxWithRqID(context.Background(), "")
	assert.NotEmpty(t, GetRequestIDFromCtx(ctx))
}
