package utils

import (
	"context"

	"github.com/google/uuid"
)

type rqIDKey struct{}

func GetRequestIDFromCtx(ctx context.Context) string {
	rqID, ok := ctx.Value(rqIDKey{}).(string)
	if !ok {
		return ""
	}
	return rqID
}

// CreateCtxWithRqID attaches a fresh request id to parent.
func CreateCtxWithRqID(parent context.Context) context.Context {
	return context.WithValue(parent, rqIDKey{}, uuid.NewString())
}

// CtxWithRqID attaches rqID to parent, generating one when rqID is empty.
func CtxWithRqID(parent context.Context, rqID string) context.Context {
	if rqID == "" {
		rqID = uuid.NewString()
	}
	return context.WithValue(parent, rqIDKey{}, rqID)
}
