package core

import "context"

type contextKey string

const ctxKeyRequester contextKey = "requester"

// Requester identifies who made a request, for history entries.
type Requester struct {
	IPAddress string
	UserAgent string
}

// ContextWithRequester attaches r to ctx.
func ContextWithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, ctxKeyRequester, r)
}

// RequesterFromContext returns the requester attached to ctx, if any.
func RequesterFromContext(ctx context.Context) Requester {
	if r, ok := ctx.Value(ctxKeyRequester).(Requester); ok {
		return r
	}
	return Requester{}
}
