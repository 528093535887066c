package common

import (
	"context"

	"github.com/google/uuid"
)

// RequestContext carries per-request options that override config defaults.
type RequestContext struct {
	RequestID   string
	IgnoreRates *bool // nil means "use fx.ignore_rates"
}

type contextKey int

const requestContextKey contextKey = iota

// WithRequestContext stores a RequestContext in ctx, assigning a request id
// when none is set.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	if rc != nil && rc.RequestID == "" {
		rc.RequestID = uuid.NewString()
	}
	return context.WithValue(ctx, requestContextKey, rc)
}

// RequestContextFromContext retrieves the RequestContext, or nil if absent.
func RequestContextFromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey).(*RequestContext)
	return rc
}

// ResolveRequestID returns the request id from ctx, or a fresh one.
func ResolveRequestID(ctx context.Context) string {
	if rc := RequestContextFromContext(ctx); rc != nil && rc.RequestID != "" {
		return rc.RequestID
	}
	return uuid.NewString()
}

// ResolveIgnoreRates returns the per-request override if present, otherwise fallback.
func ResolveIgnoreRates(ctx context.Context, fallback bool) bool {
	if rc := RequestContextFromContext(ctx); rc != nil && rc.IgnoreRates != nil {
		return *rc.IgnoreRates
	}
	return fallback
}
