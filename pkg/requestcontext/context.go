// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them without importing
// net/http. Tests inject values directly with the With functions.
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	orgIDKey       struct{}
)

// WithRequestID stores the correlation ID for this request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation ID, or "" when not set.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTime pins the request time; tests use this to freeze the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return v
	}
	return time.Now()
}

// WithOrgID stores the authenticated organization for org-dashboard routes.
func WithOrgID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, orgIDKey{}, id)
}

// OrgID returns the authenticated organization ID, 0 when unauthenticated.
func OrgID(ctx context.Context) int64 {
	if v, ok := ctx.Value(orgIDKey{}).(int64); ok {
		return v
	}
	return 0
}
