package types

import (
	"context"
	"time"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID     ContextKey = "ctx_request_id"
	CtxUserID        ContextKey = "ctx_user_id"
	CtxJWT           ContextKey = "ctx_jwt"
	CtxDBTransaction ContextKey = "ctx_db_transaction"
	CtxNow           ContextKey = "ctx_now"

	// Default values
	DefaultUserID = "00000000-0000-0000-0000-000000000000"
	SystemUserID  = "system"
)

const (
	HeaderRequestID     = "X-Request-ID"
	HeaderAuthorization = "Authorization"
	HeaderStripeSig     = "Stripe-Signature"
)

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetJWT(ctx context.Context) string {
	if jwt, ok := ctx.Value(CtxJWT).(string); ok {
		return jwt
	}
	return ""
}

// SetUserID sets the user ID in the context
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

// WithNow pins the clock used by ledger operations. Batch jobs use it so that every
// item in a run is evaluated against the same instant; tests use it for determinism.
func WithNow(ctx context.Context, now time.Time) context.Context {
	return context.WithValue(ctx, CtxNow, now.UTC())
}

// Now returns the pinned clock from the context or the current UTC time
func Now(ctx context.Context) time.Time {
	if now, ok := ctx.Value(CtxNow).(time.Time); ok {
		return now
	}
	return time.Now().UTC()
}
