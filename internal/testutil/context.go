package testutil

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/types"
)

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, types.CtxUserID, types.DefaultUserID)
	ctx = context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())
	return ctx
}

// SetupContextAt returns a test context whose clock is pinned to now
func SetupContextAt(now time.Time) context.Context {
	return types.WithNow(SetupContext(), now)
}
