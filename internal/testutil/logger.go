package testutil

import (
	"github.com/invoicekit/invoicekit/internal/logger"
)

// NewTestLogger returns a logger that discards output
func NewTestLogger() *logger.Logger {
	return logger.NewNoopLogger()
}
