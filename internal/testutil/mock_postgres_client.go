package testutil

import (
	"context"

	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

// Transactional is implemented by stores that can roll back with the mock client
type Transactional interface {
	Snapshot() any
	Restore(snapshot any)
}

type txKey struct{}

// MockPostgresClient runs callbacks directly and, for the outermost call, restores
// every registered store when the callback fails
type MockPostgresClient struct {
	logger *logger.Logger
	stores []Transactional

	// Commits and Rollbacks count outermost transactions
	Commits   int
	Rollbacks int
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger, stores ...Transactional) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
		stores: stores,
	}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// If we're already in a transaction, reuse it
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	snapshots := make([]any, len(c.stores))
	for i, store := range c.stores {
		snapshots[i] = store.Snapshot()
	}

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		for i, store := range c.stores {
			store.Restore(snapshots[i])
		}
		c.Rollbacks++
		c.logger.Debugw("mock transaction rolled back", "error", err)
		return err
	}

	c.Commits++
	return nil
}
