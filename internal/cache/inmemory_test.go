package cache

import (
	"context"
	"testing"
	"time"

	"github.com/invoicekit/invoicekit/internal/config"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	c := NewInMemoryCache(cfg, logger.NewNoopLogger())

	c.Set(ctx, GenerateKey(PrefixFollowUpRule, "user_1"), "rule-a", time.Minute)
	c.Set(ctx, GenerateKey(PrefixFollowUpRule, "user_2"), "rule-b", 0)
	c.Set(ctx, GenerateKey(PrefixClient, "user_1", "cli_1"), "client", 0)

	v, ok := c.Get(ctx, "followup_rule:v1:user_1")
	assert.True(t, ok)
	assert.Equal(t, "rule-a", v)

	c.DeleteByPrefix(ctx, PrefixFollowUpRule)
	_, ok = c.Get(ctx, GenerateKey(PrefixFollowUpRule, "user_2"))
	assert.False(t, ok)

	_, ok = c.Get(ctx, "client:v1:user_1:cli_1")
	assert.True(t, ok)
}

func TestInMemoryCache_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	c := NewInMemoryCache(cfg, logger.NewNoopLogger())

	c.Set(ctx, "k", "v", time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
