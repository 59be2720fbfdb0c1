package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerator_GenerateKey(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopeCheckoutSession, map[string]interface{}{"invoice_id": "inv_1", "amount": 4000})
	b := g.GenerateKey(ScopeCheckoutSession, map[string]interface{}{"amount": 4000, "invoice_id": "inv_1"})
	c := g.GenerateKey(ScopeCheckoutSession, map[string]interface{}{"invoice_id": "inv_1", "amount": 6000})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "checkout_session-")
	assert.True(t, g.ValidateKey(ScopeCheckoutSession, map[string]interface{}{"invoice_id": "inv_1", "amount": 4000}, a))
}
