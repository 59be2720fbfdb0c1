package auth

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/config"
)

// Claims is the identity carried by a verified bearer token
type Claims struct {
	UserID string
	Email  string
}

// Provider issues and verifies bearer tokens
type Provider interface {
	GenerateToken(claims Claims, ttl time.Duration) (string, error)
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

func NewProvider(cfg *config.Configuration) Provider {
	return NewJWTAuth(cfg)
}
