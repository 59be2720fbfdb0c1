package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/auth"
	"github.com/invoicekit/invoicekit/internal/config"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/types"
)

// AuthenticateMiddleware is a middleware that authenticates requests based on either:
// 1. API key in the x-api-key header (or configured header name)
// 2. JWT token in the Authorization header as a Bearer token
// It sets the user ID in the request context. Every ledger query downstream is scoped to it.
func AuthenticateMiddleware(cfg *config.Configuration, logger *logger.Logger) gin.HandlerFunc {
	authProvider := auth.NewProvider(cfg)

	return func(c *gin.Context) {
		// First check for API key
		if apiKey := c.GetHeader(cfg.Auth.APIKey.Header); apiKey != "" {
			userID, valid := auth.ValidateAPIKey(cfg, apiKey)
			if !valid {
				logger.Debugw("invalid api key", "path", c.FullPath())
				unauthorized(c, "invalid api key")
				return
			}

			setUser(c, userID)
			c.Next()
			return
		}

		// If no API key, check for JWT token
		authHeader := c.GetHeader(types.HeaderAuthorization)
		if authHeader == "" {
			unauthorized(c, "missing credentials")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			unauthorized(c, "invalid authorization header format")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := authProvider.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			logger.Debugw("failed to validate token", "error", err)
			unauthorized(c, "invalid token")
			return
		}

		if claims == nil || claims.UserID == "" {
			unauthorized(c, "invalid token claims")
			return
		}

		ctx := context.WithValue(c.Request.Context(), types.CtxJWT, tokenString)
		c.Request = c.Request.WithContext(ctx)
		setUser(c, claims.UserID)
		c.Next()
	}
}

// InternalAuthMiddleware admits only callers holding an internal key. Tenant api keys and
// bearer tokens are not accepted, since the batch jobs span every user.
func InternalAuthMiddleware(cfg *config.Configuration, logger *logger.Logger) gin.HandlerFunc {
	header := cfg.Auth.Internal.Header
	if header == "" {
		header = "x-internal-key"
	}

	return func(c *gin.Context) {
		key := c.GetHeader(header)
		if key == "" {
			unauthorized(c, "missing internal key")
			return
		}
		if !auth.ValidateInternalKey(cfg, key) {
			logger.Warnw("rejected internal key", "path", c.FullPath(), "client_ip", c.ClientIP())
			unauthorized(c, "invalid internal key")
			return
		}
		c.Next()
	}
}

func setUser(c *gin.Context, userID string) {
	c.Request = c.Request.WithContext(types.SetUserID(c.Request.Context(), userID))
}

// unauthorized hands the error to ErrorHandler and stops the chain
func unauthorized(c *gin.Context, hint string) {
	c.Error(ierr.NewError(hint).
		WithHint(hint).
		Mark(ierr.ErrUnauthorized))
	c.Abort()
}
