package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/config"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	defaultPublicRatePerSecond = 5
	defaultPublicRateBurst     = 20

	// limiterIdleTTL is how long a client's bucket survives without requests
	limiterIdleTTL = 10 * time.Minute
)

// RateLimitMiddleware throttles unauthenticated traffic per client IP with a token bucket
func RateLimitMiddleware(cfg config.RateLimitConfig, logger *logger.Logger) gin.HandlerFunc {
	perSecond := cfg.PerSecond
	if perSecond <= 0 {
		perSecond = defaultPublicRatePerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultPublicRateBurst
	}

	limiters := gocache.New(limiterIdleTTL, 2*limiterIdleTTL)

	return func(c *gin.Context) {
		key := c.ClientIP()

		var limiter *rate.Limiter
		if cached, found := limiters.Get(key); found {
			limiter = cached.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
			// Add keeps the first limiter when two requests race on a new key
			if err := limiters.Add(key, limiter, gocache.DefaultExpiration); err != nil {
				if cached, found := limiters.Get(key); found {
					limiter = cached.(*rate.Limiter)
				}
			}
		}
		// sliding idle expiry
		limiters.Set(key, limiter, gocache.DefaultExpiration)

		if !limiter.Allow() {
			logger.Debugw("rate limit exceeded", "client_ip", key, "path", c.FullPath())
			c.Header("Retry-After", "1")
			c.Error(ierr.NewError("rate limit exceeded").
				WithHint("Too many requests, please retry shortly").
				Mark(ierr.ErrRateLimited))
			c.Abort()
			return
		}

		c.Next()
	}
}
