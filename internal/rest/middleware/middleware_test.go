package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/auth"
	"github.com/invoicekit/invoicekit/internal/config"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Configuration {
	cfg := config.GetDefaultConfig()
	cfg.Auth.Secret = "test-secret"
	cfg.Auth.APIKey.Header = "x-api-key"
	cfg.Auth.APIKey.Keys = map[string]string{
		auth.HashAPIKey("sk_test"): "user_1",
	}
	return cfg
}

// whoami echoes the authenticated user
func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": types.GetUserID(c.Request.Context())})
}

func newAuthRouter(cfg *config.Configuration) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(AuthenticateMiddleware(cfg, logger.NewNoopLogger()))
	r.GET("/me", whoami)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ierr.ErrorResponse {
	t.Helper()
	var resp ierr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAuthenticateMiddleware(t *testing.T) {
	cfg := testConfig()
	router := newAuthRouter(cfg)

	token, err := auth.NewProvider(cfg).GenerateToken(auth.Claims{UserID: "user_2"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
		wantUser string
	}{
		{
			name:     "valid api key",
			headers:  map[string]string{"x-api-key": "sk_test"},
			wantCode: http.StatusOK,
			wantUser: "user_1",
		},
		{
			name:     "unknown api key",
			headers:  map[string]string{"x-api-key": "sk_nope"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "valid bearer token",
			headers:  map[string]string{types.HeaderAuthorization: "Bearer " + token},
			wantCode: http.StatusOK,
			wantUser: "user_2",
		},
		{
			name:     "malformed authorization header",
			headers:  map[string]string{types.HeaderAuthorization: token},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "invalid token",
			headers:  map[string]string{types.HeaderAuthorization: "Bearer not-a-jwt"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "no credentials",
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			router.ServeHTTP(w, req)

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				resp := decodeError(t, w)
				assert.False(t, resp.Success)
				assert.NotEmpty(t, resp.Error.Display)
				return
			}

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantUser, body["user_id"])
		})
	}
}

func TestInternalAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Internal.Keys = []string{auth.HashAPIKey("sk_internal")}

	router := gin.New()
	router.Use(ErrorHandler())
	router.Use(InternalAuthMiddleware(cfg, logger.NewNoopLogger()))
	router.POST("/cron", func(c *gin.Context) { c.Status(http.StatusOK) })

	token, err := auth.NewProvider(cfg).GenerateToken(auth.Claims{UserID: "user_2"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
	}{
		{name: "internal key", headers: map[string]string{"x-internal-key": "sk_internal"}, wantCode: http.StatusOK},
		{name: "tenant api key", headers: map[string]string{"x-api-key": "sk_test"}, wantCode: http.StatusUnauthorized},
		{name: "tenant api key in internal header", headers: map[string]string{"x-internal-key": "sk_test"}, wantCode: http.StatusUnauthorized},
		{name: "bearer token", headers: map[string]string{types.HeaderAuthorization: "Bearer " + token}, wantCode: http.StatusUnauthorized},
		{name: "no credentials", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/cron", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}

	t.Run("no keys configured", func(t *testing.T) {
		closed := gin.New()
		closed.Use(ErrorHandler())
		closed.Use(InternalAuthMiddleware(testConfig(), logger.NewNoopLogger()))
		closed.POST("/cron", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/cron", nil)
		req.Header.Set("x-internal-key", "sk_internal")
		closed.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/overpay", func(c *gin.Context) {
		c.Error(ierr.NewError("payment exceeds balance").
			WithHint("Payment amount exceeds the remaining balance").
			WithReportableDetails(map[string]any{"remaining_amount": 7000}).
			Mark(ierr.ErrBalanceExceeded))
	})
	r.GET("/plain", func(c *gin.Context) {
		c.Error(ierr.NewError("boom").Mark(ierr.ErrSystem))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/overpay", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Payment amount exceeds the remaining balance", resp.Error.Display)
	assert.EqualValues(t, 7000, resp.Error.Details["remaining_amount"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "An unexpected error occurred", decodeError(t, w).Error.Display)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware)
	r.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, types.GetRequestID(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get(types.HeaderRequestID)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(types.HeaderRequestID, "req-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(types.HeaderRequestID))
	assert.Equal(t, "req-123", w.Body.String())
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(RateLimitMiddleware(config.RateLimitConfig{PerSecond: 0.001, Burst: 2}, logger.NewNoopLogger()))
	r.GET("/public", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	call := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/public", nil)
		req.Header.Set("X-Forwarded-For", ip)
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))

	// buckets are per client
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware)
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
