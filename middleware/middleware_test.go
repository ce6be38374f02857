package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip/event-manager-go/identity"
	"github.com/phillip/event-manager-go/models"
	"github.com/phillip/event-manager-go/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct {
	tokens map[string]models.Principal
}

func (s stubVerifier) Verify(_ context.Context, raw string) (models.Principal, error) {
	p, ok := s.tokens[raw]
	if !ok {
		return models.Principal{}, identity.ErrInvalidToken
	}
	return p, nil
}

func newEngine(production bool, mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(zerolog.Nop()), ErrorHandler(production), Recovery())
	r.Use(mw...)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	ana := models.Principal{UID: "u1", Email: "ana@example.com", DisplayName: "Ana"}
	r := newEngine(false, AuthMiddleware(stubVerifier{tokens: map[string]models.Principal{"good": ana}}))
	r.GET("/me", func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"uid": p.UID, "user_id": c.GetString(UserIDKey)})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer good", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bare token", "good", http.StatusUnauthorized},
		{"rejected token", "Bearer bad", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			if tt.status == http.StatusOK {
				assert.Equal(t, "u1", body["uid"])
				assert.Equal(t, "u1", body["user_id"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestCurrentPrincipalWithoutAuth(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := CurrentPrincipal(c)
	assert.False(t, ok)
}

func TestErrorHandlerBody(t *testing.T) {
	r := newEngine(false)
	r.GET("/validation", func(c *gin.Context) {
		_ = c.Error(utils.ValidationError("validation failed", "title is required"))
	})
	r.GET("/unknown", func(c *gin.Context) {
		_ = c.Error(errors.New("driver exploded"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/validation", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "validation failed", body["error"])
	assert.Equal(t, []interface{}{"title is required"}, body["details"])
	assert.NotEmpty(t, body["stack"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "internal server error", body["error"])
	assert.Contains(t, body["stack"], "driver exploded")
}

func TestErrorHandlerHidesStackInProduction(t *testing.T) {
	r := newEngine(true)
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(utils.Internal("could not create event", errors.New("db down")))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "could not create event", body["error"])
	assert.NotContains(t, body, "stack")
	assert.NotContains(t, body, "details")
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestRecoveryReturns500(t *testing.T) {
	r := newEngine(true)
	r.GET("/panic", func(c *gin.Context) { panic("nil map") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec)["error"])
}

func TestRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(zerolog.New(&buf)))
	r.GET("/", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("inside")
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Contains(t, buf.String(), generated)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", rec.Header().Get(RequestIDHeader))
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(zerolog.New(&buf)), RequestLogging())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Contains(t, buf.String(), `"path":"/ping"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(true, RateLimit(2, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1").Code)

	limited := hit("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "30", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := newEngine(true, RateLimit(0, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestLimiterStoreSweepsIdleClients(t *testing.T) {
	s := newLimiterStore(1, time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }
	s.limiter("a")

	now = now.Add(2 * time.Minute)
	s.limiter("b")

	assert.NotContains(t, s.limiters, "a")
	assert.Contains(t, s.limiters, "b")
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(true))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestNotFoundRoute(t *testing.T) {
	r := newEngine(true)
	r.NoRoute(NotFound())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decode(t, rec)["error"])
}
