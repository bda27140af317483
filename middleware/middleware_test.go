package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"food-share-server/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (*types.Claims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &types.Claims{UserID: 42, Role: "donor"}, nil
}

func whoAmI(c *gin.Context) {
	id, ok := CurrentUserID(c)
	c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok, "role": CurrentUserRole(c)})
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthMiddleware(stubVerifier{}), whoAmI)

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{name: "missing token", target: "/me", status: http.StatusUnauthorized},
		{name: "not bearer", target: "/me", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "invalid token", target: "/me", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "bearer header", target: "/me", header: "Bearer good", status: http.StatusOK},
		{name: "query token", target: "/me?token=good", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":42,"ok":true,"role":"donor"}`, w.Body.String())
			}
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", OptionalAuthMiddleware(stubVerifier{}), whoAmI)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":0,"ok":false,"role":""}`, w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()
	a := rl.GetLimiterWithConfig("a", rate.Every(time.Hour), 1)
	assert.Same(t, a, rl.GetLimiterWithConfig("a", rate.Every(time.Hour), 1))
	rl.GetLimiterWithConfig("b", rate.Every(time.Hour), 1)
	assert.Equal(t, 2, rl.Size())

	assert.Zero(t, rl.Cleanup(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, rl.Cleanup(time.Millisecond))
	assert.Zero(t, rl.Size())
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.POST("/api/auth/login", RateLimitMiddleware(NewRateLimiter()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{204, 204, 204, 204, 204, 429}, codes)
}

func TestLimitsFor(t *testing.T) {
	_, burst := limitsFor(http.MethodGet, "/api/notifications/stream")
	assert.Equal(t, 5, burst)
	_, burst = limitsFor(http.MethodGet, "/api/listings")
	assert.Equal(t, 30, burst)
	_, burst = limitsFor(http.MethodPost, "/api/claims")
	assert.Equal(t, 10, burst)
}

func TestInputValidationMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeadersMiddleware(), InputValidationMiddleware())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name        string
		body        string
		contentType string
		length      int64
		status      int
	}{
		{name: "json", body: `{}`, contentType: "application/json; charset=utf-8", status: http.StatusNoContent},
		{name: "empty body", status: http.StatusNoContent},
		{name: "form", body: "a=b", contentType: "application/x-www-form-urlencoded", status: http.StatusUnsupportedMediaType},
		{name: "too large", body: `{}`, contentType: "application/json", length: maxBodyBytes + 1, status: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.length != 0 {
				req.ContentLength = tt.length
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(), MetricsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
