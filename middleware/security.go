package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	applog "food-share-server/logger"
)

const maxBodyBytes = 10 * 1024 * 1024

// RateLimiter stores rate limiters per route and client IP
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	mutex    sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
	}
}

// GetLimiterWithConfig returns a limiter for a composite key with dynamic limits
func (rl *RateLimiter) GetLimiterWithConfig(key string, limit rate.Limit, burst int) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(limit, burst)
		rl.limiters[key] = limiter
	}
	rl.lastSeen[key] = time.Now()
	return limiter
}

// Cleanup removes limiters idle for longer than maxIdle and returns how many were dropped
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	removed := 0
	now := time.Now()
	for key, t := range rl.lastSeen {
		if now.Sub(t) > maxIdle {
			delete(rl.limiters, key)
			delete(rl.lastSeen, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked keys
func (rl *RateLimiter) Size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.limiters)
}

// limitsFor picks the budget of a route
func limitsFor(method, path string) (rate.Limit, int) {
	switch {
	case strings.HasPrefix(path, "/api/notifications/stream"), strings.HasPrefix(path, "/api/notifications/ws"):
		// reconnecting streams
		return rate.Every(time.Second), 5
	case strings.HasPrefix(path, "/api/auth/register"), strings.HasPrefix(path, "/api/auth/login"):
		return rate.Every(time.Minute / 5), 5
	case strings.HasPrefix(path, "/api/places"):
		// Nominatim allows one request per second
		return rate.Every(time.Second), 3
	case method == http.MethodGet:
		return rate.Every(200 * time.Millisecond), 30
	default:
		return rate.Every(time.Second), 10
	}
}

// RateLimitMiddleware implements rate limiting
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		clientIP := c.ClientIP()

		lim, burst := limitsFor(c.Request.Method, path)
		limiter := rl.GetLimiterWithConfig(path+"|"+clientIP, lim, burst)

		if !limiter.Allow() {
			applog.Log.WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   path,
				"ip":     clientIP,
			}).Warn("🚫 Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "Too many requests. Please try again later.",
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; connect-src 'self' ws: wss:;")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		c.Next()
	}
}

// InputValidationMiddleware rejects oversized bodies and non-JSON writes
func InputValidationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBodyBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error":   "Request body exceeds maximum size limit",
			})
			return
		}

		method := c.Request.Method
		if (method == http.MethodPost || method == http.MethodPut) && c.Request.ContentLength != 0 {
			if !strings.Contains(c.GetHeader("Content-Type"), "application/json") {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"success": false,
					"error":   "Content-Type must be application/json",
				})
				return
			}
		}

		c.Next()
	}
}
