// Package httpkit provides HTTP middleware infrastructure.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"tireshop_backend/platform/config"
	"tireshop_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

const (
	// ContextAdminSubjectKey is the gin context key for the admin subject.
	ContextAdminSubjectKey = "adminSubject"

	errMissingToken = "missing token"
	errInvalidToken = "invalid token"
)

// RequestLogger logs HTTP requests with timing.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		log.HTTPRequest(c.Request.Method, path, status, float64(latency.Milliseconds()), clientIP)

		for _, ginErr := range c.Errors {
			log.HTTPError(c.Request.Method, path, status, ginErr.Err, clientIP)
		}
	}
}

// SecurityHeaders adds security headers to responses.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// ActionRateLimiter manages per-IP token buckets keyed by action group, so
// booking, appointment management, and lookup endpoints carry independent
// budgets. It is the admission-control gate consulted before any business
// logic runs.
type ActionRateLimiter struct {
	limiters sync.Map
	burst    int
	log      *logger.Logger
	rates    map[string]rate.Limit
}

// Rate limit action groups for the public surface.
const (
	ActionBooking = "booking"
	ActionManage  = "manage"
	ActionLookup  = "lookup"
)

// NewActionRateLimiter creates a rate limiter from the configured per-minute
// budgets.
func NewActionRateLimiter(cfg config.RateLimitConfig, log *logger.Logger) *ActionRateLimiter {
	return &ActionRateLimiter{
		burst: cfg.GetRateBurst(),
		log:   log,
		rates: map[string]rate.Limit{
			ActionBooking: rate.Limit(cfg.GetBookingRatePerMinute() / 60.0),
			ActionManage:  rate.Limit(cfg.GetManageRatePerMinute() / 60.0),
			ActionLookup:  rate.Limit(cfg.GetLookupRatePerMinute() / 60.0),
		},
	}
}

func (l *ActionRateLimiter) getLimiter(action, ip string) *rate.Limiter {
	key := action + "|" + ip
	if existing, ok := l.limiters.Load(key); ok {
		return existing.(*rate.Limiter)
	}

	perSecond, ok := l.rates[action]
	if !ok {
		perSecond = l.rates[ActionLookup]
	}
	created, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(perSecond, l.burst))
	return created.(*rate.Limiter)
}

// Limit returns middleware enforcing the budget for the given action group.
func (l *ActionRateLimiter) Limit(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.getLimiter(action, ip).Allow() {
			if l.log != nil {
				l.log.RateLimitExceeded(ip, c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, Envelope{
				Success: false,
				Error:   "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// AuthRequired returns middleware that validates admin JWT access tokens.
// Token issuance belongs to the admin login flow, which lives outside this
// service; the middleware only consumes bearer tokens signed with the
// shared secret.
func AuthRequired(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, errMissingToken)
			return
		}

		claims, err := parseAccessClaims(rawToken, cfg)
		if err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		subject, _ := claims["sub"].(string)
		if subject == "" {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		c.Set(ContextAdminSubjectKey, subject)
		c.Next()
	}
}

func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if rawToken == "" {
		return "", false
	}

	return rawToken, true
}

func parseAccessClaims(rawToken string, cfg config.JWTConfig) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(cfg.GetJWTAccessSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.New(errInvalidToken)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New(errInvalidToken)
	}

	return claims, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{Success: false, Error: message})
}
