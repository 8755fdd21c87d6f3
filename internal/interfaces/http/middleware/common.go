package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/samber/lo"
)

// Header names shared by the middleware and handlers
const (
	HeaderRequestID          = "X-Request-ID"
	HeaderTenantID           = "X-Tenant-ID"
	HeaderIdempotencyKey     = "Idempotency-Key"
	HeaderIdempotentReplayed = "Idempotent-Replayed"
)

// Gin context keys
const (
	RequestIDKey      = "request_id"
	TenantIDKey       = "tenant_id"
	IdempotencyKeyKey = "idempotency_key"
)

// MaxRequestIDLength bounds caller-supplied request ids
const MaxRequestIDLength = 128

// RequestID assigns each request an id, taken from X-Request-ID when the
// caller supplies a sane one, and propagates it to the response header,
// the gin context and the request context used by the logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > MaxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Writer.Header().Set(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// GetRequestID returns the request id set by RequestID, or ""
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// CORSConfig holds CORS middleware configuration
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig allows no origin, so cross-origin callers get no CORS
// headers until origins are configured.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", HeaderRequestID, HeaderTenantID, HeaderIdempotencyKey, "Accept", "Origin", "Cache-Control"},
		ExposeHeaders: []string{HeaderRequestID, HeaderIdempotentReplayed},
		MaxAge:        12 * time.Hour,
	}
}

// CORSWithConfig answers preflight requests with 204 and decorates every
// other response from an allowed origin.
func CORSWithConfig(cfg CORSConfig) gin.HandlerFunc {
	wildcard := lo.Contains(cfg.AllowOrigins, "*")

	shared := http.Header{}
	shared.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
	shared.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
	if len(cfg.ExposeHeaders) > 0 {
		shared.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ", "))
	}
	if cfg.MaxAge > 0 {
		shared.Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge.Seconds())))
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if wildcard {
			origin = "*"
		}
		if origin != "" && (wildcard || lo.Contains(cfg.AllowOrigins, origin)) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			// browsers reject credentials on a wildcard origin
			if cfg.AllowCredentials && !wildcard {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			for k, v := range shared {
				h[k] = v
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SecurityConfig holds the response hardening headers. A zero HSTSMaxAge
// leaves Strict-Transport-Security off, which suits plain HTTP behind a proxy.
type SecurityConfig struct {
	HSTSMaxAge            time.Duration
	ContentSecurityPolicy string
}

// DefaultSecurityConfig suits an API that only ever serves JSON
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	}
}

// Secure adds the default security headers
func Secure() gin.HandlerFunc {
	return SecureWithConfig(DefaultSecurityConfig())
}

// SecureWithConfig adds security headers built once from cfg
func SecureWithConfig(cfg SecurityConfig) gin.HandlerFunc {
	headers := [][2]string{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "no-referrer"},
		{"Cache-Control", "no-store"},
	}
	if cfg.ContentSecurityPolicy != "" {
		headers = append(headers, [2]string{"Content-Security-Policy", cfg.ContentSecurityPolicy})
	}
	if cfg.HSTSMaxAge > 0 {
		headers = append(headers, [2]string{"Strict-Transport-Security",
			fmt.Sprintf("max-age=%d; includeSubDomains", int(cfg.HSTSMaxAge.Seconds()))})
	}

	return func(c *gin.Context) {
		for _, h := range headers {
			c.Writer.Header().Set(h[0], h[1])
		}
		c.Next()
	}
}
