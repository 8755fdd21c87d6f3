package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
)

// TenantConfig holds configuration for tenant resolution
type TenantConfig struct {
	// HeaderName carries the tenant id
	HeaderName string

	// SkipPaths are served without a tenant, e.g. health checks
	SkipPaths []string
}

// DefaultTenantConfig returns default configuration
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		HeaderName: HeaderTenantID,
		SkipPaths:  []string{"/health"},
	}
}

// Tenant returns tenant middleware with default configuration
func Tenant() gin.HandlerFunc {
	return TenantWithConfig(DefaultTenantConfig())
}

// TenantWithConfig resolves the tenant of every request. A missing, malformed
// or nil tenant id is rejected with 400 before any handler runs, so no
// repository query is ever issued without a tenant.
func TenantWithConfig(cfg TenantConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = HeaderTenantID
	}

	return func(c *gin.Context) {
		if shouldSkip(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if raw == "" {
			respondMissingTenant(c, "Tenant ID is required")
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			respondMissingTenant(c, "Tenant ID must be a non-nil UUID")
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), tenantID.String()))
		c.Next()
	}
}

// GetTenantID returns the tenant resolved by the tenant middleware, or uuid.Nil
func GetTenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

func shouldSkip(path string, skipPaths []string) bool {
	for _, p := range skipPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func respondMissingTenant(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeMissingTenant, message, GetRequestID(c)))
}
