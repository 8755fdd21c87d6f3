package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
)

// MaxIdempotencyKeyLength matches the ledger's key column
const MaxIdempotencyKeyLength = 255

// IdempotencyKey reads the Idempotency-Key header into the gin and request
// contexts. With required set, requests without a key are rejected with 400;
// otherwise a missing key is left empty and the request is not deduplicated.
func IdempotencyKey(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		switch {
		case key == "" && required:
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeMissingIdemKey, "Idempotency-Key header is required", GetRequestID(c)))
			return
		case len(key) > MaxIdempotencyKeyLength:
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeValidation, "Idempotency-Key must be at most 255 characters", GetRequestID(c)))
			return
		}

		if key != "" {
			c.Set(IdempotencyKeyKey, key)
			c.Request = c.Request.WithContext(logger.WithIdempotencyKey(c.Request.Context(), key))
		}
		c.Next()
	}
}

// GetIdempotencyKey returns the key read by IdempotencyKey, or ""
func GetIdempotencyKey(c *gin.Context) string {
	return c.GetString(IdempotencyKeyKey)
}
