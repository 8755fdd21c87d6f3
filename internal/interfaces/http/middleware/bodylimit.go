package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
)

// DefaultMaxBodySize applies when the configured limit is not positive
const DefaultMaxBodySize int64 = 1 << 20

// BodyLimit returns a middleware that limits request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBodyTooLarge, "Request body exceeds maximum allowed size", GetRequestID(c)))
			return
		}

		// chunked bodies have no Content-Length
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
