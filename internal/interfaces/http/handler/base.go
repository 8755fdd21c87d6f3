package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// RawCreated writes a pre-serialized JSON body with 201. Idempotent
// operations use it so a replay returns the exact stored bytes.
func (h *BaseHandler) RawCreated(c *gin.Context, body []byte, replayed bool) {
	if replayed {
		c.Header(middleware.HeaderIdempotentReplayed, "true")
	}
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	code = dto.NormalizeErrorCode(code)
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleBindError answers a failed ShouldBind call
func (h *BaseHandler) HandleBindError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError converts err into an error response. Domain errors keep their
// code and message; anything else is logged and hidden behind ERR_INTERNAL.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		if code == dto.ErrCodeTransientFailure {
			c.Header("Retry-After", "1")
		}
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	ctx := c.Request.Context()
	logger.FromContext(ctx).Error("Unhandled error",
		zap.Error(err),
		zap.String("path", c.FullPath()),
		zap.String("trace_id", telemetry.GetTraceID(ctx)),
	)
	h.InternalError(c, "An unexpected error occurred")
}

// tenantID returns the tenant resolved by the tenant middleware
func tenantID(c *gin.Context) uuid.UUID {
	return middleware.GetTenantID(c)
}

// pathUUID parses the named path parameter, answering 400 when it is not a UUID
func (h *BaseHandler) pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
