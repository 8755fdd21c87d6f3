package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
)

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeMethodNotAllowed, "Method not allowed", middleware.GetRequestID(c)))
}
