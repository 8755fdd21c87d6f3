package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentBody struct {
	Amount    *float64 `json:"amount" binding:"required"`
	Currency  string   `json:"currency" binding:"omitempty,currency"`
	Reference string   `json:"reference" binding:"max=4"`
	PaidOn    string   `json:"paid_on" binding:"omitempty,isodate"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/", func(c *gin.Context) {
		var body paymentBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return router
}

func TestHandleValidationError_FieldDetails(t *testing.T) {
	w := httptest.NewRecorder()
	newValidationRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"currency":"usd","reference":"too long","paid_on":"2026-02-30"}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	errInfo := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeValidation, errInfo.Code)
	assert.NotEmpty(t, errInfo.RequestID)

	messages := map[string]string{}
	for _, d := range errInfo.Details {
		messages[d.Field] = d.Message
	}
	require.Len(t, messages, 4)
	assert.Equal(t, "This field is required", messages["amount"])
	assert.Equal(t, "Must be a three letter uppercase currency code", messages["currency"])
	assert.Equal(t, "Must be at most 4 characters", messages["reference"])
	assert.Equal(t, "Must be a date in YYYY-MM-DD format", messages["paid_on"])
}

func TestHandleValidationError_InvalidJSON(t *testing.T) {
	w := httptest.NewRecorder()
	newValidationRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	errInfo := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeInvalidJSON, errInfo.Code)
	assert.Empty(t, errInfo.Details)
}

func TestHandleValidationError_AcceptsValidBody(t *testing.T) {
	w := httptest.NewRecorder()
	newValidationRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"amount":12.5,"currency":"EUR","reference":"w-1","paid_on":"2026-02-28"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}
