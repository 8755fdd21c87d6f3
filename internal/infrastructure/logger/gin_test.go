package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), "req-7"))
		c.Next()
	})
	router.Use(GinMiddleware(log), Recovery(log))
	return router, recorded
}

func requestLog(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestGinMiddleware(t *testing.T) {
	router, recorded := newLoggedRouter(t)
	router.POST("/invoices/:id/payments", func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithTenantID(c.Request.Context(), "tenant-1"))
		FromContext(c.Request.Context()).Debug("handler ran")
		c.Header("Idempotent-Replayed", "true")
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/invoices/1/payments?x=1", nil))
	assert.Equal(t, http.StatusCreated, w.Code)

	entry := requestLog(t, recorded)
	fields := entry.ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "tenant-1", fields["tenant_id"])
	assert.Equal(t, true, fields["replayed"])
	assert.Equal(t, "x=1", fields["query"])

	handlerLog := recorded.FilterMessage("handler ran").All()
	require.Len(t, handlerLog, 1)
	assert.Equal(t, "req-7", handlerLog[0].ContextMap()["request_id"])
}

func TestGinMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusConflict, zapcore.WarnLevel},
		{http.StatusServiceUnavailable, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		router, recorded := newLoggedRouter(t)
		router.GET("/x", func(c *gin.Context) { c.Status(tt.status) })

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, tt.level, requestLog(t, recorded).Level, "status %d", tt.status)
	}
}

func TestRecovery(t *testing.T) {
	router, recorded := newLoggedRouter(t)
	router.GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"ERR_INTERNAL","message":"An internal error occurred"}}`, w.Body.String())

	panics := recorded.FilterMessage("Panic recovered").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "req-7", panics[0].ContextMap()["request_id"])
}
