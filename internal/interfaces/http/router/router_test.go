package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func echoMethod(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }

func TestGroup_Endpoints(t *testing.T) {
	g := Group{
		Prefix: "/invoices",
		Routes: []Route{
			Get("", echoMethod),
			Post("/:id/send", echoMethod),
		},
		Groups: []Group{{
			Prefix: "/:id/items",
			Routes: []Route{Put("/:itemId", echoMethod), Delete("/:itemId", echoMethod)},
		}},
	}

	assert.Equal(t, []string{
		"GET /invoices",
		"POST /invoices/:id/send",
		"PUT /invoices/:id/items/:itemId",
		"DELETE /invoices/:id/items/:itemId",
	}, g.Endpoints())
}

func TestMount_ServesEveryMethod(t *testing.T) {
	engine := gin.New()
	Mount(engine, "v1", nil, Group{
		Prefix: "/invoices",
		Routes: []Route{
			Get("", echoMethod),
			Post("", echoMethod),
			Put("/:id", echoMethod),
			Delete("/:id", echoMethod),
		},
	})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/invoices"},
		{http.MethodPost, "/api/v1/invoices"},
		{http.MethodPut, "/api/v1/invoices/1"},
		{http.MethodDelete, "/api/v1/invoices/1"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, http.StatusOK, w.Code, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.method, w.Body.String())
	}
}

func TestMount_MiddlewareOrder(t *testing.T) {
	engine := gin.New()
	var order []string
	mark := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) {
			order = append(order, name)
			c.Next()
		}
	}

	Mount(engine, "v1", []gin.HandlerFunc{mark("api")}, Group{
		Prefix:     "/payments",
		Middleware: []gin.HandlerFunc{mark("group")},
		Groups: []Group{{
			Prefix:     "/:id/refunds",
			Middleware: []gin.HandlerFunc{mark("subgroup")},
			Routes: []Route{Post("", func(c *gin.Context) {
				order = append(order, "handler")
				c.Status(http.StatusCreated)
			})},
		}},
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/payments/42/refunds", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"api", "group", "subgroup", "handler"}, order)
}

func TestMount_MiddlewareScopedToAPI(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	blocked := func(c *gin.Context) { c.AbortWithStatus(http.StatusTeapot) }
	Mount(engine, "v1", []gin.HandlerFunc{blocked}, Group{
		Prefix: "/invoices",
		Routes: []Route{Get("", func(c *gin.Context) { c.Status(http.StatusOK) })},
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestInvoicingRoutes(t *testing.T) {
	var endpoints []string
	for _, g := range InvoicingRoutes(nil, nil) {
		endpoints = append(endpoints, g.Endpoints()...)
	}

	assert.ElementsMatch(t, []string{
		"POST /invoices",
		"GET /invoices",
		"GET /invoices/:id",
		"POST /invoices/:id/items",
		"PUT /invoices/:id/items/:itemId",
		"DELETE /invoices/:id/items/:itemId",
		"POST /invoices/:id/send",
		"POST /invoices/:id/cancel",
		"POST /invoices/:id/payments",
		"GET /invoices/:id/payments",
		"POST /payments/:id/refunds",
	}, endpoints)
}
