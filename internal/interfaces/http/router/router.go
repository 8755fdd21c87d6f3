package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Route is one endpoint, relative to the group that holds it
type Route struct {
	Method   string
	Path     string
	Handlers []gin.HandlerFunc
}

func route(method, p string, handlers ...gin.HandlerFunc) Route {
	return Route{Method: method, Path: p, Handlers: handlers}
}

// Get, Post, Put and Delete build a Route for the matching method
func Get(p string, h ...gin.HandlerFunc) Route    { return route(http.MethodGet, p, h...) }
func Post(p string, h ...gin.HandlerFunc) Route   { return route(http.MethodPost, p, h...) }
func Put(p string, h ...gin.HandlerFunc) Route    { return route(http.MethodPut, p, h...) }
func Delete(p string, h ...gin.HandlerFunc) Route { return route(http.MethodDelete, p, h...) }

// Group is a path prefix with its own middleware. Nested groups inherit the
// prefix and middleware of their parent.
type Group struct {
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
	Groups     []Group
}

func (g Group) mount(parent gin.IRouter) {
	rg := parent.Group(g.Prefix, g.Middleware...)
	for _, r := range g.Routes {
		rg.Handle(r.Method, r.Path, r.Handlers...)
	}
	for _, sub := range g.Groups {
		sub.mount(rg)
	}
}

// Endpoints lists every route of g and its subgroups as "METHOD /full/path"
func (g Group) Endpoints() []string {
	var out []string
	g.walk("/", func(method, full string) {
		out = append(out, method+" "+full)
	})
	return out
}

func (g Group) walk(base string, fn func(method, full string)) {
	prefix := path.Join(base, g.Prefix)
	for _, r := range g.Routes {
		full := prefix
		if r.Path != "" {
			full = path.Join(prefix, r.Path)
		}
		fn(r.Method, full)
	}
	for _, sub := range g.Groups {
		sub.walk(prefix, fn)
	}
}

// Mount registers groups under /api/<version>. The api middleware runs
// before any group middleware and never on routes outside the api prefix.
func Mount(engine gin.IRouter, version string, api []gin.HandlerFunc, groups ...Group) {
	Group{Prefix: "/api/" + version, Middleware: api, Groups: groups}.mount(engine)
}
