// Package router mounts the API resources under /api/<version>.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Registrar adds its routes to the versioned API group
type Registrar interface {
	RegisterRoutes(api *gin.RouterGroup)
}

// Router collects resources and the middleware shared by all of them
type Router struct {
	engine  *gin.Engine
	version string
	chain   []gin.HandlerFunc
	entries []Registrar
}

// Option configures a Router
type Option func(*Router)

// WithAPIVersion sets the version segment of the prefix, "v1" by default
func WithAPIVersion(version string) Option {
	return func(r *Router) { r.version = version }
}

// NewRouter creates a Router for engine
func NewRouter(engine *gin.Engine, opts ...Option) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use appends middleware run before every API route
func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.chain = append(r.chain, middleware...)
	return r
}

// Register queues resources for Setup
func (r *Router) Register(entries ...Registrar) *Router {
	r.entries = append(r.entries, entries...)
	return r
}

// Setup mounts every queued resource. Call it once, after Use and Register.
func (r *Router) Setup() {
	api := r.engine.Group(path.Join("/api", r.version), r.chain...)
	for _, e := range r.entries {
		e.RegisterRoutes(api)
	}
}

// Resource is a path prefix with its routes and middleware
type Resource struct {
	prefix string
	chain  []gin.HandlerFunc
	routes []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewResource creates a Resource under prefix. middleware runs before the
// handlers of each of its routes.
func NewResource(prefix string, middleware ...gin.HandlerFunc) *Resource {
	return &Resource{prefix: prefix, chain: middleware}
}

// Handle adds a route
func (res *Resource) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *Resource {
	res.routes = append(res.routes, route{method: method, path: relativePath, handlers: handlers})
	return res
}

func (res *Resource) GET(relativePath string, handlers ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodGet, relativePath, handlers...)
}

func (res *Resource) POST(relativePath string, handlers ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodPost, relativePath, handlers...)
}

func (res *Resource) PUT(relativePath string, handlers ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodPut, relativePath, handlers...)
}

// RegisterRoutes implements Registrar
func (res *Resource) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group(res.prefix, res.chain...)
	for _, rt := range res.routes {
		g.Handle(rt.method, rt.path, rt.handlers...)
	}
}
