// Package router assembles the gin engine from the application modules.
package router

import (
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"

	apphttp "tireshop_backend/internal/http"
	"tireshop_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// New builds the HTTP engine: global middleware, health endpoint, and the
// public/admin route groups every module mounts into.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app))

	// Wrong-method requests get an explicit 405 instead of gin's default 404.
	engine.HandleMethodNotAllowed = true
	allowed := newAllowIndex(engine)
	engine.NoMethod(func(c *gin.Context) {
		if methods := allowed.forPath(c.Request.URL.Path); methods != "" {
			c.Header("Allow", methods)
		}
		httpkit.Error(c, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			if err := app.Health.Ping(c.Request.Context()); err != nil {
				httpkit.Error(c, http.StatusServiceUnavailable, "database unreachable", nil)
				return
			}
		}
		httpkit.OK(c, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")

	rateLimiter := httpkit.NewActionRateLimiter(app.Config, app.Logger)

	routerCtx := &apphttp.RouterContext{
		Engine:      engine,
		Public:      v1.Group("/public"),
		Admin:       v1.Group("/admin", httpkit.AuthRequired(app.Config)),
		Config:      app.Config,
		RateLimiter: rateLimiter,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(routerCtx)
		app.Logger.Info("module routes registered", "module", module.Name())
	}

	return engine
}

// allowIndex maps registered route patterns to the methods they accept, so
// 405 responses carry an accurate Allow header. The route table is
// snapshotted on first use, after every module has registered its routes.
type allowIndex struct {
	engine *gin.Engine
	once   sync.Once
	routes []allowRoute
}

type allowRoute struct {
	pattern *regexp.Regexp
	method  string
}

func newAllowIndex(engine *gin.Engine) *allowIndex {
	return &allowIndex{engine: engine}
}

// forPath returns the comma-separated methods registered for the given
// request path, or "" when no route matches it.
func (ai *allowIndex) forPath(path string) string {
	ai.once.Do(ai.build)

	seen := make(map[string]bool)
	var methods []string
	for _, r := range ai.routes {
		if !seen[r.method] && r.pattern.MatchString(path) {
			seen[r.method] = true
			methods = append(methods, r.method)
		}
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

func (ai *allowIndex) build() {
	for _, route := range ai.engine.Routes() {
		re, err := patternToRegexp(route.Path)
		if err != nil {
			continue
		}
		ai.routes = append(ai.routes, allowRoute{pattern: re, method: route.Method})
	}
}

// patternToRegexp turns a gin route path into a matcher for concrete request
// paths: ":param" segments match one path segment, "*param" the remainder.
func patternToRegexp(pattern string) (*regexp.Regexp, error) {
	segments := strings.Split(pattern, "/")
	parts := make([]string, len(segments))
	for i, seg := range segments {
		switch {
		case strings.HasPrefix(seg, ":"):
			parts[i] = "[^/]+"
		case strings.HasPrefix(seg, "*"):
			parts[i] = ".*"
		default:
			parts[i] = regexp.QuoteMeta(seg)
		}
	}
	return regexp.Compile("^" + strings.Join(parts, "/") + "$")
}

func corsMiddleware(app *apphttp.App) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if app.Config.GetCORSAllowAll() {
		corsConfig.AllowAllOrigins = true
	} else if origins := app.Config.GetCORSOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	return cors.New(corsConfig)
}
