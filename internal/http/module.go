// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"tireshop_backend/platform/config"
	"tireshop_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router group.
	// The RouterContext provides access to shared middleware and configuration.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
// This avoids passing many parameters to each module's RegisterRoutes method.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// Public is the unauthenticated /api/v1/public route group. Modules
	// apply the per-action rate limiters themselves.
	Public *gin.RouterGroup
	// Admin is the JWT-protected back-office route group under /api/v1/admin.
	Admin *gin.RouterGroup
	// Config is the JWT configuration for the admin middleware (scoped access).
	Config config.JWTConfig
	// RateLimiter holds the per-action public rate limiters.
	RateLimiter *httpkit.ActionRateLimiter
}
