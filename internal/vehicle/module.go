package vehicle

import (
	apphttp "tireshop_backend/internal/http"
	"tireshop_backend/platform/config"
	"tireshop_backend/platform/httpkit"
	"tireshop_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Module bundles the vehicle lookup client, cache and handler.
type Module struct {
	Service *Service
	handler *Handler
}

// New assembles the vehicle module. cache may be nil when redis is not
// configured; lookups then always hit the providers.
func New(cfg config.VehicleDataConfig, cache *redis.Client, log *logger.Logger) *Module {
	svc := NewService(NewClient(cfg, log), cache, cfg.GetVehicleCacheTTL(), log)
	return &Module{
		Service: svc,
		handler: NewHandler(svc),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "vehicle" }

// RegisterRoutes mounts the public vehicle lookup routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	vehicles := ctx.Public.Group("/vehicles")
	vehicles.GET("/vin/:vin", ctx.RateLimiter.Limit(httpkit.ActionLookup), m.handler.DecodeVIN)
	vehicles.GET("/tires", ctx.RateLimiter.Limit(httpkit.ActionLookup), m.handler.TireSizes)
}
