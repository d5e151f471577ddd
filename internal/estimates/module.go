// Package estimates wires the estimate approval bounded context.
package estimates

import (
	"tireshop_backend/internal/estimates/handler"
	"tireshop_backend/internal/estimates/repository"
	"tireshop_backend/internal/estimates/service"
	"tireshop_backend/internal/events"
	apphttp "tireshop_backend/internal/http"
	"tireshop_backend/platform/httpkit"
	"tireshop_backend/platform/logger"
	"tireshop_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the estimates repository, service and handlers.
type Module struct {
	Repo    *repository.Repository
	Service *service.Service
	public  *handler.PublicHandler
	admin   *handler.AdminHandler
}

// New assembles the estimates module.
func New(pool *pgxpool.Pool, bus events.Bus, validate *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	return &Module{
		Repo:    repo,
		Service: svc,
		public:  handler.NewPublicHandler(svc, validate),
		admin:   handler.NewAdminHandler(svc, validate),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "estimates" }

// RegisterRoutes mounts the public and admin estimate routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.Public.Group("/estimates")
	public.GET("/:token", ctx.RateLimiter.Limit(httpkit.ActionManage), m.public.Get)
	public.POST("/:token/respond", ctx.RateLimiter.Limit(httpkit.ActionManage), m.public.Respond)

	admin := ctx.Admin.Group("/estimates")
	admin.POST("", m.admin.Create)
	admin.GET("", m.admin.List)
	admin.GET("/:id", m.admin.Get)
	admin.POST("/:id/send", m.admin.Send)
	admin.POST("/:id/supersede", m.admin.Supersede)
}
