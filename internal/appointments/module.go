// Package appointments wires the appointment booking bounded context.
package appointments

import (
	"tireshop_backend/internal/appointments/handler"
	"tireshop_backend/internal/appointments/repository"
	"tireshop_backend/internal/appointments/service"
	"tireshop_backend/internal/events"
	apphttp "tireshop_backend/internal/http"
	"tireshop_backend/platform/httpkit"
	"tireshop_backend/platform/logger"
	"tireshop_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the appointments repository, service and handlers.
type Module struct {
	Repo    *repository.Repository
	Service *service.Service
	public  *handler.PublicHandler
	admin   *handler.AdminHandler
}

// New assembles the appointments module.
func New(pool *pgxpool.Pool, bus events.Bus, payments service.PaymentGateway, audit service.Recorder, validate *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, payments, audit, log)
	return &Module{
		Repo:    repo,
		Service: svc,
		public:  handler.NewPublicHandler(svc, validate),
		admin:   handler.NewAdminHandler(svc),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "appointments" }

// RegisterRoutes mounts the public and admin appointment routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.Public.Group("/appointments")
	public.POST("", ctx.RateLimiter.Limit(httpkit.ActionBooking), m.public.Book)
	public.GET("/availability", ctx.RateLimiter.Limit(httpkit.ActionLookup), m.public.Availability)
	public.GET("/:token", ctx.RateLimiter.Limit(httpkit.ActionManage), m.public.GetByToken)
	public.POST("/:token/cancel", ctx.RateLimiter.Limit(httpkit.ActionManage), m.public.Cancel)
	public.POST("/:token/reschedule", ctx.RateLimiter.Limit(httpkit.ActionManage), m.public.Reschedule)

	admin := ctx.Admin.Group("/appointments")
	admin.GET("", m.admin.List)
	admin.POST("/:id/confirm", m.admin.Confirm)
	admin.POST("/:id/complete", m.admin.Complete)
}
