package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/internal/api/http/handler"
	"github.com/Alijeyrad/labtrace_backend/internal/service/export"
	"github.com/Alijeyrad/labtrace_backend/internal/service/lot"
	"github.com/Alijeyrad/labtrace_backend/internal/service/specimen"
	"github.com/Alijeyrad/labtrace_backend/internal/service/traceability"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg             *config.Config
	Store           store.Store
	TraceabilitySvc traceability.Service
	LotSvc          lot.Service
	SpecimenSvc     specimen.Service
	ExportSvc       export.Service
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	r.registerSystemRoutes(app)

	jobH := handler.NewJobHandler(r.p.TraceabilitySvc, r.p.ExportSvc)
	lotH := handler.NewLotHandler(r.p.LotSvc, r.p.TraceabilitySvc)
	prepH := handler.NewPreparationHandler(r.p.TraceabilitySvc)
	specimenH := handler.NewSpecimenHandler(r.p.SpecimenSvc)

	api := app.Group("/api/v1")

	r.registerJobRoutes(api, jobH)
	r.registerLotRoutes(api, lotH)
	r.registerPreparationRoutes(api, prepH)
	r.registerSpecimenRoutes(api, specimenH)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool { return r.p.Store.Ping(c.Context()) == nil },
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
