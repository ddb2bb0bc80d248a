package app

import (
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/internal/service/export"
	"github.com/Alijeyrad/labtrace_backend/internal/service/lot"
	"github.com/Alijeyrad/labtrace_backend/internal/service/resolve"
	"github.com/Alijeyrad/labtrace_backend/internal/service/specimen"
	"github.com/Alijeyrad/labtrace_backend/internal/service/traceability"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/pkg/events"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideResolver,
		ProvideTraceabilityService,
		ProvideLotService,
		ProvideSpecimenService,
		ProvideExportService,
	),
)

func ProvideResolver(st store.Store, log *slog.Logger) *resolve.Resolver {
	return resolve.New(st, log)
}

func ProvideTraceabilityService(st store.Store, res *resolve.Resolver, cfg *config.Config, log *slog.Logger) traceability.Service {
	return traceability.New(st, res, cfg.Traceability, log)
}

func ProvideLotService(
	st store.Store,
	res *resolve.Resolver,
	counter lot.Counter,
	pub events.Publisher,
	cfg *config.Config,
	log *slog.Logger,
) lot.Service {
	return lot.New(st, res, counter, pub, cfg.Traceability, log)
}

func ProvideSpecimenService(st store.Store, pub events.Publisher, log *slog.Logger) specimen.Service {
	return specimen.New(st, pub, log)
}

func ProvideExportService(jobs traceability.Service, archiver export.Archiver, cfg *config.Config, log *slog.Logger) export.Service {
	ttl := time.Duration(cfg.Export.Archive.PresignTTLSec) * time.Second
	return export.New(jobs, archiver, ttl, log)
}
