package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/internal/service/export"
	"github.com/Alijeyrad/labtrace_backend/internal/service/lot"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/internal/store/memory"
	"github.com/Alijeyrad/labtrace_backend/internal/store/postgres"
	"github.com/Alijeyrad/labtrace_backend/pkg/database"
	"github.com/Alijeyrad/labtrace_backend/pkg/events"
	"github.com/Alijeyrad/labtrace_backend/pkg/logs"
	"github.com/Alijeyrad/labtrace_backend/pkg/observability"
	redispkg "github.com/Alijeyrad/labtrace_backend/pkg/redis"
	s3pkg "github.com/Alijeyrad/labtrace_backend/pkg/s3"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideLogger),
	fx.Provide(ProvideStore),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideNatsConn),
	fx.Provide(ProvidePublisher),
	fx.Provide(ProvideArchiver),
	fx.Provide(ProvideCounter),
)

func ProvideLogger(lc fx.Lifecycle, cfg *config.Config) (*slog.Logger, error) {
	logger, stop, err := logs.New(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stop()
			return nil
		},
	})
	return logger, nil
}

func ProvideStore(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil

	case config.StoragePostgres:
		drv, err := database.NewDriver(cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrations.AutoMigrate {
			if err := database.Migrate(context.Background(), drv); err != nil {
				_ = drv.Close()
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		st := postgres.New(drv, log)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Debug("closing document store")
				return st.Close()
			},
		})
		return st, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// ProvideRedis returns nil when Redis is disabled; consumers take it as
// optional.
func ProvideRedis(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rdb, err := redispkg.New(context.Background(), cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideNatsConn(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*nats.Conn, error) {
	if !cfg.Events.Enabled {
		return nil, nil
	}
	nc, err := events.Connect(cfg.Events)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvidePublisher(cfg *config.Config, nc *nats.Conn) events.Publisher {
	if nc == nil {
		return events.Noop{}
	}
	return events.NewNATSPublisher(nc, cfg.Events.SubjectPrefix)
}

// ProvideArchiver returns a nil Archiver when archiving is disabled.
func ProvideArchiver(cfg *config.Config) (export.Archiver, error) {
	if !cfg.Export.Archive.Enabled {
		return nil, nil
	}
	cli, err := s3pkg.New(context.Background(), cfg.Export.Archive)
	if err != nil {
		return nil, err
	}
	return cli, nil
}

func ProvideCounter(cfg *config.Config, rdb *redis.Client) (lot.Counter, error) {
	switch cfg.Traceability.Counter {
	case config.CounterNone:
		return lot.NoCounter{}, nil
	case config.CounterLocal:
		return lot.NewLocalCounter(), nil
	case config.CounterRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis counter requires redis.enabled")
		}
		return lot.NewRedisCounter(rdb, cfg.Traceability.CounterKeyPrefix), nil
	}
	return nil, fmt.Errorf("unknown counter %q", cfg.Traceability.Counter)
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.FromConfig(cfg))
	if err != nil {
		return nil, err
	}
	log.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}
