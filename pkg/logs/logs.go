package logs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/pkg/constants"
	"github.com/Alijeyrad/labtrace_backend/pkg/reqctx"
)

// New builds a logger from config, fanning out to stdout, a rotating file
// and Loki. The returned stop function flushes buffered outputs.
func New(cfg *config.Config) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Logging.Level)
	isDev := strings.EqualFold(cfg.Server.Environment, "development")
	out := cfg.Logging.Output

	var (
		writers []io.Writer
		closers []func()
	)

	// stdout is the fallback when nothing else is configured
	if out.Stdout || (!out.File.Enabled && !out.Loki.Enabled) {
		writers = append(writers, os.Stdout)
	}

	if out.File.Enabled {
		lj := &lumberjack.Logger{
			Filename:   out.File.Path,
			MaxSize:    out.File.MaxSizeMB,
			MaxBackups: out.File.MaxBackups,
			MaxAge:     out.File.MaxAgeDays,
			Compress:   out.File.Compress,
		}
		writers = append(writers, lj)
		closers = append(closers, func() { _ = lj.Close() })
	}

	var handlers []slog.Handler

	if len(writers) > 0 {
		w := io.MultiWriter(writers...)
		opts := &slog.HandlerOptions{
			Level:     level,
			AddSource: isDev,
		}
		if strings.EqualFold(cfg.Logging.Format, "json") || !isDev {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(w, opts))
		}
	}

	if out.Loki.Enabled {
		h, stop, err := newLokiHandler(cfg, level)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, h)
		closers = append(closers, stop)
	}

	var h slog.Handler = slogmulti.Fanout(handlers...)
	if len(handlers) == 1 {
		h = handlers[0]
	}

	logger := slog.New(withRequestID(h)).With(
		slog.String("service", cfg.Observability.ServiceName),
		slog.String("version", cfg.Observability.ServiceVersion),
		slog.String("env", cfg.Server.Environment),
	)
	stop := func() {
		for _, c := range closers {
			c()
		}
	}
	return logger, stop, nil
}

func Default() *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: false,
	})
	return slog.New(withRequestID(h)).With(slog.String("service", constants.ServiceName))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// stampRequestID adds the request id carried by the record's context.
var stampRequestID = slogmulti.NewHandleInlineMiddleware(
	func(ctx context.Context, r slog.Record, next func(context.Context, slog.Record) error) error {
		if rid := reqctx.RequestIDFromContext(ctx); rid != "" {
			r.AddAttrs(slog.String("request_id", rid))
		}
		return next(ctx, r)
	},
)

func withRequestID(h slog.Handler) slog.Handler {
	return slogmulti.Pipe(stampRequestID).Handler(h)
}
