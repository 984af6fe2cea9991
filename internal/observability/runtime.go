package observability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/credkit/session-service/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Runtime owns the three OTel providers for the process. Logs, metrics and
// traces are initialized in that order so a failure mid-way can unwind the
// providers that already started.
type Runtime struct {
	LoggerProvider *sdklog.LoggerProvider
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider

	shutdowns []func(context.Context) error
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{}

	lp, err := InitLogs(ctx, cfg, logger)
	if err != nil {
		return nil, rt.unwind(ctx, err)
	}
	rt.LoggerProvider = lp
	if lp != nil {
		rt.shutdowns = append(rt.shutdowns, lp.Shutdown)
	}

	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, rt.unwind(ctx, err)
	}
	rt.MeterProvider = mp
	if mp != nil {
		rt.shutdowns = append(rt.shutdowns, mp.Shutdown)
	}

	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		return nil, rt.unwind(ctx, err)
	}
	rt.TracerProvider = tp
	if tp != nil {
		rt.shutdowns = append(rt.shutdowns, tp.Shutdown)
	}

	return rt, nil
}

// unwind shuts down already-started providers in reverse order and returns
// the original init error.
func (r *Runtime) unwind(ctx context.Context, cause error) error {
	for i := len(r.shutdowns) - 1; i >= 0; i-- {
		_ = r.shutdowns[i](ctx)
	}
	return cause
}

// Shutdown flushes and stops every provider, reporting all failures rather
// than the first one.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.shutdowns) - 1; i >= 0; i-- {
		if err := r.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
