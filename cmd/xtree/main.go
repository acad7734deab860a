package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/benz9527/xtree/lib/tree"
	"github.com/benz9527/xtree/observability"
	"github.com/benz9527/xtree/workload"
	"github.com/benz9527/xtree/xlog"
)

const (
	appName        = "xtree"
	reclaimTimeout = 2 * time.Second
)

var initMetricsExporter = observability.InitMetricsExporter

func newLogger() xlog.XLogger {
	return xlog.NewXLogger(
		xlog.WithXLoggerEncoder(xlog.PlainText),
		xlog.WithXLoggerWriter(xlog.StdOut),
		xlog.WithXLoggerContextFieldExtract("scenario"),
	)
}

// newTreeStats installs the meter provider and the tree observer. The
// provider is shut down on stop, which flushes the last export.
func newTreeStats(lc fx.Lifecycle, cfg *config) (*observability.TreeStats, error) {
	shutdown, err := initMetricsExporter(cfg.metrics, defaultMetricsInterval)
	if err != nil {
		return nil, err
	}
	observability.InitAppStats(context.Background(), appName, nil)

	stats := observability.NewTreeStats(otel.Meter(observability.TreeStatsName))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			tree.SetObserver(stats)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			tree.SetObserver(nil)
			return shutdown(ctx)
		},
	})
	return stats, nil
}

func serveMetrics(lc fx.Lifecycle, cfg *config, logger xlog.XLogger) {
	if cfg.metrics != observability.PrometheusExporter {
		return
	}
	srv := observability.NewMetricsServer(cfg.metricsAddr)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("xtree metrics served", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
					logger.Error(err, "xtree metrics server stopped")
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}

func newRunner(lc fx.Lifecycle, cfg *config, logger xlog.XLogger) (*workload.Runner, error) {
	r, err := workload.NewRunner(append(cfg.runnerOptions(), workload.WithLogger(logger))...)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(r.Release))
	return r, nil
}

func run(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config,
	logger xlog.XLogger,
	r *workload.Runner,
	stats *observability.TreeStats,
) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				code := 0
				report, err := r.Run(ctx)
				if err != nil {
					logger.ErrorStack(err, "xtree workload failed")
					code = 1
				}
				reclaimCtx, reclaimCancel := context.WithTimeout(ctx, reclaimTimeout)
				snap := stats.AwaitReclaimed(reclaimCtx, 10*time.Millisecond)
				reclaimCancel()
				logger.Info("xtree workload done",
					zap.Int64("scenarios", report.Scenarios),
					zap.Int64("steps", report.Steps),
					zap.Int64("nodes.created", snap.Created),
					zap.Int64("nodes.attached", snap.Attached),
					zap.Int64("nodes.detached", snap.Detached),
					zap.Int64("nodes.reclaimed", snap.Reclaimed),
					zap.Int64("nodes.live", snap.Live()),
				)
				if cfg.linger > 0 {
					select {
					case <-ctx.Done():
					case <-time.After(cfg.linger):
					}
				}
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "xtree:", err)
		os.Exit(2)
	}
	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Supply(cfg),
		fx.Provide(
			func() xlog.XLogger { return logger },
			newTreeStats,
			newRunner,
		),
		fx.Invoke(serveMetrics, run),
	).Run()
}
