package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/benz9527/rbkv/lib/tree"
	"github.com/benz9527/rbkv/observability"
	"github.com/benz9527/rbkv/rbapp"
	"github.com/benz9527/rbkv/xlog"
)

type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newLogger(cfg *config) (xlog.XLogger, error) {
	return xlog.NewXLogger(cfg.loggerOptions()...)
}

func newMeterProvider(lc fx.Lifecycle, cfg *config, s streams, logger xlog.XLogger) (metric.MeterProvider, error) {
	mp, shutdown, err := observability.InitMetricsExporter(cfg.metricsConfig(s.errOut))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func(ctx context.Context) error {
		logger.Debug("metrics exporter shutdown", zap.String("exporter", cfg.metrics))
		return shutdown(ctx)
	}))
	return mp, nil
}

func newTree(cfg *config) tree.RBMultiMap[string, string] {
	m := tree.NewRBMultiMap[string, string]()
	if cfg.concurrent {
		return tree.NewThreadSafeRBMultiMap[string, string](m)
	}
	return m
}

func newTreeStats(mp metric.MeterProvider, m tree.RBMultiMap[string, string]) *observability.TreeStats {
	return observability.NewTreeStats(mp, "rbapp", m.Len)
}

func newApp(m tree.RBMultiMap[string, string], s streams, logger xlog.XLogger, stats *observability.TreeStats) *rbapp.App {
	return rbapp.NewApp(
		rbapp.WithAppTree(m),
		rbapp.WithAppOutput(s.out),
		rbapp.WithAppLogger(logger.Named("rbapp")),
		rbapp.WithAppStats(stats),
	)
}

func initAppStats(mp metric.MeterProvider) error {
	return observability.InitAppStats(mp, "rbapp")
}

// runREPL reads the commands in the background and shuts the
// application down after quit or EOF.
func runREPL(lc fx.Lifecycle, sd fx.Shutdowner, app *rbapp.App, s streams, logger xlog.XLogger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				code := 0
				if err := app.Run(ctx, s.in); err != nil && ctx.Err() == nil {
					logger.Error(err, "rbapp stopped")
					code = 1
				}
				logger.Debug("rbapp input closed", zap.Int64("entries", app.Tree().Len()))
				if err := sd.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Error(err, "rbapp shutdown")
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func appOptions(cfg *config, s streams) fx.Option {
	return fx.Options(
		fx.Supply(cfg, s),
		fx.Provide(
			newLogger,
			newMeterProvider,
			newTree,
			newTreeStats,
			newApp,
		),
		fx.WithLogger(func(logger xlog.XLogger) fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Invoke(initAppStats, runREPL),
	)
}

func run(args []string, s streams) int {
	cfg, err := parseFlags(args, s.errOut)
	if err != nil {
		return 2
	}

	var logger xlog.XLogger
	app := fx.New(appOptions(cfg, s), fx.Populate(&logger))
	if err = app.Err(); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "rbapp: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Close()
	}()

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err = app.Start(startCtx); err != nil {
		logger.Error(err, "rbapp start")
		return 1
	}

	sig := <-app.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err = app.Stop(stopCtx); err != nil {
		logger.Error(err, "rbapp stop")
		return 1
	}
	return sig.ExitCode
}

func main() {
	os.Exit(run(os.Args[1:], streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}))
}
