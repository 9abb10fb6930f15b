// Command turbojob runs the engine headless: a scene of synthetic behaviours
// driven by the render and physics loops on the work-stealing scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/gaohao-creator/turbojob/engine"
	"github.com/gaohao-creator/turbojob/logging"
	"github.com/gaohao-creator/turbojob/scene"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	opts := NewOptions()
	opts.AddFlags(pflag.CommandLine)
	pflag.Parse()
	if err := opts.Validate(); err != nil {
		return err
	}
	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	logger, sync, err := logging.NewLogger(cfg.Log.Verbosity, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = sync() }()

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.V(logging.VERBOSE).Info(fmt.Sprintf(format, args...))
	}))
	defer undo()
	if err != nil {
		logger.Error(err, "failed to set GOMAXPROCS")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng, err := engine.New(cfg, engine.Deps{
		Logger:     logger,
		Registerer: registry,
	})
	if err != nil {
		return err
	}
	counters := populate(eng.Scene(), opts.Behaviours)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return eng.Run(ctx)
	})
	if cfg.Metrics.Addr != "" {
		serveMetrics(ctx, g, cfg.Metrics.Addr, registry, logger)
	}
	err = g.Wait()

	stats := eng.Scheduler().Stats()
	logger.Info("engine finished",
		"frames", eng.Render().Frames(),
		"ticks", eng.Physics().Ticks(),
		"updates", counters.updates.Load(),
		"fixedUpdates", counters.fixed.Load(),
		"submitted", stats.Submitted,
		"executed", stats.Executed,
		"stolen", stats.Stolen,
		"droppedSteps", eng.Physics().Driver().Dropped())
	return err
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, registry *prometheus.Registry, logger logr.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

type counters struct {
	updates atomic.Uint64
	fixed   atomic.Uint64
}

// populate fills sc with n behaviours that only count their calls.
func populate(sc *scene.Scene, n int) *counters {
	c := &counters{}
	for i := 0; i < n; i++ {
		sc.Add(fmt.Sprintf("behaviour-%d", i), scene.Funcs{
			OnUpdate:      func(time.Duration) { c.updates.Add(1) },
			OnFixedUpdate: func(time.Duration) { c.fixed.Add(1) },
		})
	}
	return c
}
