package cmd

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	monitor "github.com/nikiz24/monitor/v2"
	"github.com/nikiz24/monitor/v2/instrument"
	"github.com/nikiz24/monitor/v2/internal/config"
	"github.com/nikiz24/monitor/v2/internal/logging"
	"github.com/nikiz24/monitor/v2/metric"
	"github.com/nikiz24/monitor/v2/reservoir"
)

// Version is set at build time.
var Version = "dev"

// RootCmd is the root Cobra command that gets called from the main func.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor-demo",
		Short: "Feed a counter, a gauge and two reservoirs into the configured sinks.",
		Long: `monitor-demo increments a value every step and publishes it as a rate
counter, a gauge and a decaying reservoir, and times every iteration into a
second reservoir. The timer series is removed after ten iterations.

Sinks are enabled by their flags (--console, --graphite, --influx-url,
--remote-write-url, --kafka-brokers, --prometheus) or by the same keys in the
file given with --config.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(settings.LogLevel, settings.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			settings.Monitor.Logger = logger

			step, err := cmd.Flags().GetDuration("step")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, settings, step, logger)
		},
	}
	config.Flags(cmd.Flags())
	cmd.Flags().Duration("step", time.Second, "Pause between iterations")

	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}

func run(ctx context.Context, settings *config.Settings, step time.Duration, logger *zap.Logger) error {
	m, err := monitor.New(settings.Monitor)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Stop(); err != nil {
			logger.Warn("Error while stopping monitor", zap.Error(err))
		}
	}()
	if err := monitor.RegisterSystemMetrics(m); err != nil {
		return err
	}

	if settings.Monitor.Prometheus {
		srv := serveMetrics(settings.Listen, m, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	parent := metric.NewTag("measurement-name").With("env", "dev").With("host", host)

	var i atomic.Uint64
	values := reservoir.NewExpDecay()
	timings := reservoir.NewExpDecay()

	reg := m.Registry()
	for _, add := range []func() error{
		func() error { return reg.Add(parent.Child("counter"), instrument.NewCounter(i.Load, "counter")) },
		func() error { return reg.Add(parent.Child("gauge"), instrument.NewGauge(i.Load, "gauge")) },
		func() error { return reg.AddAggregated(parent.Child("reservoir"), values) },
		func() error { return reg.AddAggregated(parent.Child("timer"), timings) },
	} {
		if err := add(); err != nil {
			return err
		}
	}

	logger.Info("Demo started", zap.Duration("step", step), zap.Duration("interval", settings.Monitor.Interval))
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		scope := instrument.StartTimer(timings, time.Millisecond)
		values.Push(float64(i.Load()))
		if i.Add(1) == 10 {
			removed := reg.RemoveAll(parent.Child("timer"))
			logger.Info("Removed timer series", zap.Int("generators", removed))
		}

		select {
		case <-ctx.Done():
			scope.Discard()
			logger.Info("Demo stopping", zap.Uint64("iterations", i.Load()))
			return nil
		case <-ticker.C:
			scope.Stop()
		}
	}
}

func serveMetrics(addr string, m *monitor.Monitor, logger *zap.Logger) *http.Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(m.Collector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", addr))
	return srv
}
