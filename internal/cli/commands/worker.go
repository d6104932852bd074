package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewWorkerCommand creates the worker command.
func NewWorkerCommand() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Rebuild materialized views as their sources change",
		Long: `Run the view worker until interrupted. Views that are not AVAILABLE
are queued on start. Lock contention is retried with exponential backoff.

With --metrics-addr, Prometheus metrics are served on /metrics.`,
		Example: `  leaptable worker --metrics-addr :9090`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if metricsAddr == "" {
				metricsAddr = GetSettings(ctx).Cfg.MetricsAddr
			}
			return runWorker(ctx, cmd, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve /metrics on (default from config, disabled when empty)")
	return cmd
}

func runWorker(ctx context.Context, cmd *cobra.Command, metricsAddr string) error {
	s := *GetSettings(cmd.Context())
	reg := prometheus.NewRegistry()
	s.Registerer = reg

	eng, err := createEngine(ctx, &s)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	n, err := eng.QueueStaleViews(ctx)
	if err != nil {
		return fmt.Errorf("failed to queue stale views: %w", err)
	}
	s.Logger.Info("worker starting", slog.Int("queued", n))

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := eng.RunWorker(egctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if metricsAddr != "" {
		srv := newMetricsServer(egctx, metricsAddr, reg)
		eg.Go(func() error {
			s.Logger.Info("serving metrics", slog.String("addr", metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-egctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return eg.Wait()
}

func newMetricsServer(ctx context.Context, addr string, gatherer prometheus.Gatherer) *http.Server {
	r := chi.NewMux()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}
}
