package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/memvra/branchmind/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		metricsAddr string
		noIngest    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the thought graph as MCP tools over stdio",
		Long: `Start an MCP server on stdin/stdout. Project notes are ingested first
unless --no-ingest is set, so the client starts from the current graph.

With --metrics-addr, cache and gateway metrics are exposed in Prometheus
format at /metrics on that address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := findRoot()
			if err != nil {
				return err
			}
			sess, err := openSession(root)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			if !noIngest {
				stats, err := ingestNotes(ctx, sess, root, false)
				if err != nil {
					return err
				}
				if _, err := sess.Recompute(ctx); err != nil {
					logger.Warn("initial cross-reference pass failed", zap.Error(err))
				}
				logger.Info("notes ingested", zap.Int("notes", stats.Notes), zap.Int("thoughts", stats.Thoughts))
			}

			if metricsAddr == "" {
				metricsAddr = sess.Config().Server.MetricsAddr
			}
			srv := mcp.NewServer(sess, version, logger)
			if metricsAddr == "" {
				return srv.ServeStdio()
			}

			httpSrv := &http.Server{
				Addr:              metricsAddr,
				Handler:           metricsHandler(sess.Metrics().Registry()),
				ReadHeaderTimeout: 5 * time.Second,
			}
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("metrics listening", zap.String("addr", metricsAddr))
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				err := srv.ServeStdio()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
				return err
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	cmd.Flags().BoolVar(&noIngest, "no-ingest", false, "start with an empty graph")
	return cmd
}

func metricsHandler(reg prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
