package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/MrWong99/courtroom/internal/config"
	"github.com/MrWong99/courtroom/internal/health"
	"github.com/MrWong99/courtroom/internal/mcpserver"
	"github.com/MrWong99/courtroom/internal/observe"
)

// shutdownTimeout bounds the graceful stop of the observability listener.
const shutdownTimeout = 5 * time.Second

var mcpFlags struct {
	watch    bool
	interval time.Duration
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the law matcher and simulator as MCP tools over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing search_laws, simulate_case and
list_crimes. Logs go to stderr.

With --watch the config file is polled and matcher, simulation, corpus and
lexicon changes are applied without a restart.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	f := mcpCmd.Flags()
	f.BoolVar(&mcpFlags.watch, "watch", false, "reload the config file when it changes")
	f.DurationVar(&mcpFlags.interval, "watch-interval", config.DefaultPollInterval, "how often --watch polls the config file")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()

	if mcpFlags.watch {
		w, err := config.NewWatcher(rootFlags.configPath, func(old, new *config.Config) {
			e.svc.Reload(ctx, old, new)
		}, config.WithInterval(mcpFlags.interval))
		if err != nil {
			return err
		}
		defer w.Stop()
		slog.Info("watching config", "path", rootFlags.configPath, "interval", mcpFlags.interval)
	}

	stopServer, err := startObservability(ctx, e)
	if err != nil {
		return err
	}
	defer stopServer()

	srv := mcpserver.New(e.svc, version, mcpserver.WithMetrics(e.metrics))
	slog.Info("starting courtroom MCP server over stdio", "version", version)
	return srv.Run(ctx)
}

// startObservability serves /metrics, /healthz and /readyz on
// server.metrics_addr. It is a no-op when the address is empty. The returned
// function stops the listener.
func startObservability(ctx context.Context, e *env) (stop func(), err error) {
	addr := e.cfg.Server.MetricsAddr
	if addr == "" {
		return func() {}, nil
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(e.checkers()...).Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(e.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	ln, err := listen(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("observability listener: %w", err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server stopped", "err", err)
		}
	}()
	slog.Info("observability server listening", "addr", ln.Addr().String())

	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			slog.Warn("observability server shutdown", "err", err)
		}
	}, nil
}

func listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}
