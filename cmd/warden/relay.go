package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/health"
	"github.com/devblac/warden/internal/metrics"
	"github.com/devblac/warden/internal/relayer"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	flagDirection string
	flagOnce      bool
	flagInterval  time.Duration
	flagHealth    string
	flagMetrics   string
)

func init() {
	relayCmd.Flags().StringVar(&flagDirection, "direction", "both", "Direction to relay: source, destination or both")
	relayCmd.Flags().BoolVar(&flagOnce, "once", false, "Run one pass per direction and exit")
	relayCmd.Flags().DurationVar(&flagInterval, "interval", 15*time.Second, "Delay between passes")
	relayCmd.Flags().StringVar(&flagHealth, "health", "", "Health check HTTP address (e.g., :8080)")
	relayCmd.Flags().StringVar(&flagMetrics, "metrics", "", "Metrics HTTP address (e.g., :9090)")
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Scan bridge events and relay them to the counterpart chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs, err := parseDirections(flagDirection)
		if err != nil {
			return err
		}
		if flagInterval <= 0 {
			return bridge.ConfigErrorf("--interval must be positive")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var mtr *metrics.Metrics
		if flagMetrics != "" {
			mtr = metrics.Init()
		}
		a, r, err := setupRelay(ctx, mtr)
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.log

		if flagMetrics != "" {
			log.Info("metrics enabled", "addr", flagMetrics)
			srv := serveMetrics(flagMetrics, log)
			defer shutdown(srv)
		}

		tracker := health.NewPassTracker()
		if flagHealth != "" {
			rpcChecker := health.NewRPCChecker(a.chainClients())
			healthSrv := health.Serve(flagHealth, health.Checker{
				DBPing:  a.store.Ping,
				RPCPing: rpcChecker.Ping,
				Passes:  tracker,
			})
			log.Info("health check enabled", "addr", flagHealth)
			defer shutdown(healthSrv)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, dir := range dirs {
			dir := dir
			g.Go(func() error {
				return loop(gctx, r, dir, tracker, log)
			})
		}
		return g.Wait()
	},
}

func parseDirections(s string) ([]bridge.Role, error) {
	if strings.EqualFold(strings.TrimSpace(s), "both") {
		return bridge.Roles, nil
	}
	role, err := bridge.ParseRole(s)
	if err != nil {
		return nil, err
	}
	return []bridge.Role{role}, nil
}

// loop runs passes for one direction until ctx ends. Transient failures wait
// for the next pass; anything else stops the loop.
func loop(ctx context.Context, r *relayer.Relayer, dir bridge.Role, tracker *health.PassTracker, log *slog.Logger) error {
	for {
		res, err := r.RunPass(ctx, dir)
		tracker.Observe(dir.String(), string(res.Outcome))
		switch {
		case err == nil:
			if flagOnce && res.Outcome == relayer.NoEvents {
				log.Info("no events found", "direction", dir, "window", res.Window.String())
			}
		case ctx.Err() != nil:
			return nil
		case bridge.Retryable(err):
			log.Warn("pass will be retried", "direction", dir, "err", err)
		default:
			return err
		}
		if flagOnce {
			return nil
		}

		t := time.NewTimer(flagInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func serveMetrics(addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = health.Shutdown(ctx, srv)
}
