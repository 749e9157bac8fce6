package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactive/pkg/inspect"
	"github.com/vango-dev/reactive/pkg/instrument"
	"github.com/vango-dev/reactive/pkg/reactive"
)

func serveCmd() *cobra.Command {
	var (
		addr     string
		interval time.Duration
		debug    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a demo graph with the HTTP inspector attached",
		Long: `Run a small self-mutating graph and serve the inspector on the given
address. Useful endpoints:

  GET /graph   - JSON snapshot of the dependency graph
  GET /metrics - Prometheus metrics
  GET /live    - WebSocket event stream`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(addr, interval, debug)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8484", "Listen address")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Demo write interval")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable engine debug logging")

	return cmd
}

func serve(addr string, interval time.Duration, debug bool) error {
	reactive.DebugMode = debug

	metrics := instrument.NewMetrics()
	reactive.AddObserver(metrics)
	defer reactive.RemoveObserver(metrics)

	in := inspect.New(nil)
	reactive.AddObserver(in)
	defer reactive.RemoveObserver(in)
	defer in.Close()

	// Demo graph: a ticking counter with a couple of derived views.
	tick := reactive.NewAtom(0)
	parity := reactive.NewDerivation(func() string {
		if tick.Get()%2 == 0 {
			return "even"
		}
		return "odd"
	})
	squared := reactive.NewDerivation(func() int {
		v := tick.Get()
		return v * v
	})

	logger := slog.Default().With("component", "demo")
	disposeParity := reactive.OnChange[string](parity, func(v string, err error) {
		logger.Info("parity flipped", "parity", v)
	})
	defer disposeParity()
	disposeSquared := reactive.OnChange[int](squared, func(v int, err error) {
		logger.Debug("square updated", "value", v)
	})
	defer disposeSquared()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick.Update(func(n int) int { return n + 1 })
			}
		}
	}()

	srv := &http.Server{
		Addr:              addr,
		Handler:           in.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	success("inspector listening on %s", addr)
	info("graph:   http://localhost%s/graph", addr)
	info("metrics: http://localhost%s/metrics", addr)
	info("live:    ws://localhost%s/live", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
