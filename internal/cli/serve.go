package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/era/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the current snapshot over HTTP",
		Long: `Serve exposes the saved snapshot read-only:

  GET /health
  GET /modules
  GET /tree/{category}
  GET /tree/{category}/{path...}
  GET /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.GetString(cfgKeyHTTPAddr)
			}
			store, _, err := a.attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			promReg := prometheus.NewRegistry()
			promReg.MustRegister(collectors.NewGoCollector())
			router := httpapi.NewRouter(store, a.logger, httpapi.RouterConfig{Gatherer: promReg})
			return listenAndServe(cmd.Context(), addr, router, a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: http_addr from config.yaml)")
	return cmd
}

// listenAndServe runs an HTTP server until ctx ends.
func listenAndServe(ctx context.Context, addr string, h http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	logger.Info().Str("addr", addr).Msg("http server listening")
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := srv.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return sysError(fmt.Errorf("shutdown http server: %w", err))
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return sysError(fmt.Errorf("serve http: %w", err))
	}
}
