package cli

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/era/internal/httpapi"
	"github.com/mesh-intelligence/era/internal/metrics"
	"github.com/mesh-intelligence/era/internal/registry"
	"github.com/mesh-intelligence/era/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Reload content and re-save the snapshot whenever files change",
		Long: `Watch loads the content dirs like load, then watches them. After changes
settle, it builds a new registry from scratch and saves a new snapshot.
With --http it also serves the live registry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := a.contentDirs(args)
			if err != nil {
				return userError(err)
			}

			promReg := prometheus.NewRegistry()
			m := metrics.NewWithRegistry(promReg)

			var current atomic.Pointer[registry.Registry]
			rebuild := func(ctx context.Context) error {
				reg, err := a.loadContent(ctx, dirs, m)
				if err != nil {
					return err
				}
				if _, err := a.saveSnapshot(reg.Snapshot()); err != nil {
					return err
				}
				current.Store(reg)
				return nil
			}
			if err := rebuild(cmd.Context()); err != nil {
				return err
			}

			w := watch.New(dirs, rebuild, watch.WithLogger(a.logger), watch.WithMetrics(m))
			if httpAddr == "" {
				if err := w.Run(cmd.Context()); err != nil {
					return sysError(err)
				}
				return nil
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				if err := w.Run(ctx); err != nil {
					return sysError(err)
				}
				return nil
			})
			g.Go(func() error {
				router := httpapi.NewRouter(httpapi.FromRegistry(current.Load), a.logger,
					httpapi.RouterConfig{Gatherer: promReg})
				return listenAndServe(ctx, httpAddr, router, a.logger)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "also serve the live registry on this address")
	return cmd
}
