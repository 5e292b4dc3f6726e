// Package commands holds the proclens subcommands.
package commands

import (
	"context"

	"proclens/api"
	"proclens/collector"
	"proclens/config"
	"proclens/metrics"
	"proclens/utils"
	"proclens/web"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configFilePath string
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI and the process collector",
		Long:  "Start the web UI and the process collector",
		Run:   serveCmdRun,
	}
)

func init() {
	ServeCmd.Flags().StringVar(&configFilePath, "config", "", "Path to a YAML config file")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configFilePath)
	if err != nil {
		utils.Die(err, "Failed to load configuration")
	}
	return cfg
}

func newBootstrapper(cfg *config.Config, m *metrics.Metrics) *api.Bootstrapper {
	b, err := api.NewBootstrapper(cfg, api.ExecLauncher{}, api.ProbingPinger{Timeout: cfg.ProbeTimeout}, m)
	if err != nil {
		utils.Die(err, "Invalid Ollama URL")
	}
	return b
}

func serveCmdRun(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalNotify := utils.HandleInterrupts()
	go func() {
		select {
		case <-signalNotify:
			log.Info("Shutdown...")
			cancel()
		case <-ctx.Done():
		}
	}()

	log.WithFields(log.Fields{
		"ollama":   cfg.OllamaURL,
		"model":    cfg.Model,
		"interval": cfg.RefreshInterval,
		"size":     cfg.SnapshotSize,
	}).Info("Starting proclens")

	newBootstrapper(cfg, m).EnsureServer(ctx)

	store := collector.NewStore()
	coll, closeColl := collector.FromConfig(cfg, store, m)
	defer closeColl()

	srv, err := web.NewServer(store, api.NewClient(cfg, m), cfg.RefreshInterval, m.Handler())
	if err != nil {
		utils.Die(err, "Failed to build web UI")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		coll.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.ListenAddr)
	})

	if err := g.Wait(); err != nil {
		utils.Die(err, "Web UI stopped")
	}
}
