package commands

import (
	"context"
	"fmt"

	"github.com/moolen/kubetrace/internal/api"
	"github.com/moolen/kubetrace/internal/config"
	"github.com/moolen/kubetrace/internal/experiment"
	"github.com/moolen/kubetrace/internal/lifecycle"
	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var (
	serveTraces      traceFlags
	serveAPIPort     int
	serveOwnerArrows bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Analyze a capture and serve the results over HTTP",
	Long: `Runs every analysis over the configured traces, then serves the object
time graph, the pod startups and the cgroup CPU usage over HTTP until
SIGINT or SIGTERM. The config file is watched and log levels are re-applied
when it changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveTraces.kubernetes, "k8s-trace", "", "Path to the Kubernetes user-space trace (overrides traces.kubernetes)")
	serveCmd.Flags().StringSliceVar(&serveTraces.kernel, "kernel-trace", nil, "Path to a kernel sub-trace (overrides traces.kernel)")
	serveCmd.Flags().IntVar(&serveAPIPort, "api-port", 0, "Port the API server listens on (overrides api.port)")
	serveCmd.Flags().BoolVar(&serveOwnerArrows, "owner-arrows", false, "Draw edges from owners to the objects they create")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	serveTraces.apply(cfg)
	if serveAPIPort != 0 {
		cfg.API.Port = serveAPIPort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.GetLogger("serve")
	logger.Info("Starting kubetrace %s", Version)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	manager := lifecycle.NewManager()

	tracingProvider, err := tracing.NewProvider(cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to create tracing provider: %w", err)
	}
	if err := manager.Register(tracingProvider); err != nil {
		return err
	}

	// Analyses run to completion before the API starts serving their results.
	var exp *experiment.Experiment
	if err := manager.Register(lifecycle.Func{
		ComponentName: "analysis",
		OnStart: func(ctx context.Context) error {
			store, err := openSegmentStore(cfg.DataDir)
			if err != nil {
				return err
			}
			exp, err = runExperiment(ctx, cfg, runOptions{
				segments:    store,
				registerer:  registry,
				ownerArrows: serveOwnerArrows,
			})
			if err != nil {
				if exp != nil {
					_ = exp.Close()
					exp = nil
				} else {
					_ = store.Close()
				}
				return err
			}
			logger.Info("Analysis of %s complete: %d startup segments", exp.Name, exp.Segments.Len())
			return nil
		},
		OnStop: func(context.Context) error {
			if exp == nil {
				return nil
			}
			return exp.Close()
		},
	}); err != nil {
		return err
	}

	if cfg.API.Enabled {
		var server *api.Server
		if err := manager.Register(lifecycle.Func{
			ComponentName: "api",
			OnStart: func(ctx context.Context) error {
				server = api.New(cfg.API.Port, apiSources(exp, registry))
				return server.Start(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return server.Stop(ctx)
			},
		}); err != nil {
			return err
		}
	}

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, config.DefaultDebounce, func(newCfg *config.Config) error {
			return setupLog(newCfg, logLevelFlags)
		})
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		if err := manager.Register(lifecycle.Func{
			ComponentName: "config-watcher",
			OnStart:       watcher.Start,
			OnStop:        func(context.Context) error { return watcher.Stop() },
		}); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start components: %w", err)
	}
	logger.Info("kubetrace is running, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("Shutdown signal received, gracefully shutting down...")

	if err := manager.Stop(context.Background()); err != nil {
		logger.Error("Error during shutdown: %v", err)
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// apiSources exposes the results of exp. Providers whose analysis did not run
// are left out so their routes stay unregistered.
func apiSources(exp *experiment.Experiment, gatherer prometheus.Gatherer) api.Sources {
	sources := api.Sources{Segments: exp.Segments, Gatherer: gatherer}
	if exp.State.Session() != nil {
		sources.TimeGraph = exp.TimeGraph()
	}
	if _, _, ok := exp.Usage.TimeRange(); ok {
		sources.CgroupCPU = exp.CgroupCPU()
	}
	return sources
}
