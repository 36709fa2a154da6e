// atsync migrates recruiting data between ATS platforms: it snapshots the
// source, normalizes the snapshot into an export graph, and idempotently
// upserts the graph into the destination.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recruitops/atsync/internal/pipeline"
	"github.com/recruitops/atsync/pkg/config"
	"github.com/recruitops/atsync/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var (
		configFile string
		dryRun     bool
		workers    int
		logLevel   string
		timeout    time.Duration
	)

	root := &cobra.Command{
		Use:   "atsync",
		Short: "atsync - ATS migration sync pipeline",
		Long: `atsync moves recruiting data from one ATS to another in three stages:
fetch raw snapshots from the source API, normalize them into an export
graph keyed by external IDs, and upsert the graph into the destination.
Re-running any stage is safe; upserts are idempotent by external ID.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("atsync v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	stage := func(use, short string, run func(*pipeline.Pipeline, context.Context) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := setup(configFile, dryRun, workers, logLevel)
				if err != nil {
					return err
				}
				ctx, cancel := runContext(timeout)
				defer cancel()

				p := pipeline.New(cfg)
				logger.Info("starting stage",
					zap.String("stage", use),
					zap.String("run_id", p.RunID()))
				return run(p, ctx)
			},
		}
	}

	root.AddCommand(
		stage("fetch", "Snapshot every source collection to disk",
			func(p *pipeline.Pipeline, ctx context.Context) error { return p.Fetch(ctx) }),
		stage("normalize", "Build the export graph from the snapshot files",
			func(p *pipeline.Pipeline, ctx context.Context) error { return p.Normalize(ctx) }),
		stage("sync", "Upsert the export graph into the destination",
			func(p *pipeline.Pipeline, ctx context.Context) error { return p.Sync(ctx) }),
		stage("migrate", "Run fetch, normalize and sync end to end",
			func(p *pipeline.Pipeline, ctx context.Context) error { return p.Migrate(ctx) }),
	)

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the run configuration YAML file")
	root.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Resolve and report without writing to the destination")
	root.PersistentFlags().IntVar(&workers, "workers", 0, "Override engine worker count (0 = use config)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Overall run timeout (0 = none)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration, applies flag overrides and initializes the
// global logger and metrics endpoint.
func setup(configFile string, dryRun bool, workers int, logLevel string) (*config.RunConfig, error) {
	var cfg *config.RunConfig
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.NewRunConfig()
		cfg.Source.BaseURL = os.Getenv("ATSYNC_SOURCE_URL")
		cfg.Source.APIKey = os.Getenv("ATSYNC_SOURCE_API_KEY")
		cfg.Destination.BaseURL = os.Getenv("ATSYNC_DEST_URL")
		cfg.Destination.Token = os.Getenv("ATSYNC_DEST_TOKEN")
	}

	if dryRun {
		cfg.Engine.DryRun = true
	}
	if workers > 0 {
		cfg.Engine.Workers = workers
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Development: cfg.Observability.Development,
	}); err != nil {
		return nil, err
	}

	if cfg.Observability.EnableMetrics && cfg.Observability.MetricsAddr != "" {
		go serveMetrics(cfg.Observability.MetricsAddr)
	}
	return cfg, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics endpoint stopped", zap.Error(err))
	}
}

// runContext builds the run's root context: SIGINT/SIGTERM cancel it, and
// an optional overall timeout bounds it. Cancellation mid-sync still
// flushes the partial run report.
func runContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout > 0 {
		tctx, tcancel := context.WithTimeout(ctx, timeout)
		return tctx, func() { tcancel(); cancel() }
	}
	return ctx, cancel
}
