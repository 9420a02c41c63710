package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/driftwatchhq/driftwatch/internal/api"
	"github.com/driftwatchhq/driftwatch/internal/api/health"
	"github.com/driftwatchhq/driftwatch/internal/figma"
	"github.com/driftwatchhq/driftwatch/internal/logger"
	"github.com/driftwatchhq/driftwatch/internal/metrics"
	"github.com/driftwatchhq/driftwatch/internal/notify"
	"github.com/driftwatchhq/driftwatch/internal/ratelimit"
	"github.com/driftwatchhq/driftwatch/internal/reconcile"
	"github.com/driftwatchhq/driftwatch/internal/storage"
	"github.com/driftwatchhq/driftwatch/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "driftwatch-server",
	Short: "Driftwatch - design drift detection server",
	Long: `Driftwatch watches Figma components against their code
counterparts, detects property drift on a schedule, and raises alerts
when the two diverge.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("driftwatch-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	cfg.Verbose = verbose
	if verbose {
		cfg.Log.Level = "debug"
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// Get the trigger secret from environment
	cronSecret := os.Getenv("DRIFTWATCH_CRON_SECRET")
	if cronSecret == "" {
		return fmt.Errorf("DRIFTWATCH_CRON_SECRET environment variable is required")
	}

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info("database initialized", "path", cfg.Database.Path)

	// Rate limit budgets, optionally from file
	budgetTable := ratelimit.DefaultBudgets()
	if cfg.RateLimit.BudgetsFile != "" {
		budgetTable, err = ratelimit.LoadBudgetsFile(cfg.RateLimit.BudgetsFile)
		if err != nil {
			return fmt.Errorf("load budgets: %w", err)
		}
	}
	budgets := ratelimit.NewBudgets(budgetTable)

	// Rate limiter: shared Redis counters when configured, otherwise
	// in-process counters
	var (
		limiter ratelimit.Limiter
		rdb     *redis.Client
	)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, budgets, log)
		log.Info("rate limiter using redis", "address", cfg.Redis.Address)
	} else {
		limiter = ratelimit.NewMemoryLimiter(budgets)
		log.Warn("rate limiter using in-process counters, budgets are per-instance")
	}

	// Figma source adapter behind the limiter
	source := figma.NewAdapter(figma.NewClient(cfg.Figma.BaseURL), limiter)

	// Alert dispatcher
	dispatcher := notify.NewDispatcher(
		notify.NewSlackNotifier(),
		store.Alerts(),
		notify.ThrottleConfig{PerMinute: cfg.Notify.PerMinute, Burst: cfg.Notify.Burst},
		log,
	)

	reconciler := reconcile.New(
		store.Watches(),
		store.Alerts(),
		store.Integrations(),
		source,
		dispatcher,
		cfg.Dashboard.BaseURL,
		log,
	)

	interval, err := cfg.SchedulerInterval()
	if err != nil {
		return fmt.Errorf("scheduler interval: %w", err)
	}
	runTimeout, err := cfg.SchedulerRunTimeout()
	if err != nil {
		return fmt.Errorf("scheduler run timeout: %w", err)
	}
	scheduler := reconcile.NewScheduler(reconciler, store.Watches(), reconcile.SchedulerConfig{
		Concurrency: cfg.Scheduler.Concurrency,
		RunTimeout:  runTimeout,
		Interval:    interval,
	}, log)

	// API server
	apiServer, err := api.New(&api.Config{
		Address:    cfg.Server.Address,
		CronSecret: cronSecret,
	}, store, reconciler, scheduler, log)
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}
	apiServer.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	if rdb != nil {
		apiServer.RegisterHealthChecker(health.NewRedisChecker(rdb))
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	log.Info("starting driftwatch-server", "version", config.Version)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := apiServer.Run(ctx); err != nil {
			return fmt.Errorf("run api server: %w", err)
		}
		return nil
	})

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Address, log)
		g.Go(func() error {
			if err := metricsServer.Start(); err != nil {
				return fmt.Errorf("run metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if interval > 0 {
		g.Go(func() error {
			scheduler.Start(ctx)
			return nil
		})
	}

	if cfg.RateLimit.BudgetsFile != "" {
		g.Go(func() error {
			err := ratelimit.WatchBudgetsFile(ctx, cfg.RateLimit.BudgetsFile, budgets, log)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watch budgets: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}
