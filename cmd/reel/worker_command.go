package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/metrics"
	"reel/internal/preflight"
	"reel/internal/workflow"
)

func secondsDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var serveMetrics bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run encode and store workers until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workflow.Workers = workers
			}
			if cmd.Flags().Changed("metrics") {
				cfg.Metrics.Enabled = serveMetrics
			}

			runCtx := cmd.Context()

			logger, err := logging.New(logging.Options{
				Level:    cfg.Logging.Level,
				Format:   cfg.Logging.Format,
				FilePath: filepath.Join(cfg.Paths.LogDir, "reel-"+cfg.Queue.Consumer+".log"),
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			lock, err := workflow.AcquireLock(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
				for _, result := range failed {
					logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
						logging.String("check", result.Name),
						logging.String("detail", result.Detail),
					)
				}
				return fmt.Errorf("%d preflight checks failed; run `reel doctor` for details", len(failed))
			}
			for _, status := range preflight.CheckSystemDeps(cfg) {
				if !status.Available {
					logging.WarnWithContext(logger, "encoder binary unavailable", "dependency_missing",
						logging.String("name", status.Name),
						logging.String("detail", status.Detail),
						logging.Bool("optional", status.Optional),
					)
				}
			}

			rt, err := ctx.openRuntime(runCtx, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			mgr, err := rt.newManager()
			if err != nil {
				return err
			}

			if cfg.Metrics.Enabled {
				server := metrics.NewServer(cfg.Metrics.Bind, func(ctx context.Context) error {
					if err := mgr.Ready(ctx); err != nil {
						return err
					}
					return rt.store.Ping(ctx)
				}, logger)
				go func() {
					if err := server.Run(runCtx); err != nil {
						logger.Error("metrics server stopped", logging.Error(err))
					}
				}()
			}

			if cfg.Queue.Backend == config.QueueMemory {
				logger.Warn("memory queue only sees tasks enqueued by this process; use the redis backend to share work")
			}
			logger.Info("worker starting",
				logging.String("consumer", cfg.Queue.Consumer),
				logging.String("queue_backend", cfg.Queue.Backend),
				logging.String("lock", lock.Path()),
			)
			return mgr.Run(runCtx)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Worker goroutines per queue (overrides config)")
	cmd.Flags().BoolVar(&serveMetrics, "metrics", false, "Serve /metrics, /healthz and /readyz")
	return cmd
}
