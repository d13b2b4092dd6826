package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reel/internal/config"
	"reel/internal/encoder"
	"reel/internal/logging"
	"reel/internal/notifications"
	"reel/internal/pipeline"
	"reel/internal/storage"
	"reel/internal/store"
	"reel/internal/taskqueue"
	"reel/internal/workflow"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// cliLogger logs to stderr so command output on stdout stays parseable.
func (c *commandContext) cliLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

func (c *commandContext) openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.SyncCatalog(ctx, cfg.Encoders, cfg.Profiles); err != nil {
		st.Close()
		return nil, fmt.Errorf("sync catalog: %w", err)
	}
	return st, nil
}

func (c *commandContext) withStore(ctx context.Context, fn func(*store.Store) error) error {
	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

// runtime bundles the components shared by submit, ingest and worker.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	roles    *storage.Roles
	queue    taskqueue.Queue
	registry *encoder.Registry
	service  *pipeline.Service
}

func (c *commandContext) openRuntime(ctx context.Context, logger *slog.Logger) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		if logger, err = c.cliLogger(cfg); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := storage.Open(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	queue, err := taskqueue.Open(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open task queue: %w", err)
	}
	var opts []encoder.Option
	if cfg.Encode.TimeoutSeconds > 0 {
		opts = append(opts, encoder.WithTimeout(secondsDuration(cfg.Encode.TimeoutSeconds)))
	}
	registry, err := encoder.NewRegistry(cfg.Encoders, logger, opts...)
	if err != nil {
		queue.Close()
		st.Close()
		return nil, err
	}
	return &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		roles:    roles,
		queue:    queue,
		registry: registry,
		service:  pipeline.NewService(cfg, st, roles, queue, logger),
	}, nil
}

// newManager wires the encode and store handlers into a workflow manager.
func (r *runtime) newManager() (*workflow.Manager, error) {
	mgr := workflow.NewManager(r.cfg, r.queue, r.logger)
	mgr.SetNotifier(notifications.NewService(r.cfg))
	if err := mgr.Register(taskqueue.TaskEncode, r.cfg.Encode.Queue, pipeline.NewEncodeHandler(r.registry, r.logger)); err != nil {
		return nil, err
	}
	if err := mgr.Register(taskqueue.TaskStore, r.cfg.Encode.StoreQueue, pipeline.NewStoreHandler(r.cfg, r.store, r.roles, r.logger)); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (r *runtime) Close() {
	if r == nil {
		return
	}
	_ = r.queue.Close()
	_ = r.store.Close()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
