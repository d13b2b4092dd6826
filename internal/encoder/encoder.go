package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/media"
	"reel/internal/services"
)

var commandContext = exec.CommandContext

// Adapter encodes one input for one profile. On success a file exists at
// outputPath. On failure no output is guaranteed and callers must not assume
// cleanup happened.
type Adapter interface {
	Start(ctx context.Context, profile media.Profile, inputPath, outputPath string) error
}

// AdapterFunc lets ordinary functions act as adapters.
type AdapterFunc func(ctx context.Context, profile media.Profile, inputPath, outputPath string) error

func (f AdapterFunc) Start(ctx context.Context, profile media.Profile, inputPath, outputPath string) error {
	return f(ctx, profile, inputPath, outputPath)
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout bounds every encode run. Zero leaves runs unbounded.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.timeout = d
	}
}

// WithAdapter registers or replaces the adapter for kind.
func WithAdapter(kind string, adapter Adapter) Option {
	return func(r *Registry) {
		if adapter != nil {
			r.adapters[kind] = adapter
		}
	}
}

// Registry resolves encoder kinds to adapters.
type Registry struct {
	adapters map[string]Adapter
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRegistry builds the adapter set and checks that every configured encoder
// names a known kind.
func NewRegistry(encoders []config.Encoder, logger *slog.Logger, opts ...Option) (*Registry, error) {
	logger = logging.NewComponentLogger(logger, "encoder")
	r := &Registry{
		adapters: map[string]Adapter{
			config.KindBasic:  NewBasic(logger),
			config.KindFFmpeg: NewFFmpeg(logger),
			config.KindDrapto: NewDrapto(logger),
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, enc := range encoders {
		if _, err := r.lookup(enc.Kind); err != nil {
			return nil, fmt.Errorf("encoder %q: %w", enc.Name, err)
		}
	}
	return r, nil
}

// Kinds lists the registered adapter kinds.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.adapters))
	for kind := range r.adapters {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// For returns the adapter that runs enc.
func (r *Registry) For(enc media.Encoder) (Adapter, error) {
	adapter, err := r.lookup(enc.Kind)
	if err != nil {
		return nil, fmt.Errorf("encoder %q: %w", enc.Name, err)
	}
	if r.timeout <= 0 {
		return adapter, nil
	}
	timeout := r.timeout
	return AdapterFunc(func(ctx context.Context, profile media.Profile, inputPath, outputPath string) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return adapter.Start(ctx, profile, inputPath, outputPath)
	}), nil
}

// Start runs profile through its encoder's adapter.
func (r *Registry) Start(ctx context.Context, profile media.Profile, inputPath, outputPath string) error {
	adapter, err := r.For(profile.Encoder)
	if err != nil {
		return err
	}
	return adapter.Start(ctx, profile, inputPath, outputPath)
}

func (r *Registry) lookup(kind string) (Adapter, error) {
	if kind == "" {
		kind = config.KindBasic
	}
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "encoder", "resolve", fmt.Sprintf("unknown encoder kind %q", kind), nil)
	}
	return adapter, nil
}

func prepareOutput(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "encoder", "prepare output", "", err)
	}
	return nil
}
