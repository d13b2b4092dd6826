package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Storage roles are filesystem backends below the media root and the queue is
// in-memory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MediaRoot = filepath.Join(base, "media")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Local = config.Backend{Backend: config.BackendFilesystem, Dir: cfgVal.Paths.MediaRoot}
	cfgVal.Storage.Remote = config.Backend{Backend: config.BackendFilesystem, Dir: filepath.Join(cfgVal.Paths.MediaRoot, "remote")}
	cfgVal.Storage.CDN = config.Backend{
		Backend: config.BackendFilesystem,
		Dir:     filepath.Join(cfgVal.Paths.MediaRoot, "cdn"),
		BaseURL: "https://cdn.test/media",
	}
	cfgVal.Queue.Backend = config.QueueMemory
	cfgVal.Queue.Consumer = "test-worker"
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithKeepInputFile sets the default keep-input policy.
func WithKeepInputFile(keep bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encode.KeepInputFile = keep
	}
}

// WithCatalog replaces the encoder and profile catalog.
func WithCatalog(encoders []config.Encoder, profiles []config.Profile) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoders = encoders
		b.cfg.Profiles = profiles
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default encoder binaries are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "convert"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.MediaRoot)
}
