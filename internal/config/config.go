package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	MediaRoot string `toml:"media_root"`
	TempDir   string `toml:"temp_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Encode contains settings for the transcoding lifecycle.
type Encode struct {
	// MediaPathName is the directory below MediaRoot holding uploads and
	// encoded artifacts.
	MediaPathName  string `toml:"media_path_name"`
	KeepInputFile  bool   `toml:"keep_input_file"`
	Queue          string `toml:"queue"`
	RoutingKey     string `toml:"routing_key"`
	StoreQueue     string `toml:"store_queue"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Encoder describes an external transcoding tool.
type Encoder struct {
	Name             string `toml:"name"`
	Path             string `toml:"path"`
	Kind             string `toml:"kind"`
	Flags            string `toml:"flags"`
	Description      string `toml:"description"`
	DocumentationURL string `toml:"documentation_url"`
}

// Profile describes a named transcoding target.
type Profile struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Container   string `toml:"container"`
	MIMEType    string `toml:"mime_type"`
	VideoCodec  string `toml:"video_codec"`
	AudioCodec  string `toml:"audio_codec"`
	Encoder     string `toml:"encoder"`
	Command     string `toml:"command"`
}

// Backend configures one storage role.
type Backend struct {
	Backend   string `toml:"backend"`
	Dir       string `toml:"dir"`
	BaseURL   string `toml:"base_url"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	Profile   string `toml:"profile"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Storage groups the three storage roles.
type Storage struct {
	Local  Backend `toml:"local"`
	Remote Backend `toml:"remote"`
	CDN    Backend `toml:"cdn"`
}

// Queue configures the task queue backend.
type Queue struct {
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	StreamPrefix  string `toml:"stream_prefix"`
	Group         string `toml:"group"`
	Consumer      string `toml:"consumer"`
	BlockSeconds  int    `toml:"block_seconds"`
	MaxAttempts   int    `toml:"max_attempts"`
}

// Workflow contains worker runtime settings.
type Workflow struct {
	Workers           int `toml:"workers"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics configures the prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Notifications configures ntfy delivery. An empty topic disables it.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for reel.
//
// Configuration sections by subsystem:
//   - Paths: media root, temp staging, state (sqlite, locks), logs
//   - Encode: upload layout and task routing
//   - Encoders/Profiles: the transcoding catalog
//   - Storage: local, remote-encode and CDN storage roles
//   - Queue: in-memory or Redis Streams task queue
//   - Workflow: worker lanes and heartbeat
//   - Logging, Metrics: ambient observability
//   - Notifications: optional ntfy alerts
type Config struct {
	Paths    Paths     `toml:"paths"`
	Encode   Encode    `toml:"encode"`
	Encoders []Encoder `toml:"encoders"`
	Profiles []Profile `toml:"profiles"`
	Storage  Storage   `toml:"storage"`
	Queue    Queue     `toml:"queue"`
	Workflow Workflow  `toml:"workflow"`
	Logging  Logging   `toml:"logging"`
	Metrics  Metrics   `toml:"metrics"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Catalog tables in the file replace the defaults wholesale.
		cfg.Encoders = nil
		cfg.Profiles = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if len(cfg.Encoders) == 0 && len(cfg.Profiles) == 0 {
			def := Default()
			cfg.Encoders = def.Encoders
			cfg.Profiles = def.Profiles
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for worker and CLI operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.MediaRoot, c.Paths.TempDir, c.Paths.StateDir, c.Paths.LogDir}
	for _, backend := range []Backend{c.Storage.Local, c.Storage.Remote, c.Storage.CDN} {
		if backend.Backend == BackendFilesystem && backend.Dir != "" {
			dirs = append(dirs, backend.Dir)
		}
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "reel.db")
}

// LockPath returns the worker lock file for the configured consumer.
func (c *Config) LockPath() string {
	name := strings.TrimSpace(c.Queue.Consumer)
	if name == "" {
		name = "worker"
	}
	return filepath.Join(c.Paths.StateDir, "reel-"+name+".lock")
}

// EncoderByName returns the named encoder definition.
func (c *Config) EncoderByName(name string) (Encoder, bool) {
	for _, enc := range c.Encoders {
		if enc.Name == name {
			return enc, true
		}
	}
	return Encoder{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
