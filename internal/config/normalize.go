package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncode()
	c.normalizeCatalog()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.MediaRoot, err = expandPath(c.Paths.MediaRoot); err != nil {
		return fmt.Errorf("paths.media_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = os.TempDir()
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncode() {
	c.Encode.MediaPathName = strings.Trim(strings.TrimSpace(c.Encode.MediaPathName), "/")
	if c.Encode.MediaPathName == "" {
		c.Encode.MediaPathName = defaultMediaPathName
	}
	if strings.TrimSpace(c.Encode.Queue) == "" {
		c.Encode.Queue = defaultEncodeQueue
	}
	if strings.TrimSpace(c.Encode.RoutingKey) == "" {
		c.Encode.RoutingKey = defaultRoutingKey
	}
	if strings.TrimSpace(c.Encode.StoreQueue) == "" {
		c.Encode.StoreQueue = defaultStoreQueue
	}
	if c.Encode.TimeoutSeconds < 0 {
		c.Encode.TimeoutSeconds = 0
	}
}

func (c *Config) normalizeCatalog() {
	for i := range c.Encoders {
		enc := &c.Encoders[i]
		enc.Name = strings.TrimSpace(enc.Name)
		enc.Path = strings.TrimSpace(enc.Path)
		enc.Kind = strings.ToLower(strings.TrimSpace(enc.Kind))
		if enc.Kind == "" {
			enc.Kind = KindBasic
		}
		enc.Flags = strings.TrimSpace(enc.Flags)
	}
	for i := range c.Profiles {
		profile := &c.Profiles[i]
		profile.Name = strings.TrimSpace(profile.Name)
		profile.Encoder = strings.TrimSpace(profile.Encoder)
		profile.Container = strings.TrimPrefix(strings.TrimSpace(profile.Container), ".")
	}
}

// normalizeStorage fills filesystem directories. The local role is rooted at
// the media root; remote and CDN default to subdirectories of it.
func (c *Config) normalizeStorage() error {
	roles := []struct {
		name     string
		backend  *Backend
		fallback string
	}{
		{"storage.local", &c.Storage.Local, c.Paths.MediaRoot},
		{"storage.remote", &c.Storage.Remote, filepath.Join(c.Paths.MediaRoot, defaultRemoteSubdir)},
		{"storage.cdn", &c.Storage.CDN, filepath.Join(c.Paths.MediaRoot, defaultCDNSubdir)},
	}
	for _, role := range roles {
		b := role.backend
		b.Backend = strings.ToLower(strings.TrimSpace(b.Backend))
		if b.Backend == "" {
			b.Backend = BackendFilesystem
		}
		b.Prefix = strings.Trim(strings.TrimSpace(b.Prefix), "/")
		b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
		if b.Backend == BackendMinIO {
			if b.AccessKey == "" {
				b.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
			}
			if b.SecretKey == "" {
				b.SecretKey = os.Getenv("MINIO_SECRET_KEY")
			}
		}
		if b.Backend != BackendFilesystem {
			continue
		}
		if strings.TrimSpace(b.Dir) == "" {
			b.Dir = role.fallback
		}
		var err error
		if b.Dir, err = expandPath(b.Dir); err != nil {
			return fmt.Errorf("%s.dir: %w", role.name, err)
		}
	}
	return nil
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = defaultQueueBackend
	}
	if strings.TrimSpace(c.Queue.StreamPrefix) == "" {
		c.Queue.StreamPrefix = defaultStreamPrefix
	}
	if strings.TrimSpace(c.Queue.Group) == "" {
		c.Queue.Group = defaultConsumerGroup
	}
	if strings.TrimSpace(c.Queue.Consumer) == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.Queue.Consumer = host
		} else {
			c.Queue.Consumer = "worker-1"
		}
	}
	if c.Queue.RedisPassword == "" {
		c.Queue.RedisPassword = os.Getenv("REEL_REDIS_PASSWORD")
	}
	if c.Queue.BlockSeconds <= 0 {
		c.Queue.BlockSeconds = defaultBlockSeconds
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = defaultMaxAttempts
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
