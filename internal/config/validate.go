package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Encoder kinds understood by the encoder registry.
const (
	KindBasic  = "basic"
	KindFFmpeg = "ffmpeg"
	KindDrapto = "drapto"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncode(); err != nil {
		return err
	}
	if err := c.validateEncoders(); err != nil {
		return err
	}
	if err := c.validateProfiles(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be non-negative")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.MediaRoot == "" {
		return errors.New("paths.media_root must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateEncode() error {
	for _, part := range strings.Split(c.Encode.MediaPathName, "/") {
		if part == ".." {
			return errors.New("encode.media_path_name must not escape the media root")
		}
	}
	if c.Encode.Queue == c.Encode.StoreQueue {
		return fmt.Errorf("encode.queue and encode.store_queue must differ (both %q)", c.Encode.Queue)
	}
	return nil
}

func (c *Config) validateEncoders() error {
	seen := make(map[string]struct{}, len(c.Encoders))
	for i, enc := range c.Encoders {
		if enc.Name == "" {
			return fmt.Errorf("encoders[%d].name must be set", i)
		}
		if _, dup := seen[enc.Name]; dup {
			return fmt.Errorf("encoders: duplicate name %q", enc.Name)
		}
		seen[enc.Name] = struct{}{}
		switch enc.Kind {
		case "", KindBasic, KindFFmpeg, KindDrapto:
		default:
			return fmt.Errorf("encoder %q: unsupported kind %q (valid: basic, ffmpeg, drapto)", enc.Name, enc.Kind)
		}
		if enc.Kind != KindDrapto && enc.Path == "" {
			return fmt.Errorf("encoder %q: path must be set", enc.Name)
		}
		if _, err := shellquote.Split(enc.Path); err != nil {
			return fmt.Errorf("encoder %q: path: %w", enc.Name, err)
		}
		if _, err := shellquote.Split(enc.Flags); err != nil {
			return fmt.Errorf("encoder %q: flags: %w", enc.Name, err)
		}
	}
	return nil
}

func (c *Config) validateProfiles() error {
	seen := make(map[string]struct{}, len(c.Profiles))
	for i, profile := range c.Profiles {
		if profile.Name == "" {
			return fmt.Errorf("profiles[%d].name must be set", i)
		}
		if _, dup := seen[profile.Name]; dup {
			return fmt.Errorf("profiles: duplicate name %q", profile.Name)
		}
		seen[profile.Name] = struct{}{}
		if profile.Container == "" {
			return fmt.Errorf("profile %q: container must be set", profile.Name)
		}
		if strings.ContainsAny(profile.Container, `/\`) {
			return fmt.Errorf("profile %q: container %q must be a bare extension", profile.Name, profile.Container)
		}
		if _, ok := c.EncoderByName(profile.Encoder); !ok {
			return fmt.Errorf("profile %q: unknown encoder %q", profile.Name, profile.Encoder)
		}
		if _, err := shellquote.Split(profile.Command); err != nil {
			return fmt.Errorf("profile %q: command: %w", profile.Name, err)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	roles := []struct {
		name    string
		backend Backend
	}{
		{"storage.local", c.Storage.Local},
		{"storage.remote", c.Storage.Remote},
		{"storage.cdn", c.Storage.CDN},
	}
	for _, role := range roles {
		b := role.backend
		switch b.Backend {
		case BackendFilesystem:
			if b.Dir == "" {
				return fmt.Errorf("%s.dir must be set for the filesystem backend", role.name)
			}
		case BackendS3:
			if strings.TrimSpace(b.Bucket) == "" {
				return fmt.Errorf("%s.bucket must be set for the s3 backend", role.name)
			}
		case BackendMinIO:
			if strings.TrimSpace(b.Bucket) == "" {
				return fmt.Errorf("%s.bucket must be set for the minio backend", role.name)
			}
			if strings.TrimSpace(b.Endpoint) == "" {
				return fmt.Errorf("%s.endpoint must be set for the minio backend", role.name)
			}
		default:
			return fmt.Errorf("%s.backend: unsupported value %q (valid: filesystem, s3, minio)", role.name, b.Backend)
		}
	}
	if c.Storage.Local.Backend != BackendFilesystem {
		return errors.New("storage.local must use the filesystem backend")
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case QueueMemory:
	case QueueRedis:
		if strings.TrimSpace(c.Queue.RedisAddr) == "" {
			return errors.New("queue.redis_addr must be set for the redis backend")
		}
		if c.Queue.RedisDB < 0 {
			return errors.New("queue.redis_db must be non-negative")
		}
	default:
		return fmt.Errorf("queue.backend: unsupported value %q (valid: memory, redis)", c.Queue.Backend)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (valid: console, json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Bind) == "" {
		return errors.New("metrics.bind must be set when metrics.enabled is true")
	}
	return nil
}
