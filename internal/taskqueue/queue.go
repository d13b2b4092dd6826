package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reel/internal/config"
	"reel/internal/services"
)

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("task queue closed")

// Queue is an at-least-once task queue. Receive returns (nil, nil) when no
// task arrived within the backend's poll window.
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	Receive(ctx context.Context, queue string) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Retry(ctx context.Context, d *Delivery, cause error) error
	DeadLetter(ctx context.Context, d *Delivery, cause error) error
	Len(ctx context.Context, queue string) (int64, error)
	Close() error
}

// Open builds the configured queue backend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Queue, error) {
	block := time.Duration(cfg.Queue.BlockSeconds) * time.Second
	switch cfg.Queue.Backend {
	case config.QueueMemory, "":
		return NewMemory(block), nil
	case config.QueueRedis:
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
			Prefix:   cfg.Queue.StreamPrefix,
			Group:    cfg.Queue.Group,
			Consumer: cfg.Queue.Consumer,
			Block:    block,
		}, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "taskqueue", "open",
			fmt.Sprintf("unsupported queue backend %q", cfg.Queue.Backend), nil)
	}
}
