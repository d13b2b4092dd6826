package workflow

import (
	"context"
	"log/slog"
	"time"

	"reel/internal/logging"
)

// HeartbeatMonitor periodically logs worker activity.
type HeartbeatMonitor struct {
	manager  *Manager
	logger   *slog.Logger
	interval time.Duration
}

// NewHeartbeatMonitor creates a monitor. A non-positive interval disables it.
func NewHeartbeatMonitor(m *Manager, logger *slog.Logger, interval time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		manager:  m,
		logger:   logger.With(logging.String("component", "workflow-heartbeat")),
		interval: interval,
	}
}

// Run logs a heartbeat every interval until ctx is cancelled.
func (h *HeartbeatMonitor) Run(ctx context.Context) {
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *HeartbeatMonitor) beat(ctx context.Context) {
	status := h.manager.Status(ctx)
	attrs := []logging.Attr{
		logging.Int64("in_flight", status.InFlight),
		logging.Int64("succeeded", status.Succeeded),
		logging.Int64("retried", status.Retried),
		logging.Int64("dead_lettered", status.DeadLettered),
	}
	for queue, depth := range status.QueueDepth {
		attrs = append(attrs, logging.Int64("depth_"+queue, depth))
	}
	h.logger.Debug("worker heartbeat", logging.Args(attrs...)...)
}
