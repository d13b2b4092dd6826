package workflow

import (
	"context"
	"errors"

	"reel/internal/logging"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running      bool
	LastError    string
	LastTask     string
	InFlight     int64
	Succeeded    int64
	Retried      int64
	DeadLettered int64
	QueueDepth   map[string]int64
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:  m.running,
		LastTask: m.lastTask,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	queues := append([]string(nil), m.queues...)
	m.mu.RUnlock()

	summary.InFlight = m.inflight.Load()
	summary.Succeeded = m.succeeded.Load()
	summary.Retried = m.retried.Load()
	summary.DeadLettered = m.dead.Load()
	summary.QueueDepth = make(map[string]int64, len(queues))
	for _, q := range queues {
		depth, err := m.queue.Len(ctx, q)
		if err != nil {
			m.logger.Warn("failed to read queue depth", logging.String("queue", q), logging.Error(err))
			continue
		}
		summary.QueueDepth[q] = depth
	}
	return summary
}

// Ready reports an error unless the manager is running.
func (m *Manager) Ready(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.running {
		return errors.New("workflow not running")
	}
	return nil
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastTask(name string) {
	m.mu.Lock()
	m.lastTask = name
	m.mu.Unlock()
}
