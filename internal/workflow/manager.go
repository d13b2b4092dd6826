package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/notifications"
	"reel/internal/taskqueue"
)

// Manager dispatches deliveries from its queues to registered handlers.
type Manager struct {
	queue       taskqueue.Queue
	logger      *slog.Logger
	workers     int
	maxAttempts int

	heartbeat *HeartbeatMonitor
	notifier  notifications.Service

	handlers map[string]Handler
	queues   []string

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastTask string

	inflight  atomic.Int64
	succeeded atomic.Int64
	retried   atomic.Int64
	dead      atomic.Int64
}

// NewManager constructs a manager for cfg's worker settings.
func NewManager(cfg *config.Config, queue taskqueue.Queue, logger *slog.Logger) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow")
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	maxAttempts := cfg.Queue.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	m := &Manager{
		queue:       queue,
		logger:      logger,
		workers:     workers,
		maxAttempts: maxAttempts,
		handlers:    make(map[string]Handler),
		notifier:    notifications.NewService(nil),
	}
	m.heartbeat = NewHeartbeatMonitor(m, logger, time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second)
	return m
}

// SetNotifier replaces the service told about dead-lettered tasks.
func (m *Manager) SetNotifier(svc notifications.Service) {
	if svc == nil {
		return
	}
	m.mu.Lock()
	m.notifier = svc
	m.mu.Unlock()
}

// Register routes tasks named taskName to handler and makes the manager
// consume queueName. Registration must happen before Start.
func (m *Manager) Register(taskName, queueName string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("register %s: nil handler", taskName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("register %s: workflow already running", taskName)
	}
	if _, exists := m.handlers[taskName]; exists {
		return fmt.Errorf("register %s: handler already registered", taskName)
	}
	m.handlers[taskName] = handler
	for _, q := range m.queues {
		if q == queueName {
			return nil
		}
	}
	m.queues = append(m.queues, queueName)
	return nil
}

func (m *Manager) handler(name string) (Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[name]
	return h, ok
}
