package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reel/internal/logging"
	"reel/internal/metrics"
	"reel/internal/services"
	"reel/internal/taskqueue"
)

const receiveErrorBackoff = 2 * time.Second

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.queues) == 0 {
		m.mu.Unlock()
		return errors.New("workflow handlers not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	lanes := make([]*laneState, 0, len(m.queues)*m.workers)
	for _, q := range m.queues {
		for i := 0; i < m.workers; i++ {
			lane := &laneState{queue: q, index: i}
			lane.logger = m.logger.With(
				logging.String(logging.FieldLane, q),
				logging.Int("worker", i),
			)
			lanes = append(lanes, lane)
		}
	}
	m.wg.Add(len(lanes) + 1)
	m.mu.Unlock()

	for _, lane := range lanes {
		go m.runLane(runCtx, lane)
	}
	go func() {
		defer m.wg.Done()
		m.heartbeat.Run(runCtx)
	}()

	m.logger.Info("workflow started",
		logging.Int("lanes", len(lanes)),
		logging.Int("max_attempts", m.maxAttempts),
	)
	return nil
}

// Stop terminates background processing and waits for in-flight tasks.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Run starts the manager and blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.Stop()
	return nil
}

func (m *Manager) runLane(ctx context.Context, lane *laneState) {
	defer m.wg.Done()
	logger := lane.logger
	for {
		if ctx.Err() != nil {
			return
		}
		delivery, err := m.queue.Receive(ctx, lane.name())
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, taskqueue.ErrClosed) {
				return
			}
			m.handleReceiveError(ctx, logger, err)
			continue
		}
		if delivery == nil {
			continue
		}
		m.process(ctx, logger, delivery)
	}
}

func (m *Manager) handleReceiveError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to receive task",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_receive_failed"),
		logging.String(logging.FieldErrorHint, "check task queue connectivity"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(receiveErrorBackoff):
	}
}

func (m *Manager) process(ctx context.Context, laneLogger *slog.Logger, d *taskqueue.Delivery) {
	task := d.Task
	taskCtx := services.WithTaskID(ctx, task.ID)
	taskCtx = services.WithStage(taskCtx, task.Name)
	logger := logging.WithContext(taskCtx, laneLogger).With(
		logging.String("task", task.Name),
		logging.Int("attempt", task.Attempt),
	)
	m.setLastTask(task.Name)

	handler, ok := m.handler(task.Name)
	if !ok {
		err := services.Wrap(services.ErrConfiguration, "workflow", "dispatch",
			"no handler registered for "+task.Name, nil)
		m.settleFailure(taskCtx, logger, d, err)
		return
	}

	m.inflight.Add(1)
	metrics.TasksInFlight.Inc()
	start := time.Now()
	result, err := handler.Handle(taskCtx, task)
	elapsed := time.Since(start)
	metrics.TasksInFlight.Dec()
	m.inflight.Add(-1)
	metrics.TaskDuration.WithLabelValues(task.Name).Observe(elapsed.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown interrupted the handler. Leave the delivery unacked so
			// the backend redelivers it.
			logger.Info("task interrupted by shutdown", logging.Duration("elapsed", elapsed))
			return
		}
		m.settleFailure(taskCtx, logger, d, err)
		return
	}

	if err := m.follow(taskCtx, task, result); err != nil {
		m.settleFailure(taskCtx, logger, d, err)
		return
	}
	if err := m.queue.Ack(taskCtx, d); err != nil {
		m.setLastError(err)
		logger.Warn("ack failed; task may be redelivered", logging.Error(err))
	}
	m.succeeded.Add(1)
	metrics.TasksTotal.WithLabelValues(task.Name, metrics.OutcomeOK).Inc()
	logger.Info("task completed",
		logging.String(logging.FieldEventType, "task_complete"),
		logging.Duration("elapsed", elapsed),
	)
}

// follow enqueues the linked callback with result as its payload.
func (m *Manager) follow(ctx context.Context, task *taskqueue.Task, result any) error {
	next, err := task.Follow(result)
	if err != nil || next == nil {
		return err
	}
	if err := m.queue.Enqueue(ctx, next); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "follow",
			"enqueue "+next.Name, err)
	}
	return nil
}
