package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"reel/internal/logging"
	"reel/internal/metrics"
	"reel/internal/services"
	"reel/internal/taskqueue"
)

// classifierError matches typed failures that name their own kind.
type classifierError interface {
	ErrorKind() string
}

func errorKind(err error) string {
	var classified classifierError
	if errors.As(err, &classified) {
		return classified.ErrorKind()
	}
	return services.Kind(err)
}

// settleFailure retries d when the failure is retryable and attempts
// remain, and dead-letters it otherwise.
func (m *Manager) settleFailure(ctx context.Context, logger *slog.Logger, d *taskqueue.Delivery, taskErr error) {
	m.setLastError(taskErr)
	task := d.Task
	attrs := []logging.Attr{
		logging.Error(taskErr),
		logging.String("error_kind", errorKind(taskErr)),
		logging.Int("max_attempts", m.maxAttempts),
	}

	if services.Retryable(taskErr) && task.Attempt < m.maxAttempts {
		if err := m.queue.Retry(ctx, d, taskErr); err != nil {
			logger.Error("failed to requeue task", logging.Error(err))
			return
		}
		m.retried.Add(1)
		metrics.TasksTotal.WithLabelValues(task.Name, metrics.OutcomeRetry).Inc()
		logging.WarnWithContext(logger, "task failed; retrying", "task_retry", attrs...)
		return
	}

	if err := m.queue.DeadLetter(ctx, d, taskErr); err != nil {
		logger.Error("failed to dead-letter task", logging.Error(err))
		return
	}
	m.dead.Add(1)
	metrics.TasksTotal.WithLabelValues(task.Name, metrics.OutcomeDeadLetter).Inc()
	logging.ErrorWithContext(logger, "task failed", "task_dead_letter", attrs...)

	m.mu.RLock()
	notifier := m.notifier
	m.mu.RUnlock()
	if err := notifier.NotifyTaskFailed(context.WithoutCancel(ctx), task.Name, taskSubject(task), taskErr); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

// taskSubject names the media a task was working on, when its payload says.
func taskSubject(task *taskqueue.Task) string {
	var ref struct {
		MediaID int64 `json:"media_id"`
	}
	if err := task.Decode(&ref); err != nil || ref.MediaID == 0 {
		return ""
	}
	return fmt.Sprintf("media %d", ref.MediaID)
}
