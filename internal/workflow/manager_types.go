package workflow

import (
	"context"
	"log/slog"

	"reel/internal/taskqueue"
)

// Handler runs one task. The returned value is passed to the task's linked
// callback, if any.
type Handler interface {
	Handle(ctx context.Context, task *taskqueue.Task) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task *taskqueue.Task) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, task *taskqueue.Task) (any, error) {
	return f(ctx, task)
}

type laneState struct {
	queue  string
	index  int
	logger *slog.Logger
}

func (l *laneState) name() string {
	return l.queue
}
