package taskqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reel/internal/services"
)

// Link names the task enqueued with a handler's result.
type Link struct {
	Name  string `json:"name"`
	Queue string `json:"queue"`
}

// Task is one unit of work on a named queue.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Queue      string          `json:"queue"`
	RoutingKey string          `json:"routing_key,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Link       *Link           `json:"link,omitempty"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// NewTask encodes payload and assigns a fresh id.
func NewTask(name, queue string, payload any, link *Link) (*Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "taskqueue", "encode payload",
			fmt.Sprintf("task %s", name), err)
	}
	return &Task{
		ID:         uuid.NewString(),
		Name:       name,
		Queue:      queue,
		Payload:    raw,
		Link:       link,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v. Malformed payloads are validation
// errors and are never retried.
func (t *Task) Decode(v any) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return services.Wrap(services.ErrValidation, "taskqueue", "decode payload",
			fmt.Sprintf("task %s (%s)", t.Name, t.ID), err)
	}
	return nil
}

// Follow builds the linked callback task carrying result. It returns nil
// when the task has no link.
func (t *Task) Follow(result any) (*Task, error) {
	if t.Link == nil {
		return nil, nil
	}
	return NewTask(t.Link.Name, t.Link.Queue, result, nil)
}

// retryCopy returns the next attempt of t.
func (t *Task) retryCopy(cause error) *Task {
	next := *t
	next.Attempt++
	next.EnqueuedAt = time.Now().UTC()
	if cause != nil {
		next.LastError = cause.Error()
	}
	return &next
}

// Delivery is a received task awaiting acknowledgement.
type Delivery struct {
	Task *Task
	ref  string
}

// Ref returns the backend reference of the delivery.
func (d *Delivery) Ref() string {
	return d.ref
}
