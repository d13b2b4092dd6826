// Package workflow runs queued tasks.
//
// The Manager starts one or more lanes per queue. Each lane receives a
// delivery, looks up the handler registered for the task name and runs it.
// A successful result becomes the payload of the task's linked callback,
// which is enqueued before the delivery is acknowledged. Failures are
// redelivered while services.Retryable reports true and attempts remain,
// and dead-lettered otherwise.
//
// A heartbeat logs in-flight and queue depth counts. Lock guards a worker
// against a second instance with the same consumer name.
package workflow
