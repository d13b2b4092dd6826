// Package taskqueue is the at-least-once task queue the workflow runtime
// consumes.
//
// A Task carries a JSON payload and an optional Link naming the callback
// task that receives the handler's result. Deliveries must be acknowledged,
// retried or dead-lettered by the consumer. Memory keeps everything in
// process and backs tests and single-host runs; Redis uses Streams with a
// consumer group so several workers share one queue and unacknowledged
// messages are reclaimed after a restart.
package taskqueue
