// Package services defines shared utilities consumed by the pipeline task
// handlers and the encoder adapters.
//
// Key responsibilities:
//   - Context helpers that stamp media IDs, task IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Retryable/Kind which
//     decide whether a failed task is redelivered or dead-lettered.
//
// Use these helpers when wiring new handlers so error handling and
// observability stay uniform across the pipeline.
package services
