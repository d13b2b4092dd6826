// Package metrics defines the Prometheus collectors for the transcoding
// pipeline and the small HTTP server that exposes them.
//
// Collectors are registered on the default registry through promauto:
//
//	reel_tasks_total{task,outcome}        task executions by outcome (ok, retry, dead_letter)
//	reel_task_duration_seconds{task}      handler wall time
//	reel_tasks_in_flight                  deliveries currently being handled
//	reel_dispatched_total                 encode tasks enqueued by the dispatcher
//	reel_encode_failures_total{encoder,kind}
//	reel_transfers_total{outcome}         local to remote input transfers
//	reel_uploads_total{outcome}           CDN uploads of encoded outputs
//	reel_media_completed_total            media that reached the encoded state
//
// Server mounts promhttp on /metrics next to /healthz (process liveness) and
// /readyz (store and queue reachability).
package metrics
