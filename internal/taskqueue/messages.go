package taskqueue

import "reel/internal/media"

// Task names understood by the workflow runtime.
const (
	TaskEncode = "encode_media"
	TaskStore  = "store_media"
)

// EncodeTask asks a worker to run one profile against a media input.
type EncodeTask struct {
	Profile    media.Profile `json:"profile"`
	MediaID    int64         `json:"media_id"`
	InputPath  string        `json:"input_path"`
	OutputPath string        `json:"output_path"`
}

// EncodeResult is returned by a successful encode and is the entire payload
// of the chained store task.
type EncodeResult struct {
	MediaID int64         `json:"media_id"`
	Profile media.Profile `json:"profile"`
}
