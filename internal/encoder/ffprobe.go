package encoder

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// probeResult is the subset of ffprobe JSON the ffmpeg adapter uses.
type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// Duration returns the container duration, falling back to the longest
// stream, or zero when neither is reported.
func (r probeResult) Duration() time.Duration {
	seconds := parseSeconds(r.Format.Duration)
	if seconds <= 0 {
		for _, stream := range r.Streams {
			if s := parseSeconds(stream.Duration); s > seconds {
				seconds = s
			}
		}
	}
	return time.Duration(seconds * float64(time.Second))
}

// probeBinary derives the ffprobe executable that ships next to ffmpegPath.
// It returns "" when the encoder is not called ffmpeg.
func probeBinary(ffmpegPath string) string {
	base := filepath.Base(ffmpegPath)
	if !strings.HasPrefix(base, "ffmpeg") {
		return ""
	}
	probe := "ffprobe" + strings.TrimPrefix(base, "ffmpeg")
	if dir := filepath.Dir(ffmpegPath); dir != "." || strings.ContainsRune(ffmpegPath, filepath.Separator) {
		return filepath.Join(dir, probe)
	}
	return probe
}

// probe runs ffprobe against path and decodes its JSON report.
func probe(ctx context.Context, binary, path string) (probeResult, error) {
	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return probeResult{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return probeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

func parseSeconds(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
