package encoder

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	draptolib "github.com/five82/drapto"

	"reel/internal/logging"
)

// reporter turns drapto events into log records and keeps warnings and
// errors for failure output.
type reporter struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	mu    sync.Mutex
	notes []string
}

func newReporter(logger *slog.Logger) *reporter {
	return &reporter{logger: logger, sampler: logging.NewProgressSampler(10, 0)}
}

// Output returns the collected warnings and errors, one per line.
func (r *reporter) Output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.notes, "\n")
}

func (r *reporter) note(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, fmt.Sprintf(format, args...))
}

func (r *reporter) Hardware(s draptolib.HardwareSummary) {
	r.logger.Debug("drapto hardware", logging.Any("hostname", s.Hostname))
}

func (r *reporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Info("drapto analysis",
		logging.Any("input", s.InputFile),
		logging.Any("duration", s.Duration),
		logging.Any("resolution", s.Resolution),
		logging.Any("dynamic_range", s.DynamicRange),
		logging.Any("audio", s.AudioDescription),
	)
}

func (r *reporter) StageProgress(s draptolib.StageProgress) {
	if !r.sampler.ShouldLog(float64(s.Percent), s.Stage) {
		return
	}
	attrs := []logging.Attr{logging.String(logging.FieldStage, s.Stage), logging.Float64("percent", float64(s.Percent))}
	if s.Message != "" {
		attrs = append(attrs, logging.String("detail", s.Message))
	}
	if s.ETA != nil {
		attrs = append(attrs, logging.Duration("eta", *s.ETA))
	}
	r.logger.Info("drapto progress", logging.Args(attrs...)...)
}

func (r *reporter) CropResult(s draptolib.CropSummary) {
	r.logger.Debug("drapto crop detection",
		logging.Any("crop", s.Crop),
		logging.Any("required", s.Required),
		logging.Any("disabled", s.Disabled),
		logging.Int("candidates", len(s.Candidates)),
	)
}

func (r *reporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Debug("drapto encoding config",
		logging.Any("encoder", s.Encoder),
		logging.Any("preset", s.Preset),
		logging.Any("quality", s.Quality),
		logging.Any("pixel_format", s.PixelFormat),
		logging.Any("audio_codec", s.AudioCodec),
		logging.Int("preset_settings", len(s.DraptoPresetSettings)),
	)
}

func (r *reporter) EncodingStarted(totalFrames uint64) {
	r.sampler.Reset()
	r.logger.Info("drapto encoding started", logging.Any("total_frames", totalFrames))
}

func (r *reporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	if !r.sampler.ShouldLog(float64(s.Percent), "encoding") {
		return
	}
	r.logger.Info("drapto progress",
		logging.String(logging.FieldStage, "encoding"),
		logging.Float64("percent", float64(s.Percent)),
		logging.Float64("speed", float64(s.Speed)),
		logging.Float64("fps", float64(s.FPS)),
		logging.Any("eta", s.ETA),
	)
}

func (r *reporter) ValidationComplete(s draptolib.ValidationSummary) {
	for _, step := range s.Steps {
		if !step.Passed {
			r.note("validation %s failed: %v", step.Name, step.Details)
		}
	}
	r.logger.Info("drapto validation", logging.Bool("passed", s.Passed), logging.Int("steps", len(s.Steps)))
}

func (r *reporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.logger.Info("drapto encoding complete",
		logging.Any("output", s.OutputFile),
		logging.Any("original_size", s.OriginalSize),
		logging.Any("encoded_size", s.EncodedSize),
		logging.Any("elapsed", s.TotalTime),
	)
}

func (r *reporter) Warning(message string) {
	r.note("warning: %s", message)
	r.logger.Warn("drapto warning", logging.String("detail", message))
}

func (r *reporter) Error(e draptolib.ReporterError) {
	r.note("%v: %v", e.Title, e.Message)
	r.logger.Error("drapto error",
		logging.Any("title", e.Title),
		logging.Any("detail", e.Message),
		logging.Any("context", e.Context),
		logging.Any("suggestion", e.Suggestion),
	)
}

func (r *reporter) OperationComplete(message string) {
	r.logger.Debug("drapto operation complete", logging.String("detail", message))
}

func (r *reporter) BatchStarted(s draptolib.BatchStartInfo) {
	r.logger.Debug("drapto batch started", logging.Any("files", s.TotalFiles))
}

func (r *reporter) FileProgress(s draptolib.FileProgressContext) {
	r.logger.Debug("drapto file progress", logging.Any("current", s.CurrentFile), logging.Any("total", s.TotalFiles))
}

func (r *reporter) BatchComplete(s draptolib.BatchSummary) {
	r.logger.Debug("drapto batch complete", logging.Any("successful", s.SuccessfulCount), logging.Any("total", s.TotalFiles))
}

var _ draptolib.Reporter = (*reporter)(nil)
