package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"reel/internal/encoder"
	"reel/internal/logging"
	"reel/internal/metrics"
	"reel/internal/services"
	"reel/internal/taskqueue"
)

// EncodeHandler runs encode_media tasks.
type EncodeHandler struct {
	registry *encoder.Registry
	logger   *slog.Logger
}

// NewEncodeHandler builds a handler that starts encoders from registry.
func NewEncodeHandler(registry *encoder.Registry, logger *slog.Logger) *EncodeHandler {
	return &EncodeHandler{registry: registry, logger: logging.NewComponentLogger(logger, "encode")}
}

// Handle decodes the task, runs the profile's encoder and returns the
// EncodeResult that becomes the payload of the linked store task.
func (h *EncodeHandler) Handle(ctx context.Context, task *taskqueue.Task) (any, error) {
	var payload taskqueue.EncodeTask
	if err := task.Decode(&payload); err != nil {
		return nil, err
	}
	ctx = services.WithMediaID(ctx, payload.MediaID)
	logger := logging.WithContext(ctx, h.logger).With(
		logging.String(logging.FieldProfile, payload.Profile.Name),
	)
	logger.Info("encoding started",
		logging.String("encoder", payload.Profile.Encoder.Name),
		logging.String("input", payload.InputPath),
		logging.String("output", payload.OutputPath),
	)

	if err := h.registry.Start(ctx, payload.Profile, payload.InputPath, payload.OutputPath); err != nil {
		metrics.EncodeFailures.WithLabelValues(payload.Profile.Encoder.Name, services.Kind(err)).Inc()
		attrs := []logging.Attr{
			logging.String("encoder", payload.Profile.Encoder.Name),
			logging.Error(err),
		}
		var failure *encoder.EncodeFailure
		if errors.As(err, &failure) {
			attrs = append(attrs,
				logging.String("command", failure.Command),
				logging.String("output", failure.Output),
			)
		}
		logging.ErrorWithContext(logger, "encoding failed", "encode_failed", attrs...)
		return nil, err
	}

	logger.Info("encoding finished", logging.String("output", payload.OutputPath))
	return taskqueue.EncodeResult{MediaID: payload.MediaID, Profile: payload.Profile}, nil
}
