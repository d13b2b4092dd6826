package encoder

import (
	"context"
	"log/slog"

	"reel/internal/command"
	"reel/internal/logging"
	"reel/internal/media"
)

// Basic runs the composed command as a plain subprocess.
type Basic struct {
	logger *slog.Logger
}

// NewBasic constructs the subprocess adapter.
func NewBasic(logger *slog.Logger) *Basic {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Basic{logger: logger}
}

// Start implements Adapter.
func (b *Basic) Start(ctx context.Context, profile media.Profile, inputPath, outputPath string) error {
	cmd, err := command.Build(profile.Encoder.Path, profile.Encoder.Flags, profile.Command, inputPath, outputPath)
	if err != nil {
		return err
	}
	if err := prepareOutput(outputPath); err != nil {
		return err
	}

	logger := logging.WithContext(ctx, b.logger)
	logger.Debug("running encoder", logging.String(logging.FieldProfile, profile.Name), logging.String("command", cmd.String()))

	proc := commandContext(ctx, cmd.Name(), cmd.Args()...) //nolint:gosec
	configureProcess(proc)
	output, err := proc.CombinedOutput()
	if err != nil {
		failure := newFailure(cmd, string(output), withContextErr(ctx, err))
		logging.ErrorWithContext(logger, "encoder failed", "encode_failed",
			logging.String(logging.FieldProfile, profile.Name),
			logging.String("command", failure.Command),
			logging.String("output", failure.Output),
			logging.Error(failure),
		)
		return failure
	}
	return nil
}

var _ Adapter = (*Basic)(nil)
