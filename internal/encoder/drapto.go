package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"reel/internal/command"
	"reel/internal/logging"
	"reel/internal/media"
	"reel/internal/services"
)

// draptoEncode runs the drapto library. Tests replace it.
var draptoEncode = func(ctx context.Context, inputPath, outputDir string, rep draptolib.Reporter) error {
	enc, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return err
	}
	_, err = enc.EncodeWithReporter(ctx, inputPath, outputDir, rep)
	return err
}

// Drapto encodes in-process with the drapto library. Drapto chooses codec
// settings itself and always produces Matroska named after the input stem, so
// the profile command is not consulted and the result is moved to outputPath.
type Drapto struct {
	logger *slog.Logger
}

// NewDrapto constructs the drapto adapter.
func NewDrapto(logger *slog.Logger) *Drapto {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Drapto{logger: logger}
}

// Start implements Adapter.
func (d *Drapto) Start(ctx context.Context, profile media.Profile, inputPath, outputPath string) error {
	if strings.TrimSpace(inputPath) == "" {
		return services.Wrap(services.ErrValidation, "encoder", "drapto", "input path required", nil)
	}
	if err := prepareOutput(outputPath); err != nil {
		return err
	}

	scratch, err := os.MkdirTemp(filepath.Dir(outputPath), ".drapto-")
	if err != nil {
		return services.Wrap(services.ErrTransient, "encoder", "drapto", "create scratch dir", err)
	}
	defer os.RemoveAll(scratch)

	cmd := command.Command{Argv: []string{"drapto", "encode", "--input", inputPath, "--output", scratch, "--responsive"}}
	logger := logging.WithContext(ctx, d.logger).With(logging.String(logging.FieldProfile, profile.Name))
	rep := newReporter(logger)

	if err := draptoEncode(ctx, inputPath, scratch, rep); err != nil {
		failure := newFailure(cmd, rep.Output(), withContextErr(ctx, err))
		failure.message = fmt.Sprintf("drapto: %v", err)
		logging.ErrorWithContext(logger, "drapto failed", "encode_failed",
			logging.String("command", failure.Command),
			logging.String("output", failure.Output),
			logging.Error(failure),
		)
		return failure
	}

	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	produced := filepath.Join(scratch, stem+".mkv")
	if err := os.Rename(produced, outputPath); err != nil {
		failure := newFailure(cmd, rep.Output(), err)
		failure.message = fmt.Sprintf("drapto: move %s: %v", produced, err)
		return failure
	}
	return nil
}

var _ Adapter = (*Drapto)(nil)
