package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"reel/internal/logging"
	"reel/internal/media"
	"reel/internal/metrics"
	"reel/internal/services"
	"reel/internal/storage"
)

// Transferrer moves media inputs from local to remote storage.
type Transferrer struct {
	queued *storage.Queued
	logger *slog.Logger
}

// NewTransferrer wraps a queued storage pair.
func NewTransferrer(queued *storage.Queued, logger *slog.Logger) *Transferrer {
	return &Transferrer{queued: queued, logger: logging.NewComponentLogger(logger, "transfer")}
}

// Transfer copies the input of m to remote storage and waits for the result.
// An input already present remotely is not copied again.
func (t *Transferrer) Transfer(ctx context.Context, m *media.Media) (storage.TransferResult, error) {
	logger := logging.WithContext(ctx, t.logger)

	exists, err := t.queued.Remote.Exists(ctx, m.InputName)
	if err != nil {
		logger.Warn("remote existence check failed; transferring anyway",
			logging.String("input", m.InputName),
			logging.Error(err),
		)
	}
	if exists {
		logger.Debug("input already transferred", logging.String("input", m.InputName))
		return storage.TransferResult{Success: true, Detail: m.InputName}, nil
	}

	result := storage.Wait(ctx, t.queued.Transfer(ctx, m.InputName))
	if !result.Success {
		metrics.Transfers.WithLabelValues(metrics.OutcomeError).Inc()
		logging.ErrorWithContext(logger, "error transferring file", "transfer_failed",
			logging.String("input", m.InputName),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "check remote storage reachability and credentials"),
		)
		return result, services.Wrap(services.ErrTransient, "pipeline", "transfer",
			fmt.Sprintf("input %s", m.InputName), result.Err)
	}
	metrics.Transfers.WithLabelValues(metrics.OutcomeOK).Inc()
	logger.Info("transferred input",
		logging.String("input", m.InputName),
		logging.Bool("success", result.Success),
	)
	return result, nil
}
