package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reel/internal/fileutil"
	"reel/internal/logging"
)

// TransferResult reports the outcome of a queued transfer. Detail holds the
// remote locator on success and the failure reason otherwise.
type TransferResult struct {
	Success bool
	Detail  string
	Err     error
}

// Queued moves objects from a local backend to a remote one in the
// background.
type Queued struct {
	Local  Backend
	Remote Backend
	logger *slog.Logger
}

// NewQueued returns a transfer queue between local and remote.
func NewQueued(local, remote Backend, logger *slog.Logger) *Queued {
	return &Queued{
		Local:  local,
		Remote: remote,
		logger: logging.NewComponentLogger(logger, "storage"),
	}
}

// Transfer copies locator from Local to Remote. The returned channel yields
// exactly one result and is then closed.
func (q *Queued) Transfer(ctx context.Context, locator string) <-chan TransferResult {
	out := make(chan TransferResult, 1)
	go func() {
		defer close(out)
		out <- q.transfer(ctx, locator)
	}()
	return out
}

// Wait blocks until the transfer result arrives or ctx is done.
func Wait(ctx context.Context, results <-chan TransferResult) TransferResult {
	select {
	case res, ok := <-results:
		if !ok {
			return TransferResult{Detail: "transfer channel closed", Err: fmt.Errorf("transfer channel closed")}
		}
		return res
	case <-ctx.Done():
		return TransferResult{Detail: ctx.Err().Error(), Err: ctx.Err()}
	}
}

func (q *Queued) transfer(ctx context.Context, locator string) TransferResult {
	start := time.Now()
	remote, err := q.copy(ctx, locator)
	if err != nil {
		q.logger.Warn("transfer failed",
			logging.String("locator", locator),
			logging.String("from", q.Local.String()),
			logging.String("to", q.Remote.String()),
			logging.Error(err),
		)
		return TransferResult{Detail: err.Error(), Err: err}
	}
	q.logger.Debug("transfer complete",
		logging.String("locator", locator),
		logging.String("to", q.Remote.String()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return TransferResult{Success: true, Detail: remote}
}

func (q *Queued) copy(ctx context.Context, locator string) (string, error) {
	srcFS, srcOK := q.Local.(*Filesystem)
	dstFS, dstOK := q.Remote.(*Filesystem)
	if srcOK && dstOK {
		src, err := srcFS.Path(locator)
		if err != nil {
			return "", err
		}
		dst, err := dstFS.Path(locator)
		if err != nil {
			return "", err
		}
		if ok, err := fileutil.Exists(src); err != nil {
			return "", err
		} else if !ok {
			return "", notFound(srcFS.String(), locator)
		}
		if err := fileutil.CopyFileVerified(src, dst); err != nil {
			return "", fmt.Errorf("copy %s: %w", locator, err)
		}
		return cleanName(locator)
	}

	in, err := q.Local.Open(ctx, locator)
	if err != nil {
		return "", err
	}
	defer in.Close()
	return q.Remote.Save(ctx, locator, in)
}
