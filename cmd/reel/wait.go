package main

import (
	"context"
	"fmt"
	"time"

	"reel/internal/media"
	"reel/internal/workflow"
)

const waitPollInterval = 200 * time.Millisecond

// processUntilComplete runs the encode and store handlers in this process
// until the media completes or the queues drain without completing it.
func processUntilComplete(ctx context.Context, rt *runtime, mediaID int64) (*media.Media, error) {
	mgr, err := rt.newManager()
	if err != nil {
		return nil, err
	}
	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	defer mgr.Stop()

	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	idlePolls := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		m, err := rt.store.GetMedia(ctx, mediaID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, &media.MediaNotFound{ID: mediaID}
		}
		if m.Encoded {
			return m, nil
		}
		if drained(ctx, mgr) {
			idlePolls++
		} else {
			idlePolls = 0
		}
		// Two idle polls in a row rule out a task caught between receive and
		// handling.
		if idlePolls >= 2 {
			status := mgr.Status(ctx)
			return m, fmt.Errorf("media %d stopped at %d of %d outputs (%d tasks dead-lettered, last error: %s)",
				m.ID, len(m.Outputs), len(m.ProfileIDs), status.DeadLettered, status.LastError)
		}
	}
}

func drained(ctx context.Context, mgr *workflow.Manager) bool {
	status := mgr.Status(ctx)
	if status.InFlight > 0 {
		return false
	}
	for _, depth := range status.QueueDepth {
		if depth > 0 {
			return false
		}
	}
	return true
}
