package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"reel/internal/config"
	"reel/internal/fileutil"
	"reel/internal/logging"
	"reel/internal/media"
	"reel/internal/metrics"
	"reel/internal/notifications"
	"reel/internal/services"
	"reel/internal/storage"
	"reel/internal/store"
	"reel/internal/taskqueue"
)

// StoreHandler runs store_media tasks: it uploads an encoded artifact,
// records it on the media entity and cleans up.
type StoreHandler struct {
	store    *store.Store
	roles    *storage.Roles
	layout   media.Layout
	notifier notifications.Service
	logger   *slog.Logger
}

// NewStoreHandler builds the store task handler.
func NewStoreHandler(cfg *config.Config, st *store.Store, roles *storage.Roles, logger *slog.Logger) *StoreHandler {
	return &StoreHandler{
		store:    st,
		roles:    roles,
		layout:   LayoutFor(cfg),
		notifier: notifications.NewService(cfg),
		logger:   logging.NewComponentLogger(logger, "store"),
	}
}

// SetNotifier replaces the completion notifier built from the config.
func (h *StoreHandler) SetNotifier(svc notifications.Service) {
	if svc != nil {
		h.notifier = svc
	}
}

// Handle decodes the encode result and stores the output.
func (h *StoreHandler) Handle(ctx context.Context, task *taskqueue.Task) (any, error) {
	var result taskqueue.EncodeResult
	if err := task.Decode(&result); err != nil {
		return nil, err
	}
	m, err := h.StoreOutput(ctx, result)
	if err != nil {
		return nil, err
	}
	return m.Status(), nil
}

// StoreOutput uploads the artifact for result.Profile, appends it to the media
// outputs and runs cleanup. A redelivered result whose profile already has an
// output is not uploaded again.
func (h *StoreHandler) StoreOutput(ctx context.Context, result taskqueue.EncodeResult) (*media.Media, error) {
	ctx = services.WithMediaID(ctx, result.MediaID)
	logger := logging.WithContext(ctx, h.logger).With(
		logging.String(logging.FieldProfile, result.Profile.Name),
	)

	m, err := h.store.GetMedia(ctx, result.MediaID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		err := &media.MediaNotFound{ID: result.MediaID}
		logging.ErrorWithContext(logger, "cannot store output: media does not exist", "media_not_found",
			logging.Error(err))
		return nil, err
	}

	if hasOutput(m, result.Profile.ID) {
		logger.Info("output already stored; skipping upload")
		return m, h.Cleanup(ctx, m, result.Profile)
	}

	artifact := h.layout.OutputPath(m, result.Profile)
	file, err := h.upload(ctx, m, result.Profile, artifact)
	if err != nil {
		metrics.Uploads.WithLabelValues(metrics.OutcomeError).Inc()
		logging.ErrorWithContext(logger, "upload failed", "upload_failed",
			logging.String("artifact", h.layout.ShortPath(artifact)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check CDN storage configuration"),
		)
		return nil, err
	}
	metrics.Uploads.WithLabelValues(metrics.OutcomeOK).Inc()

	stored, err := h.store.AddOutput(ctx, m.ID, file)
	if errors.Is(err, store.ErrOutputExists) {
		// A concurrent delivery recorded this profile first; drop our copy.
		logger.Info("output recorded concurrently; discarding upload", logging.String("file", file.Name))
		if err := h.roles.CDN.Delete(ctx, file.Name); err != nil {
			logger.Warn("discard duplicate upload failed", logging.String("file", file.Name), logging.Error(err))
		}
		if m, err = h.store.GetMedia(ctx, m.ID); err != nil {
			return nil, err
		}
		if m == nil {
			return nil, &media.MediaNotFound{ID: result.MediaID}
		}
		return m, h.Cleanup(ctx, m, result.Profile)
	}
	if err != nil {
		return nil, err
	}
	m = stored
	logger.Info("output stored",
		logging.String("file", file.Name),
		logging.String("url", file.URL),
		logging.Int("outputs", len(m.Outputs)),
		logging.Int("profiles", len(m.ProfileIDs)),
	)
	if m.Ready() {
		metrics.MediaCompleted.Inc()
		logger.Info("media complete", logging.String("status", m.Status()))
		if err := h.notifier.NotifyMediaCompleted(ctx, m.Title, len(m.Outputs)); err != nil {
			logger.Warn("completion notification failed", logging.Error(err))
		}
	}

	return m, h.Cleanup(ctx, m, result.Profile)
}

func (h *StoreHandler) upload(ctx context.Context, m *media.Media, profile media.Profile, artifact string) (*media.File, error) {
	exists, err := fileutil.Exists(artifact)
	if err != nil {
		return nil, &UploadFailure{Path: artifact, Err: err}
	}
	if !exists {
		return nil, &UploadFailure{Path: artifact, Err: fmt.Errorf("encoded artifact missing: %w", os.ErrNotExist)}
	}
	random, err := media.RandomFilename(profile.Container, 0)
	if err != nil {
		return nil, err
	}
	src, err := os.Open(artifact)
	if err != nil {
		return nil, &UploadFailure{Path: artifact, Err: err}
	}
	defer src.Close()

	locator, err := h.roles.CDN.Save(ctx, h.layout.FileName(random), src)
	if err != nil {
		return nil, &UploadFailure{Path: artifact, Err: err}
	}
	return &media.File{
		Title:     fmt.Sprintf("%s (%s)", m.Title, profile.Name),
		Name:      locator,
		URL:       h.roles.CDN.URL(locator),
		ProfileID: profile.ID,
	}, nil
}

// Cleanup removes the local artifact for profile. Once the media is ready and
// does not keep its input, the input is deleted from remote and local storage.
// All steps run; their errors are joined.
func (h *StoreHandler) Cleanup(ctx context.Context, m *media.Media, profile media.Profile) error {
	logger := logging.WithContext(ctx, h.logger)
	var errs []error

	if m.Ready() && !m.KeepInputFile && m.InputName != "" {
		if err := h.roles.Remote.Delete(ctx, m.InputName); err != nil {
			errs = append(errs, fmt.Errorf("delete remote input: %w", err))
		}
		if err := h.roles.Local.Delete(ctx, m.InputName); err != nil {
			errs = append(errs, fmt.Errorf("delete local input: %w", err))
		}
		logger.Info("input removed", logging.String("input", m.InputName))
	}

	artifact := h.layout.OutputPath(m, profile)
	removed, err := fileutil.RemoveIfExists(artifact)
	if err != nil {
		errs = append(errs, fmt.Errorf("remove artifact: %w", err))
	} else if removed {
		logger.Debug("artifact removed", logging.String("artifact", h.layout.ShortPath(artifact)))
	}

	if err := errors.Join(errs...); err != nil {
		logging.WarnWithContext(logger, "cleanup incomplete", "cleanup_failed", logging.Error(err))
		return services.Wrap(services.ErrTransient, "pipeline", "cleanup", fmt.Sprintf("media %d", m.ID), err)
	}
	return nil
}

func hasOutput(m *media.Media, profileID int64) bool {
	for _, out := range m.Outputs {
		if out.ProfileID == profileID {
			return true
		}
	}
	return false
}
