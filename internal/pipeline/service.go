package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/media"
	"reel/internal/metrics"
	"reel/internal/services"
	"reel/internal/storage"
	"reel/internal/store"
	"reel/internal/taskqueue"
)

// Service persists media and dispatches their encode tasks.
type Service struct {
	store    *store.Store
	roles    *storage.Roles
	queue    taskqueue.Queue
	transfer *Transferrer
	layout   media.Layout
	encode   config.Encode
	logger   *slog.Logger
}

// NewService wires the dispatcher. Roles, store and queue are shared with the
// task handlers.
func NewService(cfg *config.Config, st *store.Store, roles *storage.Roles, queue taskqueue.Queue, logger *slog.Logger) *Service {
	logger = logging.NewComponentLogger(logger, "pipeline")
	return &Service{
		store:    st,
		roles:    roles,
		queue:    queue,
		transfer: NewTransferrer(storage.NewQueued(roles.Local, roles.Remote, logger), logger),
		layout:   LayoutFor(cfg),
		encode:   cfg.Encode,
		logger:   logger,
	}
}

// LayoutFor returns the media layout for cfg.
func LayoutFor(cfg *config.Config) media.Layout {
	return media.Layout{Root: cfg.Paths.MediaRoot, PathName: cfg.Encode.MediaPathName}
}

// Layout exposes the layout used for inputs and artifacts.
func (s *Service) Layout() media.Layout {
	return s.layout
}

// Save applies the pre-save transition and persists m. When m still needs
// encoding and has an input, the input is transferred to remote storage
// while no outputs exist, and one encode task is enqueued per profile id.
//
// Profile ids are resolved in order. An unknown id stops resolution with
// ProfileNotFound after the ids before it have been dispatched.
func (s *Service) Save(ctx context.Context, m *media.Media, profileIDs []int64) error {
	m.PrepareSave()
	if m.Persisted() {
		if err := s.store.UpdateMedia(ctx, m); err != nil {
			return err
		}
	} else if err := s.store.CreateMedia(ctx, m); err != nil {
		return err
	}

	ctx = services.WithMediaID(ctx, m.ID)
	logger := logging.WithContext(ctx, s.logger)

	if !m.Encodable() || m.InputName == "" {
		return nil
	}

	count, err := s.store.OutputCount(ctx, m.ID)
	if err != nil {
		return err
	}
	if count == 0 {
		if _, err := s.transfer.Transfer(ctx, m); err != nil {
			return err
		}
	}

	profiles, resolveErr := s.resolve(ctx, profileIDs)
	for _, profile := range profiles {
		if err := s.store.AttachProfile(ctx, m.ID, profile.ID); err != nil {
			return err
		}
		m.AddProfile(profile.ID)
	}
	for _, profile := range profiles {
		if err := s.dispatch(ctx, m, profile); err != nil {
			return err
		}
	}
	if resolveErr != nil {
		logging.ErrorWithContext(logger, "cannot encode: profile does not exist", "profile_not_found",
			logging.Error(resolveErr),
			logging.String(logging.FieldErrorHint, "run `reel profiles` to list valid profile ids"),
		)
		return resolveErr
	}
	return nil
}

// resolve loads profiles in order and stops at the first unknown id.
func (s *Service) resolve(ctx context.Context, ids []int64) ([]media.Profile, error) {
	profiles := make([]media.Profile, 0, len(ids))
	for _, id := range ids {
		profile, err := s.store.Profile(ctx, id)
		if err != nil {
			return profiles, err
		}
		if profile == nil {
			return profiles, &media.ProfileNotFound{ID: id}
		}
		profiles = append(profiles, *profile)
	}
	return profiles, nil
}

func (s *Service) dispatch(ctx context.Context, m *media.Media, profile media.Profile) error {
	payload := taskqueue.EncodeTask{
		Profile:    profile,
		MediaID:    m.ID,
		InputPath:  s.layout.InputPath(m.InputName),
		OutputPath: s.layout.OutputPath(m, profile),
	}
	task, err := taskqueue.NewTask(taskqueue.TaskEncode, s.encode.Queue, payload,
		&taskqueue.Link{Name: taskqueue.TaskStore, Queue: s.encode.StoreQueue})
	if err != nil {
		return err
	}
	task.RoutingKey = s.encode.RoutingKey
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return err
	}
	metrics.Dispatched.Inc()
	logging.WithContext(ctx, s.logger).Info("encode task dispatched",
		logging.String(logging.FieldProfile, profile.Name),
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("queue", task.Queue),
		logging.String("routing_key", task.RoutingKey),
		logging.String("output", s.layout.ShortPath(payload.OutputPath)),
	)
	return nil
}

// SubmitRequest describes a new upload.
type SubmitRequest struct {
	Title       string
	Description string
	FileType    media.FileType
	Filename    string
	Source      io.Reader
	Profiles    []string
	// KeepInputFile overrides the configured retention policy when set.
	KeepInputFile *bool
	Owner         string
}

// Submit stores an upload in local storage, creates its media entity and
// dispatches the named profiles. Profile names are resolved before anything
// is written.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*media.Media, error) {
	ids := make([]int64, 0, len(req.Profiles))
	for _, name := range req.Profiles {
		profile, err := s.store.ProfileByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			err := &media.ProfileNotFound{Name: name}
			logging.ErrorWithContext(s.logger, "cannot submit: profile does not exist", "profile_not_found",
				logging.Error(err))
			return nil, err
		}
		ids = append(ids, profile.ID)
	}
	if req.Source == nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "submit", "no input data", nil)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(path.Base(req.Filename), path.Ext(req.Filename))
	}
	keep := s.encode.KeepInputFile
	if req.KeepInputFile != nil {
		keep = *req.KeepInputFile
	}

	name, err := s.availableName(ctx, s.layout.InputName(req.FileType, req.Filename))
	if err != nil {
		return nil, err
	}
	locator, err := s.roles.Local.Save(ctx, name, req.Source)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "submit",
			fmt.Sprintf("store input %s", name), err)
	}

	m := &media.Media{
		Title:         title,
		Description:   req.Description,
		FileType:      req.FileType,
		InputName:     locator,
		KeepInputFile: keep,
		Owner:         req.Owner,
	}
	if err := s.Save(ctx, m, ids); err != nil {
		return m, err
	}
	return m, nil
}

// availableName returns name, or name with a random suffix when local storage
// already holds an object under it.
func (s *Service) availableName(ctx context.Context, name string) (string, error) {
	dir, base := path.Split(name)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	candidate := name
	for attempt := 0; attempt < 5; attempt++ {
		exists, err := s.roles.Local.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		suffix, err := media.RandomFilename("tmp", 7)
		if err != nil {
			return "", err
		}
		candidate = dir + stem + "_" + strings.TrimSuffix(suffix, ".tmp") + ext
	}
	return "", services.Wrap(services.ErrTransient, "pipeline", "submit",
		fmt.Sprintf("no free input name near %s", name), nil)
}
