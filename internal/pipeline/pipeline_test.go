package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"reel/internal/config"
	"reel/internal/encoder"
	"reel/internal/logging"
	"reel/internal/media"
	"reel/internal/pipeline"
	"reel/internal/services"
	"reel/internal/storage"
	"reel/internal/store"
	"reel/internal/taskqueue"
	"reel/internal/testsupport"
)

type harness struct {
	cfg      *config.Config
	store    *store.Store
	roles    *storage.Roles
	queue    *taskqueue.Memory
	service  *pipeline.Service
	encode   *pipeline.EncodeHandler
	storeOut *pipeline.StoreHandler

	mu      sync.Mutex
	encodes []string
}

func newHarness(t *testing.T, adapter encoder.Adapter, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	roles, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	queue := taskqueue.NewMemory(10 * time.Millisecond)
	t.Cleanup(func() { _ = queue.Close() })

	h := &harness{cfg: cfg, store: st, roles: roles, queue: queue}
	if adapter == nil {
		adapter = encoder.AdapterFunc(h.fakeEncode)
	}
	registry, err := encoder.NewRegistry(cfg.Encoders, logging.NewNop(),
		encoder.WithAdapter(config.KindFFmpeg, adapter),
		encoder.WithAdapter(config.KindBasic, adapter),
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	h.service = pipeline.NewService(cfg, st, roles, queue, logging.NewNop())
	h.encode = pipeline.NewEncodeHandler(registry, logging.NewNop())
	h.storeOut = pipeline.NewStoreHandler(cfg, st, roles, logging.NewNop())
	return h
}

func (h *harness) fakeEncode(_ context.Context, profile media.Profile, input, output string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	h.mu.Lock()
	h.encodes = append(h.encodes, profile.Name)
	h.mu.Unlock()
	return os.WriteFile(output, append([]byte(profile.Name+":"), data...), 0o644)
}

func (h *harness) profileID(t *testing.T, name string) int64 {
	t.Helper()
	profile, err := h.store.ProfileByName(context.Background(), name)
	if err != nil || profile == nil {
		t.Fatalf("ProfileByName(%q) = %v, %v", name, profile, err)
	}
	return profile.ID
}

func (h *harness) submit(t *testing.T, profiles ...string) *media.Media {
	t.Helper()
	m, err := h.service.Submit(context.Background(), pipeline.SubmitRequest{
		Title:    "Holiday clip",
		FileType: media.Video,
		Filename: "holiday clip.mov",
		Source:   strings.NewReader("raw video"),
		Profiles: profiles,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return m
}

// receive pulls one task from queue and fails the test when none is waiting.
func (h *harness) receive(t *testing.T, queue string) *taskqueue.Delivery {
	t.Helper()
	d, err := h.queue.Receive(context.Background(), queue)
	if err != nil {
		t.Fatalf("Receive(%s): %v", queue, err)
	}
	if d == nil {
		t.Fatalf("Receive(%s): no task", queue)
	}
	return d
}

// runEncode handles one encode task and enqueues its linked store task.
func (h *harness) runEncode(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	d := h.receive(t, h.cfg.Encode.Queue)
	result, err := h.encode.Handle(ctx, d.Task)
	if err != nil {
		t.Fatalf("encode Handle: %v", err)
	}
	next, err := d.Task.Follow(result)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if next == nil {
		t.Fatal("expected a linked store task")
	}
	if err := h.queue.Enqueue(ctx, next); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := h.queue.Ack(ctx, d); err != nil {
		t.Fatalf("Ack: %v", err)
	}
}

func (h *harness) runStore(t *testing.T) *taskqueue.Task {
	t.Helper()
	d := h.receive(t, h.cfg.Encode.StoreQueue)
	if _, err := h.storeOut.Handle(context.Background(), d.Task); err != nil {
		t.Fatalf("store Handle: %v", err)
	}
	if err := h.queue.Ack(context.Background(), d); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	return d.Task
}

func (h *harness) reload(t *testing.T, id int64) *media.Media {
	t.Helper()
	m, err := h.store.GetMedia(context.Background(), id)
	if err != nil || m == nil {
		t.Fatalf("GetMedia(%d) = %v, %v", id, m, err)
	}
	return m
}

func (h *harness) queueLen(t *testing.T, queue string) int64 {
	t.Helper()
	n, err := h.queue.Len(context.Background(), queue)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	return n
}

func TestSubmitStoresInputAndDispatchesEachProfile(t *testing.T) {
	h := newHarness(t, nil)
	m := h.submit(t, "MP4", "WebM Audio")

	if m.ID == 0 || !m.Encoding || m.Encoded || m.Uploaded {
		t.Fatalf("unexpected media after submit: %+v", m)
	}
	if m.InputName != "encode/video/holiday_clip.mov" {
		t.Fatalf("input name = %q", m.InputName)
	}
	if m.Title != "Holiday clip" {
		t.Fatalf("title = %q", m.Title)
	}
	layout := h.service.Layout()
	if got, err := os.ReadFile(layout.InputPath(m.InputName)); err != nil || string(got) != "raw video" {
		t.Fatalf("local input = %q, %v", got, err)
	}
	if ok, err := h.roles.Remote.Exists(context.Background(), m.InputName); err != nil || !ok {
		t.Fatalf("remote input exists = %v, %v", ok, err)
	}
	if n := h.queueLen(t, h.cfg.Encode.Queue); n != 2 {
		t.Fatalf("dispatched %d tasks, want 2", n)
	}

	d := h.receive(t, h.cfg.Encode.Queue)
	if d.Task.Name != taskqueue.TaskEncode || d.Task.RoutingKey != h.cfg.Encode.RoutingKey {
		t.Fatalf("unexpected task header: %+v", d.Task)
	}
	if d.Task.Link == nil || d.Task.Link.Name != taskqueue.TaskStore || d.Task.Link.Queue != h.cfg.Encode.StoreQueue {
		t.Fatalf("unexpected link: %+v", d.Task.Link)
	}
	var payload taskqueue.EncodeTask
	if err := d.Task.Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.Profile.Name != "MP4" || payload.MediaID != m.ID {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.InputPath != layout.InputPath(m.InputName) {
		t.Fatalf("input path = %q", payload.InputPath)
	}
	want := filepath.Join(h.cfg.Paths.MediaRoot, "encode", "video", "1.mp4")
	if payload.OutputPath != want {
		t.Fatalf("output path = %q, want %q", payload.OutputPath, want)
	}
}

func TestSubmitRenamesCollidingInput(t *testing.T) {
	h := newHarness(t, nil)
	first := h.submit(t, "MP4")
	second := h.submit(t, "MP4")
	if first.InputName == second.InputName {
		t.Fatalf("second upload reused input name %q", second.InputName)
	}
	if !strings.HasPrefix(second.InputName, "encode/video/holiday_clip_") || !strings.HasSuffix(second.InputName, ".mov") {
		t.Fatalf("unexpected renamed input %q", second.InputName)
	}
}

func TestFanOutCompletesAfterLastOutput(t *testing.T) {
	h := newHarness(t, nil)
	m := h.submit(t, "MP4", "WebM Audio")
	layout := h.service.Layout()
	inputPath := layout.InputPath(m.InputName)

	h.runEncode(t)
	h.runEncode(t)

	h.runStore(t)
	partial := h.reload(t, m.ID)
	if partial.Ready() || partial.Encoded || !partial.Encoding {
		t.Fatalf("media completed early: %+v", partial)
	}
	if len(partial.Outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(partial.Outputs))
	}
	if _, err := os.Stat(inputPath); err != nil {
		t.Fatalf("input removed before completion: %v", err)
	}

	h.runStore(t)
	done := h.reload(t, m.ID)
	if !done.Ready() || !done.Encoded || !done.Uploaded || done.Encoding {
		t.Fatalf("media not complete: %+v", done)
	}
	if done.Status() != "complete" {
		t.Fatalf("status = %q", done.Status())
	}
	for _, out := range done.Outputs {
		if !strings.HasPrefix(out.URL, "https://cdn.test/media/encode/files/") {
			t.Fatalf("unexpected output url %q", out.URL)
		}
	}
	if _, err := os.Stat(inputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("local input still present: %v", err)
	}
	if ok, _ := h.roles.Remote.Exists(context.Background(), m.InputName); ok {
		t.Fatal("remote input still present")
	}
	for _, name := range []string{"1.mp4", "1.webm"} {
		if _, err := os.Stat(filepath.Join(h.cfg.Paths.MediaRoot, "encode", "video", name)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("artifact %s not cleaned up: %v", name, err)
		}
	}
}

func TestKeepInputFileRetainsInputs(t *testing.T) {
	h := newHarness(t, nil, testsupport.WithKeepInputFile(true))
	m := h.submit(t, "MP4")
	h.runEncode(t)
	h.runStore(t)

	done := h.reload(t, m.ID)
	if !done.Encoded || !done.KeepInputFile {
		t.Fatalf("unexpected media: %+v", done)
	}
	if _, err := os.Stat(h.service.Layout().InputPath(m.InputName)); err != nil {
		t.Fatalf("local input removed: %v", err)
	}
	if ok, _ := h.roles.Remote.Exists(context.Background(), m.InputName); !ok {
		t.Fatal("remote input removed")
	}
	artifact := filepath.Join(h.cfg.Paths.MediaRoot, "encode", "video", "1.mp4")
	if _, err := os.Stat(artifact); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact kept: %v", err)
	}
}

func TestSubmitUnknownProfileWritesNothing(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.service.Submit(context.Background(), pipeline.SubmitRequest{
		FileType: media.Audio,
		Filename: "song.wav",
		Source:   strings.NewReader("pcm"),
		Profiles: []string{"MP3 Audio", "Opus"},
	})
	var notFound *media.ProfileNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ProfileNotFound, got %v", err)
	}
	if err.Error() != "Profile 'Opus' does not exist" {
		t.Fatalf("message = %q", err.Error())
	}
	if ok, _ := h.roles.Local.Exists(context.Background(), "encode/audio/song.wav"); ok {
		t.Fatal("input stored for rejected submission")
	}
	if n := h.queueLen(t, h.cfg.Encode.Queue); n != 0 {
		t.Fatalf("dispatched %d tasks", n)
	}
}

func TestSaveStopsAtUnknownProfileID(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	name, err := h.roles.Local.Save(ctx, "encode/audio/song.wav", strings.NewReader("pcm"))
	if err != nil {
		t.Fatalf("Save input: %v", err)
	}
	m := &media.Media{Title: "Song", FileType: media.Audio, InputName: name}
	mp3 := h.profileID(t, "MP3 Audio")

	err = h.service.Save(ctx, m, []int64{mp3, 9999, h.profileID(t, "Ogg Audio")})
	var notFound *media.ProfileNotFound
	if !errors.As(err, &notFound) || notFound.ID != 9999 {
		t.Fatalf("expected ProfileNotFound for 9999, got %v", err)
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
	if n := h.queueLen(t, h.cfg.Encode.Queue); n != 1 {
		t.Fatalf("dispatched %d tasks, want 1", n)
	}
	stored := h.reload(t, m.ID)
	if len(stored.ProfileIDs) != 1 || stored.ProfileIDs[0] != mp3 {
		t.Fatalf("profiles = %v", stored.ProfileIDs)
	}
}

func TestSaveTransfersInputOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	m := h.submit(t, "MP4")

	remote := h.roles.Remote.(*storage.Filesystem)
	remotePath, err := remote.Path(m.InputName)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if err := os.WriteFile(remotePath, []byte("sentinel"), 0o644); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}

	if err := h.service.Save(ctx, m, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, _ := os.ReadFile(remotePath); string(got) != "sentinel" {
		t.Fatalf("remote input rewritten: %q", got)
	}
}

func TestSaveSkipsTransferOnceOutputsExist(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	m := h.submit(t, "MP4", "WebM Audio")

	if _, err := h.store.AddOutput(ctx, m.ID, &media.File{
		Title: m.Title, Name: "encode/files/done.mp4", ProfileID: h.profileID(t, "MP4"),
	}); err != nil {
		t.Fatalf("AddOutput: %v", err)
	}
	if err := h.roles.Remote.Delete(ctx, m.InputName); err != nil {
		t.Fatalf("delete remote input: %v", err)
	}

	if err := h.service.Save(ctx, h.reload(t, m.ID), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	remotePath, err := h.roles.Remote.(*storage.Filesystem).Path(m.InputName)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if _, err := os.Stat(remotePath); !os.IsNotExist(err) {
		t.Fatalf("expected remote input to stay absent, stat err=%v", err)
	}
}

func TestSaveCompletedMediaDispatchesNothing(t *testing.T) {
	h := newHarness(t, nil, testsupport.WithKeepInputFile(true))
	m := h.submit(t, "MP4")
	h.runEncode(t)
	h.runStore(t)

	done := h.reload(t, m.ID)
	done.Description = "edited"
	if err := h.service.Save(context.Background(), done, []int64{h.profileID(t, "WebM Audio")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n := h.queueLen(t, h.cfg.Encode.Queue); n != 0 {
		t.Fatalf("dispatched %d tasks for completed media", n)
	}
	if got := h.reload(t, m.ID); got.Description != "edited" || !got.Encoded {
		t.Fatalf("unexpected media after edit: %+v", got)
	}
}

func TestStoreMissingArtifactIsRetryable(t *testing.T) {
	h := newHarness(t, nil)
	m := h.submit(t, "MP4")
	profile, _ := h.store.Profile(context.Background(), h.profileID(t, "MP4"))

	_, err := h.storeOut.StoreOutput(context.Background(), taskqueue.EncodeResult{MediaID: m.ID, Profile: *profile})
	var failure *pipeline.UploadFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected UploadFailure, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatalf("upload failure should be retryable: %v", err)
	}
	if got := h.reload(t, m.ID); len(got.Outputs) != 0 {
		t.Fatalf("outputs recorded for missing artifact: %d", len(got.Outputs))
	}
}

func TestStoreUnknownMedia(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.storeOut.StoreOutput(context.Background(), taskqueue.EncodeResult{MediaID: 42})
	var notFound *media.MediaNotFound
	if !errors.As(err, &notFound) || notFound.ID != 42 {
		t.Fatalf("expected MediaNotFound, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("missing media should not be retried")
	}
}

func TestStoreRedeliveryDoesNotDuplicateOutputs(t *testing.T) {
	h := newHarness(t, nil, testsupport.WithKeepInputFile(true))
	m := h.submit(t, "MP4", "WebM Audio")
	h.runEncode(t)
	task := h.runStore(t)

	if _, err := h.storeOut.Handle(context.Background(), task); err != nil {
		t.Fatalf("redelivered store: %v", err)
	}
	if got := h.reload(t, m.ID); len(got.Outputs) != 1 || got.Encoded {
		t.Fatalf("unexpected media after redelivery: %+v", got)
	}
}

func TestEncodeFailureIsFinal(t *testing.T) {
	failing := encoder.AdapterFunc(func(context.Context, media.Profile, string, string) error {
		return &encoder.EncodeFailure{Command: "ffmpeg -i in out", Output: "Unknown encoder", Cause: errors.New("exit status 1")}
	})
	h := newHarness(t, failing)
	h.submit(t, "MP4")

	d := h.receive(t, h.cfg.Encode.Queue)
	_, err := h.encode.Handle(context.Background(), d.Task)
	var failure *encoder.EncodeFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected EncodeFailure, got %v", err)
	}
	if failure.Command != "ffmpeg -i in out" || failure.Output != "Unknown encoder" {
		t.Fatalf("failure lost detail: %+v", failure)
	}
	if services.Retryable(err) {
		t.Fatal("encode failure should not be retried")
	}
}

func TestCleanupRemovesArtifactWhenNotReady(t *testing.T) {
	h := newHarness(t, nil)
	m := h.submit(t, "MP4", "PNG")
	profile, _ := h.store.Profile(context.Background(), h.profileID(t, "MP4"))
	artifact := h.service.Layout().OutputPath(m, *profile)
	testsupport.WriteFile(t, artifact, "encoded")

	if err := h.storeOut.Cleanup(context.Background(), m, *profile); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(artifact); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact still present: %v", err)
	}
	if _, err := os.Stat(h.service.Layout().InputPath(m.InputName)); err != nil {
		t.Fatalf("input removed before ready: %v", err)
	}
}

type completionNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *completionNotifier) NotifyMediaCompleted(_ context.Context, title string, outputs int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, title+"/"+strconv.Itoa(outputs))
	return nil
}

func (n *completionNotifier) NotifyTaskFailed(context.Context, string, string, error) error {
	return nil
}

func (n *completionNotifier) TestNotification(context.Context) error { return nil }

func TestCompletionNotifiesOnce(t *testing.T) {
	h := newHarness(t, nil)
	notifier := &completionNotifier{}
	h.storeOut.SetNotifier(notifier)

	h.submit(t, "MP4", "WebM Audio")
	h.runEncode(t)
	h.runEncode(t)
	first := h.runStore(t)
	if len(notifier.calls) != 0 {
		t.Fatalf("notified before completion: %v", notifier.calls)
	}
	h.runStore(t)

	// A redelivered store task finds its output already recorded.
	if _, err := h.storeOut.Handle(context.Background(), first); err != nil {
		t.Fatalf("redelivered Handle: %v", err)
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != "Holiday clip/2" {
		t.Fatalf("notifications = %v", notifier.calls)
	}
}
