package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"reel/internal/config"
	"reel/internal/media"
	"reel/internal/services"
	"reel/internal/store"
	"reel/internal/testsupport"
)

func newStore(t *testing.T) (*store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenStore(t, cfg), cfg
}

func mustProfile(t *testing.T, st *store.Store, name string) *media.Profile {
	t.Helper()
	p, err := st.ProfileByName(context.Background(), name)
	if err != nil {
		t.Fatalf("ProfileByName(%q): %v", name, err)
	}
	if p == nil {
		t.Fatalf("profile %q not found", name)
	}
	return p
}

func TestSyncCatalogLoadsDefaults(t *testing.T) {
	st, cfg := newStore(t)
	ctx := context.Background()

	profiles, err := st.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(profiles) != len(cfg.Profiles) {
		t.Fatalf("expected %d profiles, got %d", len(cfg.Profiles), len(profiles))
	}
	png := mustProfile(t, st, "png")
	if png.Encoder.Name != "convert (ImageMagick)" || png.Encoder.Path != "convert" {
		t.Fatalf("unexpected PNG encoder: %+v", png.Encoder)
	}
	if png.Container != "png" || png.MIMEType != "image/png" {
		t.Fatalf("unexpected PNG profile: %+v", png)
	}

	encoders, err := st.ListEncoders(ctx)
	if err != nil {
		t.Fatalf("ListEncoders: %v", err)
	}
	if len(encoders) != 2 {
		t.Fatalf("expected 2 encoders, got %d", len(encoders))
	}
}

func TestSyncCatalogUpdatesExistingRows(t *testing.T) {
	st, cfg := newStore(t)
	ctx := context.Background()
	before := mustProfile(t, st, "MP4")

	profiles := append([]config.Profile(nil), cfg.Profiles...)
	for i := range profiles {
		if profiles[i].Name == "MP4" {
			profiles[i].Command = "-c:v libx265"
		}
	}
	if err := st.SyncCatalog(ctx, cfg.Encoders, profiles); err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}

	after := mustProfile(t, st, "MP4")
	if after.ID != before.ID {
		t.Fatalf("expected profile id to be stable, got %d then %d", before.ID, after.ID)
	}
	if after.Command != "-c:v libx265" {
		t.Fatalf("expected updated command, got %q", after.Command)
	}
}

func TestSyncCatalogRejectsUnknownEncoder(t *testing.T) {
	st, cfg := newStore(t)
	err := st.SyncCatalog(context.Background(), cfg.Encoders, []config.Profile{
		{Name: "Orphan", Container: "bin", Encoder: "missing"},
	})
	if err == nil {
		t.Fatal("expected error for unknown encoder")
	}
}

func TestProfileLookupsReturnNilWhenMissing(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()

	p, err := st.Profile(ctx, 9999)
	if err != nil || p != nil {
		t.Fatalf("Profile(9999) = %v, %v; want nil, nil", p, err)
	}
	p, err = st.ProfileByName(ctx, "Betamax")
	if err != nil || p != nil {
		t.Fatalf("ProfileByName = %v, %v; want nil, nil", p, err)
	}
}

func TestCreateAndGetMedia(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	mp4 := mustProfile(t, st, "MP4")
	webm := mustProfile(t, st, "WebM Audio/Video")

	m := &media.Media{
		Title:      "Holiday",
		FileType:   media.Video,
		InputName:  "encode/video/holiday.mov",
		Encoding:   true,
		Owner:      "alice",
		ProfileIDs: []int64{webm.ID, mp4.ID},
	}
	if err := st.CreateMedia(ctx, m); err != nil {
		t.Fatalf("CreateMedia: %v", err)
	}
	if m.ID == 0 || m.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", m)
	}

	got, err := st.GetMedia(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMedia: %v", err)
	}
	if got == nil {
		t.Fatal("expected media")
	}
	if got.Title != "Holiday" || got.FileType != media.Video || !got.Encoding || got.Owner != "alice" {
		t.Fatalf("unexpected media: %+v", got)
	}
	if len(got.ProfileIDs) != 2 || got.ProfileIDs[0] != webm.ID || got.ProfileIDs[1] != mp4.ID {
		t.Fatalf("expected profile order preserved, got %v", got.ProfileIDs)
	}
	if got.Ready() {
		t.Fatal("media without outputs must not be ready")
	}

	missing, err := st.GetMedia(ctx, m.ID+100)
	if err != nil || missing != nil {
		t.Fatalf("GetMedia(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestUpdateMediaPersistsFlags(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()

	m := &media.Media{Title: "Clip", FileType: media.Audio}
	if err := st.CreateMedia(ctx, m); err != nil {
		t.Fatalf("CreateMedia: %v", err)
	}
	m.KeepInputFile = true
	m.InputName = "encode/audio/clip.wav"
	if err := st.UpdateMedia(ctx, m); err != nil {
		t.Fatalf("UpdateMedia: %v", err)
	}
	got, err := st.GetMedia(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMedia: %v", err)
	}
	if !got.KeepInputFile || got.InputName != "encode/audio/clip.wav" {
		t.Fatalf("unexpected media after update: %+v", got)
	}

	ghost := &media.Media{ID: 4242, Title: "ghost"}
	err = st.UpdateMedia(ctx, ghost)
	var notFound *media.MediaNotFound
	if !errors.As(err, &notFound) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected MediaNotFound, got %v", err)
	}
}

func TestAttachProfileIsIdempotent(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	mp3 := mustProfile(t, st, "MP3 Audio")
	ogg := mustProfile(t, st, "Ogg Audio")

	m := &media.Media{Title: "Song", FileType: media.Audio, ProfileIDs: []int64{mp3.ID}}
	if err := st.CreateMedia(ctx, m); err != nil {
		t.Fatalf("CreateMedia: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := st.AttachProfile(ctx, m.ID, ogg.ID); err != nil {
			t.Fatalf("AttachProfile: %v", err)
		}
	}
	if err := st.AttachProfile(ctx, m.ID, mp3.ID); err != nil {
		t.Fatalf("AttachProfile existing: %v", err)
	}
	got, _ := st.GetMedia(ctx, m.ID)
	if len(got.ProfileIDs) != 2 || got.ProfileIDs[1] != ogg.ID {
		t.Fatalf("expected [mp3 ogg], got %v", got.ProfileIDs)
	}
}

func TestAddOutputCompletesWhenAllProfilesStored(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	mp4 := mustProfile(t, st, "MP4")
	webm := mustProfile(t, st, "WebM Audio/Video")

	m := &media.Media{Title: "Talk", FileType: media.Video, Encoding: true, ProfileIDs: []int64{mp4.ID, webm.ID}}
	if err := st.CreateMedia(ctx, m); err != nil {
		t.Fatalf("CreateMedia: %v", err)
	}

	first := &media.File{Title: "Talk", Name: "encode/video/1.mp4", ProfileID: mp4.ID}
	got, err := st.AddOutput(ctx, m.ID, first)
	if err != nil {
		t.Fatalf("AddOutput: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected file id to be assigned")
	}
	if got.Ready() || got.Encoded || !got.Encoding {
		t.Fatalf("expected partial state after first output, got %+v", got)
	}

	got, err = st.AddOutput(ctx, m.ID, &media.File{Title: "Talk", Name: "encode/video/1.webm", ProfileID: webm.ID})
	if err != nil {
		t.Fatalf("AddOutput: %v", err)
	}
	if !got.Ready() || !got.Encoded || !got.Uploaded || got.Encoding {
		t.Fatalf("expected complete state, got %+v", got)
	}

	count, err := st.OutputCount(ctx, m.ID)
	if err != nil || count != 2 {
		t.Fatalf("OutputCount = %d, %v; want 2", count, err)
	}
	reloaded, _ := st.GetMedia(ctx, m.ID)
	if reloaded.Status() != "complete" {
		t.Fatalf("expected complete status, got %q", reloaded.Status())
	}
}

func TestAddOutputRejectsSecondOutputForProfile(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	mp4 := mustProfile(t, st, "MP4")
	webm := mustProfile(t, st, "WebM Audio/Video")

	m := &media.Media{Title: "Talk", FileType: media.Video, Encoding: true, ProfileIDs: []int64{mp4.ID, webm.ID}}
	if err := st.CreateMedia(ctx, m); err != nil {
		t.Fatalf("CreateMedia: %v", err)
	}
	if _, err := st.AddOutput(ctx, m.ID, &media.File{Title: "Talk", Name: "encode/files/a.mp4", ProfileID: mp4.ID}); err != nil {
		t.Fatalf("AddOutput: %v", err)
	}

	again := &media.File{Title: "Talk", Name: "encode/files/b.mp4", ProfileID: mp4.ID}
	got, err := st.AddOutput(ctx, m.ID, again)
	if !errors.Is(err, store.ErrOutputExists) {
		t.Fatalf("expected ErrOutputExists, got %v", err)
	}
	if got != nil || again.ID != 0 {
		t.Fatalf("expected nothing recorded, got media=%v file id=%d", got, again.ID)
	}

	count, err := st.OutputCount(ctx, m.ID)
	if err != nil || count != 1 {
		t.Fatalf("OutputCount = %d, %v; want 1", count, err)
	}
	reloaded, err := st.GetMedia(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMedia: %v", err)
	}
	if reloaded.Ready() || reloaded.Encoded || !reloaded.Encoding {
		t.Fatalf("expected media still encoding, got %+v", reloaded)
	}
}

func TestAddOutputUnknownMedia(t *testing.T) {
	st, _ := newStore(t)
	_, err := st.AddOutput(context.Background(), 77, &media.File{Title: "x", Name: "x"})
	var notFound *media.MediaNotFound
	if !errors.As(err, &notFound) || notFound.ID != 77 {
		t.Fatalf("expected MediaNotFound for 77, got %v", err)
	}
}

func TestAddOutputConcurrentCompletions(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	profiles, err := st.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}

	m := &media.Media{Title: "Batch", FileType: media.Video, Encoding: true}
	for _, p := range profiles {
		m.ProfileIDs = append(m.ProfileIDs, p.ID)
	}
	if err := st.CreateMedia(ctx, m); err != nil {
		t.Fatalf("CreateMedia: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		errs      []error
	)
	for _, p := range profiles {
		wg.Add(1)
		go func(p media.Profile) {
			defer wg.Done()
			got, err := st.AddOutput(ctx, m.ID, &media.File{Title: m.Title, Name: p.Name, ProfileID: p.ID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if got.Ready() {
				completed++
			}
		}(p)
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("AddOutput errors: %v", errs)
	}
	if completed != 1 {
		t.Fatalf("expected exactly one caller to observe completion, got %d", completed)
	}
	got, _ := st.GetMedia(ctx, m.ID)
	if len(got.Outputs) != len(profiles) || !got.Encoded || got.Encoding {
		t.Fatalf("unexpected final state: outputs=%d encoded=%v encoding=%v", len(got.Outputs), got.Encoded, got.Encoding)
	}
}

func TestListMediaFiltersAndStats(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	png := mustProfile(t, st, "PNG")

	snap := &media.Media{Title: "Frame", FileType: media.Snapshot, Encoding: true, ProfileIDs: []int64{png.ID}}
	song := &media.Media{Title: "Song", FileType: media.Audio, Owner: "bob"}
	for _, m := range []*media.Media{snap, song} {
		if err := st.CreateMedia(ctx, m); err != nil {
			t.Fatalf("CreateMedia: %v", err)
		}
	}
	if _, err := st.AddOutput(ctx, snap.ID, &media.File{Title: "Frame", Name: "encode/snapshot/1.png", ProfileID: png.ID}); err != nil {
		t.Fatalf("AddOutput: %v", err)
	}

	all, err := st.ListMedia(ctx, store.ListFilter{})
	if err != nil {
		t.Fatalf("ListMedia: %v", err)
	}
	if len(all) != 2 || all[0].ID != song.ID {
		t.Fatalf("expected newest first, got %d items", len(all))
	}

	complete, err := st.ListMedia(ctx, store.ListFilter{Status: "complete"})
	if err != nil {
		t.Fatalf("ListMedia complete: %v", err)
	}
	if len(complete) != 1 || complete[0].ID != snap.ID || len(complete[0].Outputs) != 1 {
		t.Fatalf("unexpected complete list: %+v", complete)
	}

	owned, err := st.ListMedia(ctx, store.ListFilter{Owner: "bob", FileType: media.Audio})
	if err != nil || len(owned) != 1 {
		t.Fatalf("ListMedia owner = %d, %v", len(owned), err)
	}

	if _, err := st.ListMedia(ctx, store.ListFilter{Status: "lost"}); err == nil {
		t.Fatal("expected error for unknown status")
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.Complete != 1 || stats.Outputs != 1 || stats.ByType[media.Audio] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	byIDs, err := st.MediaByIDs(ctx, []int64{snap.ID, 999})
	if err != nil || len(byIDs) != 1 {
		t.Fatalf("MediaByIDs = %d, %v", len(byIDs), err)
	}
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	path := st.Path()
	if filepath.Base(path) != "reel.db" {
		t.Fatalf("unexpected db path %q", path)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
