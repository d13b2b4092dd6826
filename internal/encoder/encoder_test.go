package encoder

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"reel/internal/config"
	"reel/internal/media"
	"reel/internal/services"
)

func TestNewRegistryRejectsUnknownKind(t *testing.T) {
	_, err := NewRegistry([]config.Encoder{{Name: "hb", Path: "HandBrakeCLI", Kind: "handbrake"}}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRegistryResolvesKinds(t *testing.T) {
	reg, err := NewRegistry(config.Default().Encoders, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if !slices.Equal(reg.Kinds(), []string{"basic", "drapto", "ffmpeg"}) {
		t.Fatalf("unexpected kinds %v", reg.Kinds())
	}
	adapter, err := reg.For(media.Encoder{Kind: ""})
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if _, ok := adapter.(*Basic); !ok {
		t.Fatalf("expected basic adapter for empty kind, got %T", adapter)
	}
	if _, err := reg.For(media.Encoder{Name: "x", Kind: "nope"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRegistryAppliesTimeout(t *testing.T) {
	var deadline time.Time
	fake := AdapterFunc(func(ctx context.Context, profile media.Profile, inputPath, outputPath string) error {
		deadline, _ = ctx.Deadline()
		return nil
	})
	reg, err := NewRegistry(nil, nil, WithAdapter("fake", fake), WithTimeout(time.Minute))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	profile := media.Profile{Encoder: media.Encoder{Kind: "fake"}}
	if err := reg.Start(context.Background(), profile, "/a", "/b"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if deadline.IsZero() || time.Until(deadline) > time.Minute {
		t.Fatalf("expected deadline within a minute, got %v", deadline)
	}
}
