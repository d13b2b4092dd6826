package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reel/internal/media"
	"reel/internal/services"
)

func convertProfile(path string) media.Profile {
	return media.Profile{
		Name:      "PNG",
		Container: "png",
		Command:   `"{input}" -size 320x240 "{output}"`,
		Encoder:   media.Encoder{Name: "convert (ImageMagick)", Path: path, Flags: "-loglevel fatal -y"},
	}
}

func TestBasicStartSuccess(t *testing.T) {
	calls := setHelperCommand(t, "success")
	dir := t.TempDir()
	output := filepath.Join(dir, "nested", "1.png")

	if err := NewBasic(nil).Start(context.Background(), convertProfile("convert"), "/a.png", output); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	want := []string{"convert", "-loglevel", "fatal", "-y", "/a.png", "-size", "320x240", output}
	got := (*calls)[0]
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("argv = %q, want %q", got, want)
	}
}

func TestBasicStartMissingBinary(t *testing.T) {
	output := filepath.Join(t.TempDir(), "1.png")
	err := NewBasic(nil).Start(context.Background(), convertProfile("reel-no-such-encoder"), "/a.png", output)

	var failure *EncodeFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected EncodeFailure, got %T %v", err, err)
	}
	if !strings.HasPrefix(failure.Error(), "reel-no-such-encoder: ") {
		t.Fatalf("unexpected message %q", failure.Error())
	}
	wantCommand := "reel-no-such-encoder -loglevel fatal -y /a.png -size 320x240 " + output
	if failure.Command != wantCommand {
		t.Fatalf("command = %q, want %q", failure.Command, wantCommand)
	}
	if !errors.Is(err, services.ErrExternalTool) || services.Retryable(err) {
		t.Fatalf("expected final external tool error, got %v", err)
	}
}

func TestBasicStartNonZeroExitCarriesOutput(t *testing.T) {
	setHelperCommand(t, "fail")
	output := filepath.Join(t.TempDir(), "1.mp3")
	profile := media.Profile{Name: "MP3 Audio", Command: "-i {input} -q:a 2 {output}", Encoder: media.Encoder{Path: "ffmpeg"}}

	err := NewBasic(nil).Start(context.Background(), profile, "/in.wav", output)
	var failure *EncodeFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected EncodeFailure, got %v", err)
	}
	if !strings.Contains(failure.Output, "Unknown encoder 'libfdk_aac'") || !strings.Contains(failure.Output, "Input #0") {
		t.Fatalf("expected combined output, got %q", failure.Output)
	}
	if !strings.Contains(failure.Error(), "exited with status 3") {
		t.Fatalf("unexpected message %q", failure.Error())
	}
	if failure.Command != "ffmpeg -i /in.wav -q:a 2 "+output {
		t.Fatalf("unexpected command %q", failure.Command)
	}
}

func TestBasicStartMalformedCommand(t *testing.T) {
	setHelperCommand(t, "success")
	profile := convertProfile("convert")
	profile.Command = `"{input}" -size 320x240 "{output}`
	err := NewBasic(nil).Start(context.Background(), profile, "/a.png", filepath.Join(t.TempDir(), "b.png"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBasicStartTimeoutIsRetryable(t *testing.T) {
	setHelperCommand(t, "hang")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := NewBasic(nil).Start(ctx, convertProfile("convert"), "/a.png", filepath.Join(t.TempDir(), "b.png"))
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("expected timeout to be retryable")
	}
}
