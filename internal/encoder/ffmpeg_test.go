package encoder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"reel/internal/media"
)

func mp3Profile() media.Profile {
	return media.Profile{
		Name:      "MP3 Audio",
		Container: "mp3",
		Command:   "-q:a 2",
		Encoder:   media.Encoder{Name: "FFmpeg", Path: "/usr/bin/ffmpeg", Kind: "ffmpeg"},
	}
}

func TestFFmpegConvertSuppliesInputAndOutput(t *testing.T) {
	conv, err := NewFFmpeg(nil).Convert(context.Background(), mp3Profile(), "/in dir/a.wav", "/out/1.mp3")
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	want := []string{"/usr/bin/ffmpeg", "-nostdin", "-y", "-progress", "pipe:1", "-nostats", "-i", "/in dir/a.wav", "-q:a", "2", "/out/1.mp3"}
	if !slices.Equal(conv.cmd.Argv, want) {
		t.Fatalf("argv = %q, want %q", conv.cmd.Argv, want)
	}
	if !strings.Contains(conv.Command(), "'/in dir/a.wav'") {
		t.Fatalf("expected quoted command string, got %q", conv.Command())
	}
}

func TestFFmpegConvertHonorsPlaceholders(t *testing.T) {
	profile := mp3Profile()
	profile.Command = "-i {input} -vn {output}"
	conv, err := NewFFmpeg(nil).Convert(context.Background(), profile, "/a.wav", "/b.mp3")
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	tail := conv.cmd.Argv[len(conv.cmd.Argv)-4:]
	if !slices.Equal(tail, []string{"-i", "/a.wav", "-vn", "/b.mp3"}) {
		t.Fatalf("unexpected tail %q", tail)
	}
}

func TestConversionTimecodesAreRestartable(t *testing.T) {
	calls := setHelperCommand(t, "progress")
	output := filepath.Join(t.TempDir(), "1.mp3")
	conv, err := NewFFmpeg(nil).Convert(context.Background(), mp3Profile(), "/a.wav", output)
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	collect := func() []time.Duration {
		var got []time.Duration
		for tc := range conv.Timecodes() {
			got = append(got, tc)
		}
		return got
	}
	want := []time.Duration{time.Second, 5500 * time.Millisecond, 10 * time.Second}
	first := collect()
	if !slices.Equal(first, want) {
		t.Fatalf("timecodes = %v, want %v", first, want)
	}
	if err := conv.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := collect()
	if !slices.Equal(second, want) {
		t.Fatalf("second run timecodes = %v, want %v", second, want)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected one process per iteration, got %d", len(*calls))
	}
}

func TestConversionStopEarlyKillsProcess(t *testing.T) {
	setHelperCommand(t, "progress")
	conv, err := NewFFmpeg(nil).Convert(context.Background(), mp3Profile(), "/a.wav", filepath.Join(t.TempDir(), "1.mp3"))
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	count := 0
	for range conv.Timecodes() {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected a single timecode, got %d", count)
	}
}

func TestFFmpegStartSuccess(t *testing.T) {
	calls := setHelperCommand(t, "progress")
	output := filepath.Join(t.TempDir(), "audio", "1.mp3")
	if err := NewFFmpeg(nil).Start(context.Background(), mp3Profile(), "/a.wav", output); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output: %v", err)
	}
	if got := (*calls)[0][0]; got != "/usr/bin/ffprobe" {
		t.Fatalf("expected ffprobe first, got %q", got)
	}
}

func TestFFmpegStartLogsProgressAtDebug(t *testing.T) {
	for _, tc := range []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelInfo, false},
		{slog.LevelDebug, true},
	} {
		setHelperCommand(t, "progress")
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: tc.level}))
		output := filepath.Join(t.TempDir(), "1.mp3")
		if err := NewFFmpeg(logger).Start(context.Background(), mp3Profile(), "/a.wav", output); err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
		if got := strings.Contains(buf.String(), `"encode progress"`); got != tc.want {
			t.Fatalf("level %s: progress logged = %v, want %v\n%s", tc.level, got, tc.want, buf.String())
		}
	}
}

func TestFFmpegStartFailureRemapsToEncodeFailure(t *testing.T) {
	setHelperCommand(t, "progress-fail")
	err := NewFFmpeg(nil).Start(context.Background(), mp3Profile(), "/a.wav", filepath.Join(t.TempDir(), "1.mp3"))
	var failure *EncodeFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected EncodeFailure, got %v", err)
	}
	if !strings.Contains(failure.Output, "Conversion failed!") {
		t.Fatalf("expected stderr tail in output, got %q", failure.Output)
	}
	if !strings.HasPrefix(failure.Command, "/usr/bin/ffmpeg ") {
		t.Fatalf("expected full command, got %q", failure.Command)
	}
}

func TestFFmpegStartMissingBinary(t *testing.T) {
	profile := mp3Profile()
	profile.Encoder.Path = "reel-missing-ffmpeg"
	err := NewFFmpeg(nil).Start(context.Background(), profile, "/a.wav", filepath.Join(t.TempDir(), "1.mp3"))
	var failure *EncodeFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected EncodeFailure, got %v", err)
	}
	if !strings.HasPrefix(failure.Error(), "reel-missing-ffmpeg: ") {
		t.Fatalf("unexpected message %q", failure.Error())
	}
}

func TestParseTimecode(t *testing.T) {
	cases := map[string]time.Duration{
		"00:00:00.000000": 0,
		"01:02:03.5":      time.Hour + 2*time.Minute + 3500*time.Millisecond,
	}
	for in, want := range cases {
		got, ok := parseTimecode(in)
		if !ok || got != want {
			t.Fatalf("parseTimecode(%q) = %v %v, want %v", in, got, ok, want)
		}
	}
	for _, bad := range []string{"N/A", "-00:00:00.04", "1:2", ""} {
		if _, ok := parseTimecode(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestProbeBinary(t *testing.T) {
	cases := map[string]string{
		"ffmpeg":              "ffprobe",
		"/usr/bin/ffmpeg":     "/usr/bin/ffprobe",
		"/opt/bin/ffmpeg-6.1": "/opt/bin/ffprobe-6.1",
		"avconv":              "",
	}
	for in, want := range cases {
		if got := probeBinary(in); got != want {
			t.Fatalf("probeBinary(%q) = %q, want %q", in, got, want)
		}
	}
}
