package command_test

import (
	"errors"
	"reflect"
	"testing"

	"reel/internal/command"
	"reel/internal/services"
)

func TestBuildComposesInOrder(t *testing.T) {
	cmd, err := command.Build("convert", "-loglevel fatal -y", `"{input}" -size 320x240 "{output}"`, "/a.png", "/b.png")
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := []string{"convert", "-loglevel", "fatal", "-y", "/a.png", "-size", "320x240", "/b.png"}
	if !reflect.DeepEqual(cmd.Argv, want) {
		t.Fatalf("argv = %q, want %q", cmd.Argv, want)
	}
	if cmd.Name() != "convert" {
		t.Fatalf("unexpected name %q", cmd.Name())
	}
	if got := cmd.String(); got != "convert -loglevel fatal -y /a.png -size 320x240 /b.png" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestBuildSubstitutesInsideTokens(t *testing.T) {
	cmd, err := command.Build(`"/opt/my tools/ffmpeg"`, "", "-i {input} -c:a libvorbis {output}", "/in dir/a b.wav", "/out/c.ogg")
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := []string{"/opt/my tools/ffmpeg", "-i", "/in dir/a b.wav", "-c:a", "libvorbis", "/out/c.ogg"}
	if !reflect.DeepEqual(cmd.Argv, want) {
		t.Fatalf("argv = %q, want %q", cmd.Argv, want)
	}
	if got := cmd.String(); got != `'/opt/my tools/ffmpeg' -i '/in dir/a b.wav' -c:a libvorbis /out/c.ogg` {
		t.Fatalf("unexpected quoted string %q", got)
	}
}

func TestBuildMalformedQuotingIsConfigurationError(t *testing.T) {
	cases := []struct{ path, flags, profile string }{
		{`"convert`, "", ""},
		{"convert", `-loglevel 'fatal`, ""},
		{"convert", "", `"{input}" -size 320x240 "{output}`},
	}
	for _, tc := range cases {
		_, err := command.Build(tc.path, tc.flags, tc.profile, "/a", "/b")
		if err == nil {
			t.Fatalf("expected error for %+v", tc)
		}
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("expected configuration error, got %v", err)
		}
	}
}

func TestBuildRejectsEmptyEncoderPath(t *testing.T) {
	if _, err := command.Build("  ", "", "-q:a 2", "/a", "/b"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestHasPlaceholders(t *testing.T) {
	if command.HasPlaceholders("-c:v libx264") {
		t.Fatal("expected no placeholders")
	}
	if !command.HasPlaceholders(`"{input}" out.png`) {
		t.Fatal("expected placeholder")
	}
}
