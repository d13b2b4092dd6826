package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reel/internal/config"
	"reel/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// copyCatalog encodes by copying the input, so the whole pipeline runs
// without real transcoders.
func copyCatalog() ([]config.Encoder, []config.Profile) {
	encoders := []config.Encoder{{Name: "Copy", Path: "cp", Kind: config.KindBasic}}
	profiles := []config.Profile{
		{Name: "Copy", Container: "txt", MIMEType: "text/plain", Encoder: "Copy", Command: "{input} {output}"},
		{Name: "Copy Again", Container: "bak", MIMEType: "application/octet-stream", Encoder: "Copy", Command: "{input} {output}"},
	}
	return encoders, profiles
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	encoders, profiles := copyCatalog()
	cfg := testsupport.NewConfig(t, testsupport.WithCatalog(encoders, profiles))
	cfg.Queue.BlockSeconds = 1
	cfg.Workflow.HeartbeatInterval = 60
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "reel", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--log-level", "error"}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteFile(t, path, content)
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
