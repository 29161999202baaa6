package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/shotdiff/internal/config"
)

// parseSubcommand finds name under a fresh root and parses args into it.
func parseSubcommand(t *testing.T, name string, args ...string) *cobra.Command {
	t.Helper()
	root := NewRootCmd()
	cmd, _, err := root.Find([]string{name})
	if err != nil {
		t.Fatalf("failed to find %s: %v", name, err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shotdiff.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "sites: {}\n")
		cmd := parseSubcommand(t, "run", "--config", cfgPath)
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Timeout != config.DefaultTimeout || cfg.Wait != config.DefaultWait {
			t.Errorf("unexpected timing %v %v", cfg.Timeout, cfg.Wait)
		}
		if cfg.SSIMThreshold != config.DefaultSSIMThreshold {
			t.Errorf("unexpected threshold %v", cfg.SSIMThreshold)
		}
		if cfg.DBDir != config.XDGDataDir() {
			t.Errorf("expected history in XDG data dir, got %s", cfg.DBDir)
		}
		if !filepath.IsAbs(cfg.ConfigFilePath) {
			t.Errorf("config path must be absolute for the worker, got %s", cfg.ConfigFilePath)
		}
	})

	t.Run("file values apply when flags are unset", func(t *testing.T) {
		t.Parallel()

		dataDir := t.TempDir()
		cfgPath := writeConfigFile(t, `
data_dir: `+dataDir+`
unique_keys: true
defaults:
  timeout: 40
  wait: 0.5
  threshold: 0.8
`)
		cmd := parseSubcommand(t, "run", "--config", cfgPath)
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DataDir != dataDir || !cfg.UniqueKeys {
			t.Errorf("unexpected file settings %+v", cfg)
		}
		if cfg.Timeout != 40*time.Second || cfg.Wait != 500*time.Millisecond || cfg.SSIMThreshold != 0.8 {
			t.Errorf("unexpected defaults %v %v %v", cfg.Timeout, cfg.Wait, cfg.SSIMThreshold)
		}
	})

	t.Run("explicit flags override the file", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "defaults:\n  timeout: 40\n  threshold: 0.8\n")
		dataDir := t.TempDir()
		cmd := parseSubcommand(t, "run",
			"--config", cfgPath,
			"--data-dir", dataDir,
			"--timeout", "5",
			"--wait", "1.5",
			"--threshold", "0.99",
			"--urls", "list.txt",
			"--headful",
			"--no-history",
			"--json",
		)
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Timeout != 5*time.Second || cfg.Wait != 1500*time.Millisecond || cfg.SSIMThreshold != 0.99 {
			t.Errorf("flags must win: %v %v %v", cfg.Timeout, cfg.Wait, cfg.SSIMThreshold)
		}
		if cfg.ResolvePath(cfg.URLsFile) != filepath.Join(dataDir, "list.txt") {
			t.Errorf("unexpected URL list %s", cfg.ResolvePath(cfg.URLsFile))
		}
		if !cfg.Headful || !cfg.JSONReport || cfg.DBDir != "" {
			t.Errorf("unexpected switches %+v", cfg)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "sites: {}\n")
		tests := []struct {
			name string
			args []string
			want error
		}{
			{name: "zero timeout", args: []string{"--timeout", "0"}, want: config.ErrInvalidTimeout},
			{name: "negative wait", args: []string{"--wait", "-1"}, want: config.ErrInvalidWait},
			{name: "threshold above one", args: []string{"--threshold", "1.5"}, want: config.ErrInvalidThreshold},
			{name: "two report formats", args: []string{"--json", "--markdown"}, want: config.ErrConflictingReportFormats},
		}
		for _, tt := range tests {
			cmd := parseSubcommand(t, "run", append([]string{"--config", cfgPath}, tt.args...)...)
			if _, err := buildConfig(cmd); !errors.Is(err, tt.want) {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
			}
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := parseSubcommand(t, "run", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := buildConfig(cmd); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid site override", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "sites:\n  example.com:\n    threshold: 3\n")
		cmd := parseSubcommand(t, "run", "--config", cfgPath)
		if _, err := buildConfig(cmd); !errors.Is(err, config.ErrInvalidThreshold) {
			t.Errorf("expected ErrInvalidThreshold, got %v", err)
		}
	})
}
