package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/shotdiff/internal/config"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultConfigFile {
			t.Errorf("expected default %q, got %q", config.DefaultConfigFile, flag.DefValue)
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("force")
		if flag == nil {
			t.Fatal("expected force flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
	})
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates a loadable config file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".shotdiff")
		var out bytes.Buffer
		cmd := NewInitCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"-o", outputPath})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), outputPath) {
			t.Errorf("expected output to name the file, got %q", out.String())
		}

		cf, err := config.LoadConfigFile(outputPath)
		if err != nil {
			t.Fatalf("template must be valid YAML: %v", err)
		}
		if cf.Defaults.Timeout != 20 || cf.Defaults.Threshold == nil || *cf.Defaults.Threshold != 0.92 {
			t.Errorf("unexpected defaults %+v", cf.Defaults)
		}
		if cf.Defaults.Wait == nil || *cf.Defaults.Wait != 2 {
			t.Errorf("unexpected default wait %v", cf.Defaults.Wait)
		}

		cfg := config.NewConfig()
		cfg.ApplyFile(cf)
		if err := cfg.Validate(); err != nil {
			t.Errorf("template must validate: %v", err)
		}
	})

	t.Run("fails if file exists without force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".shotdiff")
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", outputPath})

		err := cmd.Execute()
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected 'already exists' error, got %v", err)
		}
	})

	t.Run("overwrites file with force flag", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".shotdiff")
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", outputPath, "-f"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatal(err)
		}
		if string(content) == "existing" {
			t.Error("expected file to be overwritten")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "nested", "dir", "shotdiff.yaml")
		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", outputPath})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(outputPath); err != nil {
			t.Errorf("expected config file: %v", err)
		}
	})
}
