package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spacedown/spacedown/internal/config"
)

// TestNewExportCmd tests the export command creation.
func TestNewExportCmd(t *testing.T) {
	t.Parallel()

	cmd := NewExportCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "export" {
			t.Errorf("expected use 'export', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has url flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("url")
		if flag == nil {
			t.Fatal("expected url flag")
		}
		if flag.Shorthand != "u" {
			t.Errorf("expected shorthand 'u', got %q", flag.Shorthand)
		}
	})

	t.Run("has space flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("space")
		if flag == nil {
			t.Fatal("expected space flag")
		}
		if flag.Shorthand != "s" {
			t.Errorf("expected shorthand 's', got %q", flag.Shorthand)
		}
	})

	t.Run("has username and token flags", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("username") == nil {
			t.Error("expected username flag")
		}
		if cmd.Flags().Lookup("token") == nil {
			t.Error("expected token flag")
		}
	})

	t.Run("has output flag with default", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.DefValue != config.DefaultOutputDir {
			t.Errorf("expected default %q, got %q", config.DefaultOutputDir, flag.DefValue)
		}
	})

	t.Run("has since flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("since") == nil {
			t.Error("expected since flag")
		}
	})

	t.Run("has concurrency flag with default", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("concurrency")
		if flag == nil {
			t.Fatal("expected concurrency flag")
		}
		if flag.DefValue != "4" {
			t.Errorf("expected default '4', got %q", flag.DefValue)
		}
	})

	t.Run("has report flags", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("json") == nil {
			t.Error("expected json flag")
		}
		if cmd.Flags().Lookup("markdown") == nil {
			t.Error("expected markdown flag")
		}
		if cmd.Flags().Lookup("report-file") == nil {
			t.Error("expected report-file flag")
		}
	})

	t.Run("has no-history flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("no-history")
		if flag == nil {
			t.Fatal("expected no-history flag")
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})
}

// TestBuildConfig tests config construction from flags.
func TestBuildConfig(t *testing.T) {
	t.Run("reads flags into config", func(t *testing.T) {
		cmd := NewExportCmd()
		if err := cmd.ParseFlags([]string{
			"--url", "https://example.atlassian.net/wiki",
			"--space", "DOCS",
			"--username", "user@example.com",
			"--token", "secret",
			"--output", "./out",
			"--since", "2024-06-01",
			"--concurrency", "2",
			"--timeout", "30s",
			"--no-history",
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.BaseURL != "https://example.atlassian.net/wiki" {
			t.Errorf("unexpected base URL: %q", cfg.BaseURL)
		}
		if cfg.SpaceKey != "DOCS" {
			t.Errorf("unexpected space key: %q", cfg.SpaceKey)
		}
		if cfg.Username != "user@example.com" {
			t.Errorf("unexpected username: %q", cfg.Username)
		}
		if cfg.APIToken != "secret" {
			t.Errorf("unexpected token: %q", cfg.APIToken)
		}
		if cfg.OutputDir != "./out" {
			t.Errorf("unexpected output dir: %q", cfg.OutputDir)
		}
		if cfg.Concurrency != 2 {
			t.Errorf("unexpected concurrency: %d", cfg.Concurrency)
		}
		if cfg.Timeout != 30*time.Second {
			t.Errorf("unexpected timeout: %v", cfg.Timeout)
		}
		if cfg.SaveHistory {
			t.Error("expected SaveHistory false with --no-history")
		}

		want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		if cfg.Since == nil || !cfg.Since.Equal(want) {
			t.Errorf("unexpected since: %v", cfg.Since)
		}

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("rejects malformed since date", func(t *testing.T) {
		cmd := NewExportCmd()
		if err := cmd.ParseFlags([]string{
			"--url", "https://example.atlassian.net/wiki",
			"--space", "DOCS",
			"--username", "user@example.com",
			"--token", "secret",
			"--since", "June 2024",
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		_, err := buildConfig(cmd)
		if err == nil {
			t.Fatal("expected error for malformed date")
		}
		if !errors.Is(err, config.ErrInvalidSinceDate) {
			t.Errorf("expected ErrInvalidSinceDate, got %v", err)
		}
	})

	t.Run("errors on missing explicit config file", func(t *testing.T) {
		cmd := NewExportCmd()
		if err := cmd.ParseFlags([]string{
			"--config", filepath.Join(t.TempDir(), "does-not-exist.yaml"),
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		_, err := buildConfig(cmd)
		if err == nil {
			t.Fatal("expected error for missing config file")
		}
		if !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected not-found error, got %v", err)
		}
	})

	t.Run("config file fills omitted connection flags", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "spacedown.yaml")
		content := `url: https://wiki.example.com
username: file-user@example.com
token: file-token
spaces:
  DOCS:
    output: ./from-file
    since: "2024-01-02"
    concurrency: 8
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewExportCmd()
		if err := cmd.ParseFlags([]string{
			"--config", configPath,
			"--space", "DOCS",
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.BaseURL != "https://wiki.example.com" {
			t.Errorf("expected URL from file, got %q", cfg.BaseURL)
		}
		if cfg.Username != "file-user@example.com" {
			t.Errorf("expected username from file, got %q", cfg.Username)
		}
		if cfg.APIToken != "file-token" {
			t.Errorf("expected token from file, got %q", cfg.APIToken)
		}
		if cfg.OutputDir != "./from-file" {
			t.Errorf("expected per-space output, got %q", cfg.OutputDir)
		}
		if cfg.Concurrency != 8 {
			t.Errorf("expected per-space concurrency 8, got %d", cfg.Concurrency)
		}
		want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
		if cfg.Since == nil || !cfg.Since.Equal(want) {
			t.Errorf("expected per-space since, got %v", cfg.Since)
		}
	})

	t.Run("flags take precedence over config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "spacedown.yaml")
		content := `url: https://wiki.example.com
username: file-user@example.com
token: file-token
spaces:
  DOCS:
    output: ./from-file
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewExportCmd()
		if err := cmd.ParseFlags([]string{
			"--config", configPath,
			"--space", "DOCS",
			"--url", "https://flag.example.com",
			"--output", "./from-flag",
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.BaseURL != "https://flag.example.com" {
			t.Errorf("expected URL from flag, got %q", cfg.BaseURL)
		}
		if cfg.OutputDir != "./from-flag" {
			t.Errorf("expected output from flag, got %q", cfg.OutputDir)
		}
	})

	t.Run("conflicting report formats fail validation", func(t *testing.T) {
		cmd := NewExportCmd()
		if err := cmd.ParseFlags([]string{
			"--url", "https://example.atlassian.net/wiki",
			"--space", "DOCS",
			"--username", "user@example.com",
			"--token", "secret",
			"--json", "--markdown",
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := cfg.Validate(); !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})
}
