package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Diff.Mode != "auto" {
		t.Errorf("Default Diff.Mode = %q, want %q", cfg.Diff.Mode, "auto")
	}
	if cfg.Diff.ContextRadius != 20 {
		t.Errorf("Default Diff.ContextRadius = %d, want 20", cfg.Diff.ContextRadius)
	}
	if cfg.Scanner.Concurrency != 2 {
		t.Errorf("Default Scanner.Concurrency = %d, want 2", cfg.Scanner.Concurrency)
	}
	if cfg.Fusion.ThresholdHigh != 0.8 {
		t.Errorf("Default Fusion.ThresholdHigh = %v, want 0.8", cfg.Fusion.ThresholdHigh)
	}
}

func TestDiscover(t *testing.T) {
	tmpDir := t.TempDir()

	subDir := filepath.Join(tmpDir, "project", "src")
	if err := os.MkdirAll(subDir, 0o750); err != nil {
		t.Fatal(err)
	}

	targetPath := filepath.Join(subDir, "main.go")
	if err := os.WriteFile(targetPath, []byte("package main"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("no config file", func(t *testing.T) {
		result := Discover(targetPath)
		if result != "" {
			t.Errorf("Discover() = %q, want empty string", result)
		}
	})

	t.Run("config in same directory", func(t *testing.T) {
		configPath := filepath.Join(subDir, ".deltareview.toml")
		if err := os.WriteFile(configPath, []byte("[diff]\nmode = \"staged\""), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(configPath)

		result := Discover(targetPath)
		if result != configPath {
			t.Errorf("Discover() = %q, want %q", result, configPath)
		}
	})

	t.Run("config in parent directory", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "project", "deltareview.toml")
		if err := os.WriteFile(configPath, []byte("[diff]\nmode = \"staged\""), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(configPath)

		result := Discover(targetPath)
		if result != configPath {
			t.Errorf("Discover() = %q, want %q", result, configPath)
		}
	})

	t.Run("prefers .deltareview.toml over deltareview.toml", func(t *testing.T) {
		hiddenConfig := filepath.Join(subDir, ".deltareview.toml")
		visibleConfig := filepath.Join(subDir, "deltareview.toml")

		if err := os.WriteFile(hiddenConfig, []byte("# hidden"), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(hiddenConfig)

		if err := os.WriteFile(visibleConfig, []byte("# visible"), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(visibleConfig)

		result := Discover(targetPath)
		if result != hiddenConfig {
			t.Errorf("Discover() = %q, want %q (should prefer .deltareview.toml)", result, hiddenConfig)
		}
	})

	t.Run("closer config wins", func(t *testing.T) {
		rootConfig := filepath.Join(tmpDir, "project", "deltareview.toml")
		if err := os.WriteFile(rootConfig, []byte("# root"), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(rootConfig)

		srcConfig := filepath.Join(subDir, "deltareview.toml")
		if err := os.WriteFile(srcConfig, []byte("# src"), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(srcConfig)

		result := Discover(targetPath)
		if result != srcConfig {
			t.Errorf("Discover() = %q, want %q (closer config should win)", result, srcConfig)
		}
	})

	t.Run("directory target discovers from itself", func(t *testing.T) {
		configPath := filepath.Join(subDir, ".deltareview.toml")
		if err := os.WriteFile(configPath, []byte("# self"), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(configPath)

		result := Discover(subDir)
		if result != configPath {
			t.Errorf("Discover(dir) = %q, want %q", result, configPath)
		}
	})
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	targetPath := filepath.Join(tmpDir, "main.go")
	if err := os.WriteFile(targetPath, []byte("package main"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("loads defaults when no config", func(t *testing.T) {
		cfg, err := Load(targetPath)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Diff.Mode != "auto" {
			t.Errorf("Diff.Mode = %q, want %q", cfg.Diff.Mode, "auto")
		}
		if cfg.ConfigFile != "" {
			t.Errorf("ConfigFile = %q, want empty", cfg.ConfigFile)
		}
	})

	t.Run("loads config file", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, ".deltareview.toml")
		configContent := `
[diff]
mode = "pr"
base-branch = "main"

[scanner]
concurrency = 8
`
		if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(configPath)

		cfg, err := Load(targetPath)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Diff.Mode != "pr" {
			t.Errorf("Diff.Mode = %q, want %q", cfg.Diff.Mode, "pr")
		}
		if cfg.Diff.BaseBranch != "main" {
			t.Errorf("Diff.BaseBranch = %q, want %q", cfg.Diff.BaseBranch, "main")
		}
		if cfg.Scanner.Concurrency != 8 {
			t.Errorf("Scanner.Concurrency = %d, want 8", cfg.Scanner.Concurrency)
		}
		if cfg.ConfigFile != configPath {
			t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, configPath)
		}
	})

	t.Run("environment variables override config", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, ".deltareview.toml")
		configContent := `
[diff]
mode = "pr"

[scanner]
concurrency = 8
`
		if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(configPath)

		t.Setenv("DELTAREVIEW_DIFF_MODE", "staged")
		t.Setenv("DELTAREVIEW_SCANNER_CONCURRENCY", "4")

		cfg, err := Load(targetPath)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Diff.Mode != "staged" {
			t.Errorf("Diff.Mode = %q, want %q (env should override)", cfg.Diff.Mode, "staged")
		}
		if cfg.Scanner.Concurrency != 4 {
			t.Errorf("Scanner.Concurrency = %d, want 4 (env should override)", cfg.Scanner.Concurrency)
		}
	})

	t.Run("rejects invalid diff mode", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, ".deltareview.toml")
		if err := os.WriteFile(configPath, []byte("[diff]\nmode = \"bogus\"\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(configPath)

		if _, err := Load(targetPath); err == nil {
			t.Fatal("Load() error = nil, want error for invalid diff.mode")
		}
	})
}

func TestEnvKeyTransform(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"DELTAREVIEW_DIFF_MODE", "diff.mode"},
		{"DELTAREVIEW_DIFF_BASE_BRANCH", "diff.base-branch"},
		{"DELTAREVIEW_SCANNER_CONCURRENCY", "scanner.concurrency"},
		{"DELTAREVIEW_SCANNER_CACHE_TTL_SECONDS", "scanner.cache-ttl-seconds"},
		{"DELTAREVIEW_FUSION_THRESHOLD_HIGH", "fusion.threshold-high"},
		{"DELTAREVIEW_CONFLICT_RETENTION_DAYS", "conflict.retention-days"},
	}

	for _, tt := range tests {
		got := envKeyTransform(tt.input)
		if got != tt.want {
			t.Errorf("envKeyTransform(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
