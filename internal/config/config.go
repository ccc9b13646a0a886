// Package config provides configuration loading and discovery for the
// review pipeline.
//
// Configuration is loaded from multiple sources with the following priority
// (highest to lowest):
//  1. Caller-supplied overrides (e.g. CLI flags, applied by the caller after Load)
//  2. Environment variables (DELTAREVIEW_* prefix)
//  3. Config file (closest .deltareview.toml or deltareview.toml)
//  4. Built-in defaults
//
// Config file discovery follows a cascading pattern similar to Ruff:
// starting from the target path's directory, walk up the filesystem until a
// config file is found. The closest config wins (no merging).
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigFileNames defines the config file names to search for, in priority order.
var ConfigFileNames = []string{".deltareview.toml", "deltareview.toml"}

// EnvPrefix is the prefix for environment variables.
const EnvPrefix = "DELTAREVIEW_"

// Config is the complete pipeline configuration.
type Config struct {
	Diff     DiffConfig     `koanf:"diff"`
	Rules    RulesConfig    `koanf:"rules"`
	Fusion   FusionConfig   `koanf:"fusion"`
	Scanner  ScannerConfig  `koanf:"scanner"`
	Conflict ConflictConfig `koanf:"conflict"`

	// ConfigFile is the path to the config file that was loaded (if any).
	// This is metadata, not loaded from config.
	ConfigFile string `koanf:"-"`
}

// DiffConfig controls how DiffCollector resolves the change set under review.
type DiffConfig struct {
	// Mode is one of "auto", "working", "staged", "pr", "commit".
	Mode string `koanf:"mode"`

	// BaseBranch is the PR-mode comparison base; empty triggers
	// main-then-master auto-resolution.
	BaseBranch string `koanf:"base-branch"`

	// ContextRadius is how many lines of unchanged surrounding code
	// UnitBuilder includes on each side of a hunk.
	ContextRadius int `koanf:"context-radius"`
}

// RulesConfig controls RuleEngine behavior.
type RulesConfig struct {
	// Disabled lists rule codes excluded from scoring regardless of their
	// EnabledByDefault metadata.
	Disabled []string `koanf:"disabled"`

	// LearnedRulesPath is where the promoted learned-rule document lives.
	LearnedRulesPath string `koanf:"learned-rules-path"`
}

// FusionConfig controls FusionLayer's confidence bands.
type FusionConfig struct {
	ThresholdHigh   float64 `koanf:"threshold-high"`
	ThresholdMedium float64 `koanf:"threshold-medium"`
	ThresholdLow    float64 `koanf:"threshold-low"`
}

// ScannerConfig controls the static-scan side service.
type ScannerConfig struct {
	// Disabled lists scanner names excluded regardless of driver default.
	Disabled []string `koanf:"disabled"`

	// Concurrency is how many files are scanned in flight at once.
	Concurrency int `koanf:"concurrency"`

	// TimeoutSeconds bounds a single scanner invocation.
	TimeoutSeconds int `koanf:"timeout-seconds"`

	// CacheTTLSeconds and CacheMaxEntries bound ScannerCache.
	CacheTTLSeconds int `koanf:"cache-ttl-seconds"`
	CacheMaxEntries int `koanf:"cache-max-entries"`

	// IgnoreGlobs are doublestar patterns excluded from scanning entirely.
	IgnoreGlobs []string `koanf:"ignore-globs"`
}

// Timeout returns ScannerConfig.TimeoutSeconds as a time.Duration.
func (c ScannerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns ScannerConfig.CacheTTLSeconds as a time.Duration.
func (c ScannerConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// ConflictConfig controls ConflictTracker/RuleAnalyzer retention and promotion.
type ConflictConfig struct {
	// RetentionDays is the maximum age (Cleanup's maxAgeDays) a conflict
	// file is kept for before eviction.
	RetentionDays int `koanf:"retention-days"`

	// MaxCount is the maximum number of conflict files kept regardless of
	// age (Cleanup's maxCount, oldest evicted first).
	MaxCount int `koanf:"max-count"`

	// TrendWindowDays is the default AnalyzeTrend bucket window.
	TrendWindowDays int `koanf:"trend-window-days"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Diff: DiffConfig{
			Mode:          "auto",
			ContextRadius: 20,
		},
		Fusion: FusionConfig{
			ThresholdHigh:   0.8,
			ThresholdMedium: 0.5,
			ThresholdLow:    0.3,
		},
		Scanner: ScannerConfig{
			Concurrency:     2,
			TimeoutSeconds:  30,
			CacheTTLSeconds: 3600,
			CacheMaxEntries: 1000,
		},
		Conflict: ConflictConfig{
			RetentionDays:   30,
			MaxCount:        1000,
			TrendWindowDays: 7,
		},
	}
}

// Load loads configuration for a target path.
// It discovers the closest config file, loads it, and applies
// environment variable overrides.
func Load(targetPath string) (*Config, error) {
	return loadWithConfigPath(Discover(targetPath))
}

// LoadFromFile loads configuration from a specific config file path.
// Unlike Load, it does not perform config discovery.
func LoadFromFile(configPath string) (*Config, error) {
	return loadWithConfigPath(configPath)
}

// loadWithConfigPath is an internal helper that loads config with an optional config file path.
func loadWithConfigPath(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, err
	}

	// 2. Load config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load environment variables (DELTAREVIEW_* prefix)
	// DELTAREVIEW_SCANNER_CACHE_TTL_SECONDS -> scanner.cache-ttl-seconds
	if err := k.Load(env.Provider(".", env.Opt{Prefix: EnvPrefix, TransformFunc: envKeyTransform}), nil); err != nil {
		return nil, err
	}

	// 4. Unmarshal into config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	cfg.ConfigFile = configPath
	return cfg, nil
}

// knownHyphenatedKeys maps dot-separated patterns to their hyphenated equivalents.
// Add new entries here when adding settings with hyphenated names.
var knownHyphenatedKeys = map[string]string{
	"base.branch":         "base-branch",
	"context.radius":      "context-radius",
	"learned.rules.path":  "learned-rules-path",
	"threshold.high":      "threshold-high",
	"threshold.medium":    "threshold-medium",
	"threshold.low":       "threshold-low",
	"timeout.seconds":     "timeout-seconds",
	"cache.ttl.seconds":   "cache-ttl-seconds",
	"cache.max.entries":   "cache-max-entries",
	"ignore.globs":        "ignore-globs",
	"retention.days":      "retention-days",
	"max.count":           "max-count",
	"trend.window.days":   "trend-window-days",
}

// envKeyTransform converts environment variable names to config keys.
// DELTAREVIEW_DIFF_MODE -> diff.mode
// DELTAREVIEW_SCANNER_CACHE_TTL_SECONDS -> scanner.cache-ttl-seconds
func envKeyTransform(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", ".")
	for pattern, replacement := range knownHyphenatedKeys {
		s = strings.ReplaceAll(s, pattern, replacement)
	}
	return s
}

// Discover finds the closest config file for a target path.
// It walks up the directory tree from the target's directory,
// checking for config files at each level.
// Returns empty string if no config file is found.
func Discover(targetPath string) string {
	absPath, err := filepath.Abs(targetPath)
	if err != nil {
		return ""
	}

	dir := filepath.Dir(absPath)
	if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
		dir = absPath
	}

	for {
		for _, name := range ConfigFileNames {
			configPath := filepath.Join(dir, name)
			if fileExists(configPath) {
				return configPath
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
