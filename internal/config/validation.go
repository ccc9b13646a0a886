package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

var validDiffModes = map[string]bool{
	"auto":    true,
	"working": true,
	"staged":  true,
	"pr":      true,
	"commit":  true,
}

// decodeConfig unmarshals a merged raw config map into a Config and checks
// the result for domain-invariant violations (bad enum values, inverted
// thresholds) that koanf's struct decoding alone would not catch.
func decodeConfig(raw map[string]any) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(raw, ""), nil); err != nil {
		return nil, fmt.Errorf("load raw config: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects configurations that decoded cleanly but make no sense:
// an unknown diff mode, or threshold bands that aren't high >= medium >= low.
func validate(cfg *Config) error {
	if cfg.Diff.Mode != "" && !validDiffModes[cfg.Diff.Mode] {
		return fmt.Errorf("diff.mode %q is not one of auto, working, staged, pr, commit", cfg.Diff.Mode)
	}

	f := cfg.Fusion
	if f.ThresholdHigh < f.ThresholdMedium || f.ThresholdMedium < f.ThresholdLow {
		return fmt.Errorf(
			"fusion thresholds must satisfy high >= medium >= low, got %.2f/%.2f/%.2f",
			f.ThresholdHigh, f.ThresholdMedium, f.ThresholdLow,
		)
	}

	if cfg.Scanner.Concurrency < 0 {
		return fmt.Errorf("scanner.concurrency must be >= 0, got %d", cfg.Scanner.Concurrency)
	}

	return nil
}
