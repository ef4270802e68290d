package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteFile writes cfg as YAML to path, creating parent directories.
func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("write config: nil config")
	}
	if path == "" {
		return fmt.Errorf("write config: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	payload := map[string]any{
		"storage": map[string]any{
			"backend":      cfg.Storage.Backend,
			"path":         cfg.Storage.Path,
			"reports_path": cfg.Storage.ReportsPath,
		},
		"timing": map[string]any{
			"save_debounce_ms":     cfg.Timing.SaveDebounceMs,
			"validate_debounce_ms": cfg.Timing.ValidateDebounceMs,
			"score_debounce_ms":    cfg.Timing.ScoreDebounceMs,
			"settle_delay_ms":      cfg.Timing.SettleDelayMs,
			"celebrate_ms":         cfg.Timing.CelebrateMs,
			"recovery_window_min":  cfg.Timing.RecoveryWindowMin,
		},
		"identity": map[string]any{
			"min_name_runes": cfg.Identity.MinNameRunes,
			"phone_digits":   cfg.Identity.PhoneDigits,
		},
		"scoring": map[string]any{
			"celebrate_at": cfg.Scoring.CelebrateAt,
		},
		"log": map[string]any{
			"level": cfg.Log.Level,
		},
	}

	data, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
