// Package config loads draftkeep settings from a YAML file, environment
// variables (DRAFTKEEP_ prefix) and built-in defaults, in that order of
// precedence after the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/roach88/draftkeep/internal/engine"
	"github.com/roach88/draftkeep/internal/identity"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config is the full application configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Timing   TimingConfig   `mapstructure:"timing"`
	Identity IdentityConfig `mapstructure:"identity"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Log      LogConfig      `mapstructure:"log"`
}

// StorageConfig selects the draft store.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=sqlite badger"`
	Path    string `mapstructure:"path" validate:"required"`

	// ReportsPath is the SQLite database holding submitted reports. Empty
	// means the draft database for sqlite and "<path>.reports.db" for
	// badger.
	ReportsPath string `mapstructure:"reports_path"`
}

// TimingConfig holds the debounce and recovery timings.
type TimingConfig struct {
	SaveDebounceMs     int `mapstructure:"save_debounce_ms" validate:"gte=0"`
	ValidateDebounceMs int `mapstructure:"validate_debounce_ms" validate:"gte=0"`
	ScoreDebounceMs    int `mapstructure:"score_debounce_ms" validate:"gte=0"`
	SettleDelayMs      int `mapstructure:"settle_delay_ms" validate:"gte=0"`
	CelebrateMs        int `mapstructure:"celebrate_ms" validate:"gte=0"`
	RecoveryWindowMin  int `mapstructure:"recovery_window_min" validate:"gte=0"`
}

// IdentityConfig is the stable-identity policy.
type IdentityConfig struct {
	MinNameRunes int `mapstructure:"min_name_runes" validate:"gte=1,lte=100"`
	PhoneDigits  int `mapstructure:"phone_digits" validate:"gte=4,lte=15"`
}

// ScoringConfig holds score thresholds.
type ScoringConfig struct {
	CelebrateAt float64 `mapstructure:"celebrate_at" validate:"gte=0,lte=10"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration.
func Default() *Config {
	s := engine.DefaultSettings()
	p := identity.DefaultPolicy()
	return &Config{
		Storage: StorageConfig{Backend: BackendSQLite, Path: "draftkeep.db"},
		Timing: TimingConfig{
			SaveDebounceMs:     int(s.SaveDebounce / time.Millisecond),
			ValidateDebounceMs: int(s.ValidateDebounce / time.Millisecond),
			ScoreDebounceMs:    int(s.ScoreDebounce / time.Millisecond),
			SettleDelayMs:      int(s.SettleDelay / time.Millisecond),
			CelebrateMs:        int(s.CelebrateFor / time.Millisecond),
			RecoveryWindowMin:  int(s.RecoveryWindow / time.Minute),
		},
		Identity: IdentityConfig{MinNameRunes: p.MinNameRunes, PhoneDigits: p.PhoneDigits},
		Scoring:  ScoringConfig{CelebrateAt: s.CelebrateAt},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads configPath, or draftkeep.yaml in the working directory when
// configPath is empty. A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("draftkeep")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DRAFTKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Debug("no config file found, using defaults")
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.reports_path", d.Storage.ReportsPath)

	v.SetDefault("timing.save_debounce_ms", d.Timing.SaveDebounceMs)
	v.SetDefault("timing.validate_debounce_ms", d.Timing.ValidateDebounceMs)
	v.SetDefault("timing.score_debounce_ms", d.Timing.ScoreDebounceMs)
	v.SetDefault("timing.settle_delay_ms", d.Timing.SettleDelayMs)
	v.SetDefault("timing.celebrate_ms", d.Timing.CelebrateMs)
	v.SetDefault("timing.recovery_window_min", d.Timing.RecoveryWindowMin)

	v.SetDefault("identity.min_name_runes", d.Identity.MinNameRunes)
	v.SetDefault("identity.phone_digits", d.Identity.PhoneDigits)

	v.SetDefault("scoring.celebrate_at", d.Scoring.CelebrateAt)

	v.SetDefault("log.level", d.Log.Level)
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Settings converts the timing section into session settings.
func (c *Config) Settings() engine.Settings {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return engine.Settings{
		SaveDebounce:     ms(c.Timing.SaveDebounceMs),
		ValidateDebounce: ms(c.Timing.ValidateDebounceMs),
		ScoreDebounce:    ms(c.Timing.ScoreDebounceMs),
		SettleDelay:      ms(c.Timing.SettleDelayMs),
		CelebrateFor:     ms(c.Timing.CelebrateMs),
		RecoveryWindow:   time.Duration(c.Timing.RecoveryWindowMin) * time.Minute,
		CelebrateAt:      c.Scoring.CelebrateAt,
	}
}

// Reports returns the path of the reports database, or "" when reports
// share the SQLite draft database.
func (c *Config) Reports() string {
	if c.Storage.ReportsPath != "" {
		return c.Storage.ReportsPath
	}
	if c.Storage.Backend == BackendBadger {
		return c.Storage.Path + ".reports.db"
	}
	return ""
}

// Policy returns the stable-identity policy.
func (c *Config) Policy() identity.Policy {
	return identity.Policy{MinNameRunes: c.Identity.MinNameRunes, PhoneDigits: c.Identity.PhoneDigits}
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
