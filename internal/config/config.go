package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix for environment overrides, e.g. DRILLBOOK_DAY_START_HOUR.
const EnvPrefix = "DRILLBOOK_"

// Config holds all drillbook configuration.
type Config struct {
	DataDir      string `koanf:"data_dir" validate:"required"`
	DBPath       string `koanf:"db_path"`
	ProgressPath string `koanf:"progress_path"`

	DayStartHour int           `koanf:"day_start_hour" validate:"gte=0,lte=23"`
	BusyTimeout  time.Duration `koanf:"busy_timeout" validate:"gte=0"`

	RetentionEnabled bool `koanf:"retention_enabled"`
	RetentionDays    int  `koanf:"retention_days" validate:"gte=0"`

	TrendWindowDays   int     `koanf:"trend_window_days" validate:"gte=1"`
	AnomalyZThreshold float64 `koanf:"anomaly_z_threshold" validate:"gt=0"`

	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFile  string `koanf:"log_file"`
}

// StoreConfig is the subset of configuration every storage constructor takes.
// There is no process-wide default path; callers always pass one of these.
type StoreConfig struct {
	DBPath           string
	ProgressPath     string
	BusyTimeout      time.Duration
	DayStartHour     int
	RetentionEnabled bool
	RetentionDays    int
}

// DefaultDataDir returns the default data directory (~/.drillbook).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".drillbook")
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DataDir:           DefaultDataDir(),
		DayStartHour:      4,
		BusyTimeout:       5 * time.Second,
		RetentionDays:     90,
		TrendWindowDays:   30,
		AnomalyZThreshold: 2.0,
		LogLevel:          "info",
	}
}

// RegisterFlags adds the configuration flags to fs. Flag names use dashes;
// they map onto the underscore keys used by the file and environment layers.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "Path to a YAML config file")
	fs.String("data-dir", d.DataDir, "Directory holding the database and progress file")
	fs.String("db-path", "", "Path to the SQLite database (default <data-dir>/drillbook.db)")
	fs.String("progress-path", "", "Path to the legacy JSON progress file (default <data-dir>/progress.json)")
	fs.Int("day-start-hour", d.DayStartHour, "Hour at which a new logical day begins")
	fs.Duration("busy-timeout", d.BusyTimeout, "How long a write waits for a competing writer")
	fs.Bool("retention-enabled", false, "Allow the retention sweep to delete old log rows")
	fs.Int("retention-days", d.RetentionDays, "Retention window for append-only log tables")
	fs.Int("trend-window-days", d.TrendWindowDays, "Days of history the trend analysis looks at")
	fs.Float64("anomaly-z-threshold", d.AnomalyZThreshold, "Z-score beyond which a day is reported as unusual")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-file", "", "Also write logs to this rotating file")
}

// Load builds the configuration from defaults, an optional YAML file,
// DRILLBOOK_* environment variables and finally command-line flags.
// fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path == "" && fs != nil {
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		p := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.fillPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillPaths derives the database and progress paths from DataDir when unset.
func (c *Config) fillPaths() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "drillbook.db")
	}
	if c.ProgressPath == "" {
		c.ProgressPath = filepath.Join(c.DataDir, "progress.json")
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Store returns the storage configuration.
func (c *Config) Store() StoreConfig {
	c.fillPaths()
	return StoreConfig{
		DBPath:           c.DBPath,
		ProgressPath:     c.ProgressPath,
		BusyTimeout:      c.BusyTimeout,
		DayStartHour:     c.DayStartHour,
		RetentionEnabled: c.RetentionEnabled,
		RetentionDays:    c.RetentionDays,
	}
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
