// Package config loads and validates the aveactl YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Bulb       BulbConfig       `yaml:"bulb"`
	Transition TransitionConfig `yaml:"transition"`
	LogLevel   string           `yaml:"log_level"`
}

// BulbConfig identifies the bulb and bounds the BLE timing around it.
type BulbConfig struct {
	// Address is the bulb's BLE address: a MAC on Linux, a CoreBluetooth
	// UUID on macOS. Empty means commands must pick a bulb via scan.
	Address      string   `yaml:"address"`
	ScanTimeout  Duration `yaml:"scan_timeout"`
	ReplyTimeout Duration `yaml:"reply_timeout"`
	// SettleDelay is the pause between the last write and a query, so the
	// bulb does not answer with the value it is still moving away from.
	SettleDelay Duration `yaml:"settle_delay"`
}

// TransitionConfig holds the defaults for smooth color fades.
type TransitionConfig struct {
	Duration       Duration `yaml:"duration"`
	StepsPerSecond int      `yaml:"steps_per_second"`
}

// Duration wraps time.Duration so YAML configs can say "500ms" or "4s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "aveactl")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bulb: BulbConfig{
			ScanTimeout:  Duration(4 * time.Second),
			ReplyTimeout: Duration(time.Second),
			SettleDelay:  Duration(500 * time.Millisecond),
		},
		Transition: TransitionConfig{
			Duration:       Duration(5 * time.Second),
			StepsPerSecond: 10,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Bulb.ScanTimeout <= 0 {
		return fmt.Errorf("bulb.scan_timeout must be > 0")
	}

	if c.Bulb.ReplyTimeout <= 0 {
		return fmt.Errorf("bulb.reply_timeout must be > 0")
	}

	if c.Bulb.SettleDelay < 0 {
		return fmt.Errorf("bulb.settle_delay must not be negative")
	}

	if c.Transition.Duration <= 0 {
		return fmt.Errorf("transition.duration must be > 0")
	}

	if c.Transition.StepsPerSecond <= 0 {
		return fmt.Errorf("transition.steps_per_second must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// WriteDefault writes a commented default config to the default path if no
// config exists yet. It returns the written path, or "" when a config was
// already present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(DefaultConfigDir(), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	cfg := Default()
	content := fmt.Sprintf(`# aveactl configuration
bulb:
  # BLE address of the bulb (MAC on Linux, CoreBluetooth UUID on macOS).
  # Leave empty to pick the first bulb found by a scan.
  address: %q
  scan_timeout: %s
  reply_timeout: %s
  settle_delay: %s
transition:
  duration: %s
  steps_per_second: %d
log_level: %s
`,
		cfg.Bulb.Address,
		cfg.Bulb.ScanTimeout,
		cfg.Bulb.ReplyTimeout,
		cfg.Bulb.SettleDelay,
		cfg.Transition.Duration,
		cfg.Transition.StepsPerSecond,
		cfg.LogLevel,
	)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}

// ParseLogLevel maps a config log level string to a slog.Level, defaulting
// to info for unknown values.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
