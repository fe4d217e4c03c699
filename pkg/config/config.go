package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultFileName = "config.yaml"

// Config captures the user-adjustable knobs for the tracker CLI.
type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Interaction InteractionConfig `yaml:"interaction"`
	Run         RunConfig         `yaml:"run"`
	Logging     LoggingConfig     `yaml:"logging"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `yaml:"-"`
}

// PathsConfig controls filesystem locations used by the CLI.
type PathsConfig struct {
	RunsDir string `yaml:"runs_dir"`
}

// SensorConfig selects and tunes the accelerometer driver.
type SensorConfig struct {
	Driver     string        `yaml:"driver"`
	Interval   time.Duration `yaml:"interval"`
	I2CBus     string        `yaml:"i2c_bus"`
	I2CAddress uint16        `yaml:"i2c_address"`
}

// InteractionConfig configures the in-process tap surface.
type InteractionConfig struct {
	Enabled bool        `yaml:"enabled"`
	Surface string      `yaml:"surface"`
	Taps    []TapConfig `yaml:"taps"`
}

// TapConfig is one scripted tap, delivered After the session starts.
type TapConfig struct {
	After time.Duration `yaml:"after"`
	X     float64       `yaml:"x"`
	Y     float64       `yaml:"y"`
}

// RunConfig bounds a CLI capture session.
type RunConfig struct {
	Duration time.Duration `yaml:"duration"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			RunsDir: "runs",
		},
		Sensor: SensorConfig{
			Driver:     "synthetic",
			Interval:   200 * time.Millisecond,
			I2CBus:     "",
			I2CAddress: 0x53,
		},
		Interaction: InteractionConfig{
			Enabled: true,
			Surface: "main",
		},
		Run: RunConfig{
			Duration: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./config.yaml but tolerates a missing file.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	file, err := os.Open(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if explicit {
				return cfg, fmt.Errorf("config file %q not found", candidate)
			}
			return cfg, nil
		}
		return cfg, fmt.Errorf("open config file %q: %w", candidate, err)
	}
	defer file.Close()

	if err := decodeYAML(file, &cfg); err != nil {
		return cfg, err
	}
	cfg.Source = candidate
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.RunsDir) == "" {
		return errors.New("paths.runs_dir must not be empty")
	}

	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}

	switch c.Sensor.Driver {
	case "synthetic", "adxl345", "none":
	default:
		return fmt.Errorf("sensor.driver: unsupported driver %q", c.Sensor.Driver)
	}
	if c.Sensor.Interval <= 0 {
		return errors.New("sensor.interval must be positive")
	}
	if c.Run.Duration <= 0 {
		return errors.New("run.duration must be positive")
	}
	for i, tap := range c.Interaction.Taps {
		if tap.After < 0 {
			return fmt.Errorf("interaction.taps[%d].after must not be negative", i)
		}
	}

	return nil
}

func (c *Config) normalize() {
	c.Paths.RunsDir = filepath.Clean(strings.TrimSpace(c.Paths.RunsDir))

	defaults := Default()

	if c.Paths.RunsDir == "." || c.Paths.RunsDir == "" {
		c.Paths.RunsDir = defaults.Paths.RunsDir
	}
	c.Sensor.Driver = strings.ToLower(strings.TrimSpace(c.Sensor.Driver))
	if c.Sensor.Driver == "" {
		c.Sensor.Driver = defaults.Sensor.Driver
	}
	if c.Sensor.Interval == 0 {
		c.Sensor.Interval = defaults.Sensor.Interval
	}
	if c.Sensor.I2CAddress == 0 {
		c.Sensor.I2CAddress = defaults.Sensor.I2CAddress
	}
	if strings.TrimSpace(c.Interaction.Surface) == "" {
		c.Interaction.Surface = defaults.Interaction.Surface
	}
	if c.Run.Duration == 0 {
		c.Run.Duration = defaults.Run.Duration
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
