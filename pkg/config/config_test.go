package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	defer os.Chdir(cwd)

	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir temp dir: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.RunsDir != "runs" {
		t.Fatalf("expected default runs dir, got %q", cfg.Paths.RunsDir)
	}
	if cfg.Source != "<defaults>" {
		t.Fatalf("expected default source marker, got %q", cfg.Source)
	}
	if cfg.Sensor.Interval != 200*time.Millisecond {
		t.Fatalf("unexpected default sensor interval: %s", cfg.Sensor.Interval)
	}
	if cfg.Sensor.Driver != "synthetic" {
		t.Fatalf("unexpected default sensor driver: %q", cfg.Sensor.Driver)
	}
	if !cfg.Interaction.Enabled {
		t.Fatalf("expected interaction capture enabled by default")
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := `paths:
  runs_dir: artifacts
sensor:
  driver: ADXL345
  interval: 100ms
  i2c_bus: "1"
  i2c_address: 0x1d
interaction:
  enabled: false
  surface: kiosk
  taps:
    - after: 500ms
      x: 10
      y: 20
    - after: 1s
      x: 142.5
      y: 311
run:
  duration: 30s
logging:
  level: DEBUG
  format: console
`

	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got := cfg.Paths.RunsDir; got != "artifacts" {
		t.Fatalf("unexpected runs dir: %q", got)
	}
	if cfg.Sensor.Driver != "adxl345" {
		t.Fatalf("unexpected sensor driver: %q", cfg.Sensor.Driver)
	}
	if cfg.Sensor.Interval != 100*time.Millisecond {
		t.Fatalf("unexpected sensor interval: %s", cfg.Sensor.Interval)
	}
	if cfg.Sensor.I2CBus != "1" {
		t.Fatalf("unexpected i2c bus: %q", cfg.Sensor.I2CBus)
	}
	if cfg.Sensor.I2CAddress != 0x1d {
		t.Fatalf("unexpected i2c address: %#x", cfg.Sensor.I2CAddress)
	}
	if cfg.Interaction.Enabled {
		t.Fatalf("expected interaction capture disabled")
	}
	if cfg.Interaction.Surface != "kiosk" {
		t.Fatalf("unexpected surface: %q", cfg.Interaction.Surface)
	}
	if got := len(cfg.Interaction.Taps); got != 2 {
		t.Fatalf("expected two scripted taps, got %d", got)
	}
	if tap := cfg.Interaction.Taps[1]; tap.After != time.Second || tap.X != 142.5 || tap.Y != 311 {
		t.Fatalf("unexpected second tap: %+v", tap)
	}
	if cfg.Run.Duration != 30*time.Second {
		t.Fatalf("unexpected run duration: %s", cfg.Run.Duration)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.Source != cfgPath {
		t.Fatalf("expected source to equal path, got %q", cfg.Source)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("logging:\n  format: text\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default level, got %q", cfg.Logging.Level)
	}
	if cfg.Sensor.Driver != "synthetic" {
		t.Fatalf("expected default driver, got %q", cfg.Sensor.Driver)
	}
	if cfg.Run.Duration != 5*time.Second {
		t.Fatalf("expected default duration, got %s", cfg.Run.Duration)
	}
}

func TestUnknownKeyReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := "sensor:\n  unsupported: true\n"

	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error for unsupported key")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":   func(c *Config) { c.Sensor.Driver = "gyro" },
		"interval": func(c *Config) { c.Sensor.Interval = -time.Second },
		"duration": func(c *Config) { c.Run.Duration = 0 },
		"tap":      func(c *Config) { c.Interaction.Taps = []TapConfig{{After: -time.Second}} },
		"level":    func(c *Config) { c.Logging.Level = "verbose" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestExplicitMissingFileIsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}
