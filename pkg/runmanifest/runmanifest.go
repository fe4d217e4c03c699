package runmanifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/offlinefirst/eventtracker/pkg/config"
)

// SchemaVersion captures the manifest version for compatibility checks.
const SchemaVersion = 1

// Layout represents the absolute filesystem locations for a run.
type Layout struct {
	Root         string
	ManifestPath string
	ReportPath   string
}

// Paths holds the relative locations stored in the manifest for portability.
type Paths struct {
	Root     string `json:"root"`
	Manifest string `json:"manifest"`
	Report   string `json:"report"`
}

// CaptureSettings records how the feeds were configured for the run.
type CaptureSettings struct {
	SensorDriver       string `json:"sensor_driver"`
	SensorInterval     string `json:"sensor_interval"`
	InteractionEnabled bool   `json:"interaction_enabled"`
	ScriptedTaps       int    `json:"scripted_taps"`
	Duration           string `json:"duration"`
}

// Status summarises the lifecycle of a capture run.
type Status struct {
	State       string         `json:"state"`
	Summary     string         `json:"summary,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	EndedAt     *time.Time     `json:"ended_at,omitempty"`
	Termination string         `json:"termination,omitempty"`
	Records     int            `json:"records"`
	Counts      map[string]int `json:"counts,omitempty"`
	Feeds       []FeedStatus   `json:"feeds,omitempty"`
}

// FeedStatus captures availability details for a feed.
type FeedStatus struct {
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	Available bool   `json:"available"`
	Provider  string `json:"provider,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Run states used in manifests for downstream tooling.
const (
	StatePending   = "pending"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Manifest is the durable metadata describing a capture run.
type Manifest struct {
	SchemaVersion int             `json:"schema_version"`
	RunID         string          `json:"run_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Hostname      string          `json:"hostname"`
	AppVersion    string          `json:"app_version"`
	ConfigSource  string          `json:"config_source"`
	Capture       CaptureSettings `json:"capture"`
	Paths         Paths           `json:"paths"`
	Status        Status          `json:"status"`
}

// Options captures the knobs for creating a new manifest.
type Options struct {
	RunID      string
	CreatedAt  time.Time
	Hostname   string
	AppVersion string
	Config     config.Config
	Layout     Layout
}

// New constructs a manifest using the supplied options.
func New(opts Options) Manifest {
	return Manifest{
		SchemaVersion: SchemaVersion,
		RunID:         opts.RunID,
		CreatedAt:     opts.CreatedAt.UTC(),
		Hostname:      opts.Hostname,
		AppVersion:    opts.AppVersion,
		ConfigSource:  opts.Config.Source,
		Capture: CaptureSettings{
			SensorDriver:       opts.Config.Sensor.Driver,
			SensorInterval:     opts.Config.Sensor.Interval.String(),
			InteractionEnabled: opts.Config.Interaction.Enabled,
			ScriptedTaps:       len(opts.Config.Interaction.Taps),
			Duration:           opts.Config.Run.Duration.String(),
		},
		Paths:  opts.Layout.RelativePaths(),
		Status: Status{State: StatePending},
	}
}

// BuildLayout creates an absolute filesystem layout for a run.
func BuildLayout(runsDir, runID string) Layout {
	root := filepath.Join(runsDir, runID)
	return Layout{
		Root:         root,
		ManifestPath: filepath.Join(root, "manifest.json"),
		ReportPath:   filepath.Join(root, "report.csv"),
	}
}

// RelativePaths exposes the manifest-friendly relative paths for the layout.
func (l Layout) RelativePaths() Paths {
	return Paths{
		Root:     ".",
		Manifest: filepath.Base(l.ManifestPath),
		Report:   filepath.Base(l.ReportPath),
	}
}

// EnsureFilesystem prepares the directory for a run layout.
func EnsureFilesystem(layout Layout) error {
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return fmt.Errorf("create run root: %w", err)
	}
	return nil
}

// Save writes the manifest JSON to disk with indentation for readability.
func Save(man Manifest, path string) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest JSON file from disk.
func Load(path string) (Manifest, error) {
	var man Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("decode manifest: %w", err)
	}
	return man, nil
}

// ResolveRunID chooses a run identifier derived from the timestamp and avoids collisions.
func ResolveRunID(runsDir string, now time.Time) (string, error) {
	if strings.TrimSpace(runsDir) == "" {
		return "", errors.New("runs directory must not be empty")
	}

	base := now.UTC().Format("20060102_150405")
	candidate := base
	suffix := 1
	for {
		_, err := os.Stat(filepath.Join(runsDir, candidate))
		if err == nil {
			candidate = fmt.Sprintf("%s_%02d", base, suffix)
			suffix++
			continue
		}
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		return "", fmt.Errorf("inspect runs directory: %w", err)
	}
}
