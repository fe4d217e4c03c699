package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/offlinefirst/eventtracker/internal/buildinfo"
	"github.com/offlinefirst/eventtracker/pkg/config"
	"github.com/offlinefirst/eventtracker/pkg/interaction"
	"github.com/offlinefirst/eventtracker/pkg/runmanifest"
	"github.com/offlinefirst/eventtracker/pkg/sensor"
	"github.com/offlinefirst/eventtracker/pkg/telemetry"
	"github.com/offlinefirst/eventtracker/pkg/tracker"
)

func newRunCommand() command {
	return command{
		name:        "run",
		description: "Capture a telemetry session and write its report",
		configure: func(fs *pflag.FlagSet) {
			fs.Bool("plan-only", false, "Print the resolved configuration without starting capture")
			fs.Bool("stdout", false, "Write the report to stdout instead of the runs directory")
			fs.Duration("duration", 0, "Override run.duration from the config")
		},
		run: runCapture,
	}
}

var (
	timeNow      = time.Now
	hostname     = os.Hostname
	manifestSave = runmanifest.Save
	newDriver    = sensor.NewDriver
)

func runCapture(fs *pflag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}

	planOnly, _ := fs.GetBool("plan-only")
	toStdout, _ := fs.GetBool("stdout")
	duration := ctx.Config.Run.Duration
	if override, _ := fs.GetDuration("duration"); override > 0 {
		duration = override
	}
	ctx.Logger.Info("run command invoked", "plan_only", planOnly, "duration", duration, "config_source", ctx.Config.Source)

	if planOnly {
		printRunPlan(ctx, duration, stdout)
		return nil
	}

	driver, err := newDriver(ctx.Config.Sensor.Driver, sensor.DriverOptions{
		I2CBus:     ctx.Config.Sensor.I2CBus,
		I2CAddress: ctx.Config.Sensor.I2CAddress,
		Clock:      timeNow,
	})
	if err != nil {
		return fmt.Errorf("select sensor driver: %w", err)
	}

	tr, err := tracker.New(tracker.Options{
		Sensor:   driver,
		Interval: ctx.Config.Sensor.Interval,
		Clock:    timeNow,
		Logger:   ctx.Logger,
	})
	if err != nil {
		return fmt.Errorf("initialise tracker: %w", err)
	}
	defer tr.Close()

	var host interaction.Host
	var window *interaction.Window
	if ctx.Config.Interaction.Enabled {
		window = interaction.NewWindow(ctx.Config.Interaction.Surface)
		host = interaction.StaticHost{Surface: window}
	}

	sessionCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sessionCtx, cancel := context.WithTimeout(sessionCtx, duration)
	defer cancel()

	if err := tr.Start(host); err != nil {
		return fmt.Errorf("start tracker: %w", err)
	}

	replayDone := make(chan struct{})
	go func() {
		defer close(replayDone)
		if window == nil || len(ctx.Config.Interaction.Taps) == 0 {
			return
		}
		n, err := interaction.Replay(sessionCtx, window, scriptedTaps(ctx.Config.Interaction.Taps), interaction.ReplayOptions{})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			ctx.Logger.Warn("tap replay stopped", "error", err)
		}
		ctx.Logger.Debug("tap replay finished", "delivered", n)
	}()

	<-sessionCtx.Done()
	termination := "completed"
	if !errors.Is(sessionCtx.Err(), context.DeadlineExceeded) {
		termination = "interrupted"
	}

	result := tr.Flush()
	<-replayDone
	ctx.Logger.Info("session flushed", "session", result.SessionID, "records", result.Records, "termination", termination)

	if toStdout {
		return telemetry.Encode(stdout, result.Events)
	}
	return persistRun(ctx, driver, result, termination, stdout)
}

func persistRun(ctx *AppContext, driver sensor.Driver, result tracker.Result, termination string, stdout io.Writer) error {
	if err := os.MkdirAll(ctx.Config.Paths.RunsDir, 0o755); err != nil {
		return fmt.Errorf("ensure runs directory: %w", err)
	}

	runID, err := runmanifest.ResolveRunID(ctx.Config.Paths.RunsDir, result.StartedAt)
	if err != nil {
		return fmt.Errorf("resolve run id: %w", err)
	}

	layout := runmanifest.BuildLayout(ctx.Config.Paths.RunsDir, runID)
	if err := runmanifest.EnsureFilesystem(layout); err != nil {
		return fmt.Errorf("prepare run filesystem: %w", err)
	}

	host, err := hostname()
	if err != nil {
		host = "unknown"
	}

	manifest := runmanifest.New(runmanifest.Options{
		RunID:      runID,
		CreatedAt:  timeNow(),
		Hostname:   host,
		AppVersion: buildinfo.Version(),
		Config:     ctx.Config,
		Layout:     layout,
	})

	started := result.StartedAt.UTC()
	ended := result.StoppedAt.UTC()
	manifest.Status.SessionID = result.SessionID
	manifest.Status.StartedAt = &started
	manifest.Status.EndedAt = &ended
	manifest.Status.Termination = termination
	manifest.Status.Records = result.Records
	manifest.Status.Counts = make(map[string]int, len(result.Counts))
	for category, count := range result.Counts {
		manifest.Status.Counts[category.String()] = count
	}
	manifest.Status.Feeds = feedStatuses(ctx.Config, driver, result)

	if err := writeReport(layout.ReportPath, result.Events); err != nil {
		manifest.Status.State = runmanifest.StateFailed
		manifest.Status.Summary = err.Error()
		if saveErr := manifestSave(manifest, layout.ManifestPath); saveErr != nil {
			return fmt.Errorf("write report: %v (additionally failed to persist manifest: %w)", err, saveErr)
		}
		return fmt.Errorf("write report: %w", err)
	}

	manifest.Status.State = runmanifest.StateCompleted
	manifest.Status.Summary = fmt.Sprintf("%d records captured (%s)", result.Records, termination)
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	fmt.Fprintf(stdout, "Run directory: %s\n", layout.Root)
	fmt.Fprintf(stdout, "Manifest: %s\n", layout.ManifestPath)
	fmt.Fprintf(stdout, "Report: %s\n", layout.ReportPath)
	fmt.Fprintf(stdout, "Session %s: %d records (termination: %s)\n", result.SessionID, result.Records, termination)

	names := make([]string, 0, len(manifest.Status.Counts))
	for name := range manifest.Status.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(stdout, "  %s: %d\n", name, manifest.Status.Counts[name])
	}
	for _, feed := range manifest.Status.Feeds {
		fmt.Fprintf(stdout, "  - %s: enabled=%t available=%t", feed.Name, feed.Enabled, feed.Available)
		if feed.Provider != "" {
			fmt.Fprintf(stdout, " provider=%s", feed.Provider)
		}
		fmt.Fprintln(stdout)
	}
	return nil
}

func writeReport(path string, records []telemetry.Record) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := telemetry.Encode(file, records); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func feedStatuses(cfg config.Config, driver sensor.Driver, result tracker.Result) []runmanifest.FeedStatus {
	accel := runmanifest.FeedStatus{
		Name:      "accelerometer",
		Enabled:   driver != nil,
		Available: result.SensorAvailable,
		Provider:  cfg.Sensor.Driver,
	}
	if !accel.Available {
		accel.Message = "accelerometer unavailable for this session"
	}
	touch := runmanifest.FeedStatus{
		Name:      "touch",
		Enabled:   cfg.Interaction.Enabled,
		Available: result.TouchAvailable,
		Provider:  cfg.Interaction.Surface,
	}
	if !touch.Available {
		touch.Message = "no foreground surface for this session"
	}
	return []runmanifest.FeedStatus{accel, touch}
}

func scriptedTaps(taps []config.TapConfig) []interaction.ScriptedTap {
	out := make([]interaction.ScriptedTap, 0, len(taps))
	for _, tap := range taps {
		out = append(out, interaction.ScriptedTap{After: tap.After, X: tap.X, Y: tap.Y})
	}
	return out
}

func printRunPlan(ctx *AppContext, duration time.Duration, stdout io.Writer) {
	fmt.Fprintf(stdout, "Resolved configuration (source: %s)\n", ctx.Config.Source)
	fmt.Fprintf(stdout, "  runs_dir: %s\n", ctx.Config.Paths.RunsDir)
	fmt.Fprintf(stdout, "  sensor.driver: %s\n", ctx.Config.Sensor.Driver)
	fmt.Fprintf(stdout, "  sensor.interval: %s\n", ctx.Config.Sensor.Interval)
	fmt.Fprintf(stdout, "  interaction.enabled: %t\n", ctx.Config.Interaction.Enabled)
	fmt.Fprintf(stdout, "  interaction.taps: %d\n", len(ctx.Config.Interaction.Taps))
	fmt.Fprintf(stdout, "  run.duration: %s\n", duration)
	fmt.Fprintf(stdout, "  logging.level: %s\n", ctx.Config.Logging.Level)
	fmt.Fprintf(stdout, "  logging.format: %s\n", ctx.Config.Logging.Format)
}
