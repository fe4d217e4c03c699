package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/offlinefirst/eventtracker/internal/buildinfo"
	"github.com/offlinefirst/eventtracker/pkg/config"
	"github.com/offlinefirst/eventtracker/pkg/logging"
)

type command struct {
	name        string
	description string
	configure   func(fs *pflag.FlagSet)
	run         func(fs *pflag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error
	skipInit    bool
}

// AppContext exposes lazily initialised configuration and logging facilities.
type AppContext struct {
	Config config.Config
	Logger *slog.Logger
}

type RootCommand struct {
	commands map[string]command
	stdout   io.Writer
	stderr   io.Writer
	appCtx   *AppContext
	globals  globalOptions
}

// globalOptions holds the values of flags accepted before the command name.
type globalOptions struct {
	configPath   string
	logLevel     string
	logFormat    string
	sensorDriver string
}

// NewRootCommand constructs the CLI dispatcher with its subcommands and flag handling.
func NewRootCommand() *RootCommand {
	rc := &RootCommand{
		commands: make(map[string]command),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}

	rc.register(newRunCommand())
	rc.register(newDoctorCommand())
	rc.register(newVersionCommand())

	return rc
}

func (rc *RootCommand) register(cmd command) {
	rc.commands[cmd.name] = cmd
}

func globalFlags(opts *globalOptions, output io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("tracker", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.SetInterspersed(false)
	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: ./config.yaml if present)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "log-format", "", "Override log output format (json, console)")
	fs.StringVar(&opts.sensorDriver, "sensor", "", "Override sensor.driver (synthetic, adxl345, none)")
	return fs
}

// Execute evaluates the supplied arguments, parses global flags, and dispatches to a subcommand.
func (rc *RootCommand) Execute(args []string) error {
	rootFlags := globalFlags(&rc.globals, rc.stderr)
	rootFlags.Usage = func() { rc.printHelp() }

	if err := rootFlags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	remaining := rootFlags.Args()
	if len(remaining) == 0 {
		rc.printHelp()
		return nil
	}

	subcommand, ok := rc.commands[remaining[0]]
	if !ok {
		fmt.Fprintf(rc.stderr, "Unknown command %q\n\n", remaining[0])
		rc.printHelp()
		return fmt.Errorf("unknown command")
	}

	fs := pflag.NewFlagSet(subcommand.name, pflag.ContinueOnError)
	fs.SetOutput(rc.stderr)
	fs.Usage = func() {
		fmt.Fprintf(rc.stdout, "Usage: tracker %s [flags]\n", subcommand.name)
		if subcommand.description != "" {
			fmt.Fprintln(rc.stdout, subcommand.description)
		}
		fs.SetOutput(rc.stdout)
		fs.PrintDefaults()
	}

	if subcommand.configure != nil {
		subcommand.configure(fs)
	}

	if err := fs.Parse(remaining[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var ctx *AppContext
	var err error
	if !subcommand.skipInit {
		if ctx, err = rc.ensureAppContext(); err != nil {
			fmt.Fprintf(rc.stderr, "error: %v\n", err)
			return err
		}
	}

	if err := subcommand.run(fs, fs.Args(), ctx, rc.stdout, rc.stderr); err != nil {
		fmt.Fprintf(rc.stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func (rc *RootCommand) ensureAppContext() (*AppContext, error) {
	if rc.appCtx != nil {
		return rc.appCtx, nil
	}

	cfg, err := config.Load(rc.globals.configPath)
	if err != nil {
		return nil, err
	}

	if err := rc.applyOverrides(&cfg); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: rc.stderr,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("configuration loaded", "source", cfg.Source, "runs_dir", cfg.Paths.RunsDir)
	logger.Debug("feeds configured",
		slog.Group("accelerometer", "driver", cfg.Sensor.Driver, "interval", cfg.Sensor.Interval),
		slog.Group("touch", "enabled", cfg.Interaction.Enabled, "surface", cfg.Interaction.Surface, "scripted_taps", len(cfg.Interaction.Taps)),
	)

	rc.appCtx = &AppContext{Config: cfg, Logger: logger}
	return rc.appCtx, nil
}

// applyOverrides folds global flag values into cfg and revalidates it.
func (rc *RootCommand) applyOverrides(cfg *config.Config) error {
	if rc.globals.logLevel != "" {
		lvl, err := config.NormalizeLogLevel(rc.globals.logLevel)
		if err != nil {
			return err
		}
		cfg.Logging.Level = lvl
	}
	if rc.globals.logFormat != "" {
		format, err := config.NormalizeFormat(rc.globals.logFormat)
		if err != nil {
			return err
		}
		cfg.Logging.Format = format
	}
	if rc.globals.sensorDriver != "" {
		cfg.Sensor.Driver = strings.ToLower(strings.TrimSpace(rc.globals.sensorDriver))
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("--sensor: %w", err)
		}
	}
	return nil
}

func (rc *RootCommand) printHelp() {
	fmt.Fprintf(rc.stdout, "tracker - accelerometer and touch telemetry collector\nVersion: %s\n\n", versionString())
	fmt.Fprintln(rc.stdout, "Usage: tracker [global flags] <command> [command flags]")
	fmt.Fprintln(rc.stdout, "")
	fmt.Fprintln(rc.stdout, "Each run captures two feeds into one report:")
	fmt.Fprintln(rc.stdout, "  accelerometer  polled every sensor.interval from sensor.driver")
	fmt.Fprintln(rc.stdout, "  touch          taps on interaction.surface, replayed from interaction.taps")
	fmt.Fprintln(rc.stdout, "")
	fmt.Fprintln(rc.stdout, "Global flags:")
	fmt.Fprint(rc.stdout, globalFlags(&globalOptions{}, io.Discard).FlagUsages())
	fmt.Fprintln(rc.stdout, "")
	fmt.Fprintln(rc.stdout, "Available commands:")

	names := make([]string, 0, len(rc.commands))
	for name := range rc.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(rc.stdout, "  %-10s %s\n", name, rc.commands[name].description)
	}
}

func versionString() string {
	return fmt.Sprintf("%s (%s/%s)", buildinfo.Version(), runtimeVersion(), runtimeGOOS())
}

// runtimeVersion is extracted for testability.
var runtimeVersion = func() string { return runtime.Version() }

// runtimeGOOS is extracted for testability.
var runtimeGOOS = func() string { return runtime.GOOS }
