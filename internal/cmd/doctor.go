package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/offlinefirst/eventtracker/pkg/sensor"
)

func newDoctorCommand() command {
	return command{
		name:        "doctor",
		description: "Report which telemetry feeds are available on this host",
		run:         runDoctor,
	}
}

func runDoctor(fs *pflag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}

	driver, err := newDriver(ctx.Config.Sensor.Driver, sensor.DriverOptions{
		I2CBus:     ctx.Config.Sensor.I2CBus,
		I2CAddress: ctx.Config.Sensor.I2CAddress,
		Clock:      timeNow,
	})
	if err != nil {
		return fmt.Errorf("select sensor driver: %w", err)
	}

	env := sensor.DetectEnvironment(driver)
	ctx.Logger.Info("sensor environment detected", "provider", env.Provider, "available", env.Available)

	fmt.Fprintf(stdout, "accelerometer: provider=%s available=%t (%s)\n", env.Provider, env.Available, env.Message)
	if ctx.Config.Interaction.Enabled {
		fmt.Fprintf(stdout, "touch: surface=%s available=true (in-process window, %d scripted taps)\n", ctx.Config.Interaction.Surface, len(ctx.Config.Interaction.Taps))
	} else {
		fmt.Fprintln(stdout, "touch: available=false (disabled via config)")
	}
	return nil
}
