package sensor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultInterval is the accelerometer delivery cadence (5 samples per second).
const DefaultInterval = 200 * time.Millisecond

// Driver names accepted by NewDriver.
const (
	DriverSynthetic = "synthetic"
	DriverADXL345   = "adxl345"
	DriverNone      = "none"
)

var (
	// ErrUnavailable indicates the sensor hardware cannot be reached.
	ErrUnavailable = errors.New("accelerometer unavailable")
	// ErrAlreadySubscribed indicates Subscribe was called twice without Unsubscribe.
	ErrAlreadySubscribed = errors.New("accelerometer already subscribed")
)

// Sample is one raw reading delivered by a driver, in units of g.
type Sample struct {
	X, Y, Z   float64
	Timestamp time.Time
}

// Driver is the accelerometer collaborator. Deliveries run on a goroutine
// owned by the driver. Once Unsubscribe returns no delivery is in progress and
// none will start, so deliver must not call Unsubscribe itself.
type Driver interface {
	Name() string
	Available() bool
	Subscribe(interval time.Duration, deliver func(Sample, error)) error
	Unsubscribe()
}

// DriverOptions carries the knobs needed to construct any known driver.
type DriverOptions struct {
	I2CBus     string
	I2CAddress uint16
	Clock      func() time.Time
}

// NewDriver constructs a driver by name. DriverNone yields a nil driver, which
// feeds treat as an absent sensor.
func NewDriver(name string, opts DriverOptions) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DriverSynthetic:
		return NewSynthetic(opts.Clock), nil
	case DriverADXL345:
		return NewADXL345(opts.I2CBus, opts.I2CAddress, opts.Clock), nil
	case DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", name)
	}
}
