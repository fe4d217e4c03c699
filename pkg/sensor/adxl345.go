package sensor

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultADXL345Address is the I2C address with the ALT pin pulled low.
const DefaultADXL345Address uint16 = 0x53

const (
	adxlRegDevID      = 0x00
	adxlRegPowerCtl   = 0x2D
	adxlRegDataFormat = 0x31
	adxlRegDataX0     = 0x32

	adxlDeviceID   = 0xE5
	adxlMeasure    = 0x08
	adxlStandby    = 0x00
	adxlFullRes16g = 0x0B

	// Full resolution mode is a constant 3.9 mg/LSB at every range.
	adxlScale = 0.0039
)

// ADXL345 reads an Analog Devices ADXL345 accelerometer over I2C.
type ADXL345 struct {
	busName string
	address uint16
	clock   func() time.Time

	// OpenBus overrides how the bus is opened; tests use it to inject an
	// i2ctest bus. When nil the periph host drivers are initialised and the
	// bus is looked up in the i2c registry.
	OpenBus func(name string) (i2c.BusCloser, error)

	mu     sync.Mutex
	bus    i2c.BusCloser
	dev    *i2c.Dev
	poller poller
}

// NewADXL345 returns a driver for the device at address on the named bus. An
// empty bus name selects the first registered bus.
func NewADXL345(busName string, address uint16, clock func() time.Time) *ADXL345 {
	if address == 0 {
		address = DefaultADXL345Address
	}
	if clock == nil {
		clock = time.Now
	}
	return &ADXL345{busName: busName, address: address, clock: clock}
}

// Name implements Driver.
func (a *ADXL345) Name() string { return DriverADXL345 }

// Available reports whether the device answers with the expected ID.
func (a *ADXL345) Available() bool {
	bus, err := a.openBus()
	if err != nil {
		return false
	}
	defer bus.Close()
	return probeADXL345(&i2c.Dev{Bus: bus, Addr: a.address}) == nil
}

// Subscribe puts the device into measurement mode and starts polling it.
func (a *ADXL345) Subscribe(interval time.Duration, deliver func(Sample, error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bus != nil {
		return ErrAlreadySubscribed
	}

	bus, err := a.openBus()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	dev := &i2c.Dev{Bus: bus, Addr: a.address}
	if err := probeADXL345(dev); err != nil {
		bus.Close()
		return err
	}
	if err := configureADXL345(dev); err != nil {
		bus.Close()
		return err
	}

	read := func() (Sample, error) {
		sample, err := readADXL345(dev)
		sample.Timestamp = a.clock()
		return sample, err
	}
	if err := a.poller.start(interval, read, deliver); err != nil {
		bus.Close()
		return err
	}
	a.bus = bus
	a.dev = dev
	return nil
}

// Unsubscribe stops polling, returns the device to standby and releases the bus.
func (a *ADXL345) Unsubscribe() {
	a.poller.stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bus == nil {
		return
	}
	_, _ = a.dev.Write([]byte{adxlRegPowerCtl, adxlStandby})
	_ = a.bus.Close()
	a.bus = nil
	a.dev = nil
}

func (a *ADXL345) openBus() (i2c.BusCloser, error) {
	if a.OpenBus != nil {
		return a.OpenBus(a.busName)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialise host drivers: %w", err)
	}
	bus, err := i2creg.Open(a.busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", a.busName, err)
	}
	return bus, nil
}

func probeADXL345(dev *i2c.Dev) error {
	id := make([]byte, 1)
	if err := dev.Tx([]byte{adxlRegDevID}, id); err != nil {
		return fmt.Errorf("%w: read device id: %v", ErrUnavailable, err)
	}
	if id[0] != adxlDeviceID {
		return fmt.Errorf("%w: unexpected device id 0x%02x", ErrUnavailable, id[0])
	}
	return nil
}

func configureADXL345(dev *i2c.Dev) error {
	if _, err := dev.Write([]byte{adxlRegDataFormat, adxlFullRes16g}); err != nil {
		return fmt.Errorf("set data format: %w", err)
	}
	if _, err := dev.Write([]byte{adxlRegPowerCtl, adxlMeasure}); err != nil {
		return fmt.Errorf("enable measurement: %w", err)
	}
	return nil
}

func readADXL345(dev *i2c.Dev) (Sample, error) {
	raw := make([]byte, 6)
	if err := dev.Tx([]byte{adxlRegDataX0}, raw); err != nil {
		return Sample{}, fmt.Errorf("read axes: %w", err)
	}
	return Sample{
		X: float64(int16(binary.LittleEndian.Uint16(raw[0:2]))) * adxlScale,
		Y: float64(int16(binary.LittleEndian.Uint16(raw[2:4]))) * adxlScale,
		Z: float64(int16(binary.LittleEndian.Uint16(raw[4:6]))) * adxlScale,
	}, nil
}
