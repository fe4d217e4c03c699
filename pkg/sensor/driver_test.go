package sensor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestNewDriver(t *testing.T) {
	driver, err := NewDriver("synthetic", DriverOptions{})
	require.NoError(t, err)
	assert.Equal(t, DriverSynthetic, driver.Name())

	driver, err = NewDriver("ADXL345", DriverOptions{I2CBus: "1"})
	require.NoError(t, err)
	assert.Equal(t, DriverADXL345, driver.Name())

	driver, err = NewDriver("none", DriverOptions{})
	require.NoError(t, err)
	assert.Nil(t, driver)

	_, err = NewDriver("gyroscope", DriverOptions{})
	require.Error(t, err)
}

func TestSyntheticUnsubscribeStopsDelivery(t *testing.T) {
	driver := NewSynthetic(nil)
	var count atomic.Int64
	require.NoError(t, driver.Subscribe(time.Millisecond, func(s Sample, err error) {
		assert.NoError(t, err)
		assert.Equal(t, 1.0, s.Z)
		count.Add(1)
	}))
	require.ErrorIs(t, driver.Subscribe(time.Millisecond, func(Sample, error) {}), ErrAlreadySubscribed)

	require.Eventually(t, func() bool { return count.Load() > 2 }, time.Second, time.Millisecond)
	driver.Unsubscribe()

	after := count.Load()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, after, count.Load())

	driver.Unsubscribe()
}

func TestSyntheticDisabled(t *testing.T) {
	driver := NewSynthetic(nil)
	driver.Disabled = true
	assert.False(t, driver.Available())
	assert.ErrorIs(t, driver.Subscribe(time.Millisecond, func(Sample, error) {}), ErrUnavailable)
}

func TestADXL345Probe(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: DefaultADXL345Address, W: []byte{adxlRegDevID}, R: []byte{adxlDeviceID}},
	}}
	require.NoError(t, probeADXL345(&i2c.Dev{Bus: bus, Addr: DefaultADXL345Address}))
	require.NoError(t, bus.Close())

	wrong := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: DefaultADXL345Address, W: []byte{adxlRegDevID}, R: []byte{0x42}},
	}}
	err := probeADXL345(&i2c.Dev{Bus: wrong, Addr: DefaultADXL345Address})
	require.ErrorIs(t, err, ErrUnavailable)
	require.NoError(t, wrong.Close())
}

func TestADXL345ConfigureAndRead(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: DefaultADXL345Address, W: []byte{adxlRegDataFormat, adxlFullRes16g}},
		{Addr: DefaultADXL345Address, W: []byte{adxlRegPowerCtl, adxlMeasure}},
		// x = +10, y = -10, z = +256 counts.
		{Addr: DefaultADXL345Address, W: []byte{adxlRegDataX0}, R: []byte{0x0A, 0x00, 0xF6, 0xFF, 0x00, 0x01}},
	}}
	dev := &i2c.Dev{Bus: bus, Addr: DefaultADXL345Address}

	require.NoError(t, configureADXL345(dev))
	sample, err := readADXL345(dev)
	require.NoError(t, err)
	assert.InDelta(t, 0.039, sample.X, 1e-9)
	assert.InDelta(t, -0.039, sample.Y, 1e-9)
	assert.InDelta(t, 0.9984, sample.Z, 1e-9)
	require.NoError(t, bus.Close())
}

func TestADXL345AvailableUsesInjectedBus(t *testing.T) {
	driver := NewADXL345("", 0, nil)
	driver.OpenBus = func(string) (i2c.BusCloser, error) {
		return &i2ctest.Playback{Ops: []i2ctest.IO{
			{Addr: DefaultADXL345Address, W: []byte{adxlRegDevID}, R: []byte{adxlDeviceID}},
		}}, nil
	}
	assert.True(t, driver.Available())

	env := DetectEnvironment(driver)
	assert.True(t, env.Available)
	assert.Equal(t, DriverADXL345, env.Provider)
}

// trackedBus records whether the driver closed the playback bus.
type trackedBus struct {
	*i2ctest.Playback
	mu     sync.Mutex
	closed int
}

func (b *trackedBus) Close() error {
	b.mu.Lock()
	b.closed++
	b.mu.Unlock()
	return nil
}

func (b *trackedBus) closeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func adxlOp(w []byte, r []byte) i2ctest.IO {
	return i2ctest.IO{Addr: DefaultADXL345Address, W: w, R: r}
}

func TestADXL345SubscribeLifecycle(t *testing.T) {
	// 1g on Z, then 2g on Z.
	playback := &i2ctest.Playback{DontPanic: true, Ops: []i2ctest.IO{
		adxlOp([]byte{adxlRegDevID}, []byte{adxlDeviceID}),
		adxlOp([]byte{adxlRegDataFormat, adxlFullRes16g}, nil),
		adxlOp([]byte{adxlRegPowerCtl, adxlMeasure}, nil),
		adxlOp([]byte{adxlRegDataX0}, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}),
		adxlOp([]byte{adxlRegDataX0}, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}),
		adxlOp([]byte{adxlRegPowerCtl, adxlStandby}, nil),
	}}
	bus := &trackedBus{Playback: playback}
	opened := 0

	sampleTime := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	driver := NewADXL345("1", 0, func() time.Time { return sampleTime })
	driver.OpenBus = func(name string) (i2c.BusCloser, error) {
		assert.Equal(t, "1", name)
		opened++
		return bus, nil
	}

	var (
		mu      sync.Mutex
		samples []Sample
		calls   atomic.Int64
	)
	require.NoError(t, driver.Subscribe(time.Millisecond, func(s Sample, err error) {
		calls.Add(1)
		if err != nil {
			// Ticks past the scripted reads hit the standby op and fail.
			return
		}
		mu.Lock()
		samples = append(samples, s)
		mu.Unlock()
	}))
	require.ErrorIs(t, driver.Subscribe(time.Millisecond, func(Sample, error) {}), ErrAlreadySubscribed)
	assert.Equal(t, 1, opened, "a rejected subscription must not open the bus")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(samples) >= 2
	}, time.Second, time.Millisecond)

	driver.Unsubscribe()
	assert.Equal(t, 1, bus.closeCount())
	require.NoError(t, playback.Close(), "probe, configure, reads and standby must all be consumed")

	after := calls.Load()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no delivery after Unsubscribe returns")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, samples, 2)
	assert.InDelta(t, 0.9984, samples[0].Z, 1e-9)
	assert.InDelta(t, 1.9968, samples[1].Z, 1e-9)
	assert.Equal(t, sampleTime, samples[0].Timestamp)

	driver.Unsubscribe()
	assert.Equal(t, 1, bus.closeCount(), "second Unsubscribe is a no-op")
}

func TestADXL345SubscribeClosesBusOnSetupFailure(t *testing.T) {
	cases := map[string][]i2ctest.IO{
		"wrong device id": {
			adxlOp([]byte{adxlRegDevID}, []byte{0x42}),
		},
		"configure rejected": {
			adxlOp([]byte{adxlRegDevID}, []byte{adxlDeviceID}),
			// The driver writes full resolution; the device expects something else.
			adxlOp([]byte{adxlRegDataFormat, 0x00}, nil),
		},
	}
	for name, ops := range cases {
		t.Run(name, func(t *testing.T) {
			bus := &trackedBus{Playback: &i2ctest.Playback{DontPanic: true, Ops: ops}}
			driver := NewADXL345("", 0, nil)
			driver.OpenBus = func(string) (i2c.BusCloser, error) { return bus, nil }

			err := driver.Subscribe(time.Millisecond, func(Sample, error) {
				t.Error("no delivery expected after a failed subscription")
			})
			require.Error(t, err)
			assert.Equal(t, 1, bus.closeCount())

			// The driver is left unsubscribed, so Unsubscribe must not touch the bus.
			driver.Unsubscribe()
			assert.Equal(t, 1, bus.closeCount())
		})
	}
}

func TestDetectEnvironmentWithoutDriver(t *testing.T) {
	env := DetectEnvironment(nil)
	assert.False(t, env.Available)
	assert.Equal(t, DriverNone, env.Provider)
}
