package sensor

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/offlinefirst/eventtracker/pkg/logging"
	"github.com/offlinefirst/eventtracker/pkg/telemetry"
)

// FeedOptions controls the accelerometer feed.
type FeedOptions struct {
	Driver   Driver
	Sink     telemetry.Appender
	Interval time.Duration
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Feed turns driver deliveries into accelerometer records.
type Feed struct {
	driver   Driver
	sink     telemetry.Appender
	interval time.Duration
	clock    func() time.Time
	logger   *slog.Logger

	// lifecycle serializes Start and Stop. mu gates deliveries: handlers hold
	// it shared, Stop takes it exclusively so nothing is appended once Stop
	// returns. active is written with both held.
	lifecycle sync.Mutex
	mu        sync.RWMutex
	active    bool

	delivered atomic.Uint64
	skipped   atomic.Uint64
}

// NewFeed validates options and constructs a feed. A nil driver is accepted
// and behaves like an absent sensor.
func NewFeed(opts FeedOptions) (*Feed, error) {
	if opts.Sink == nil {
		return nil, errors.New("sink must not be nil")
	}
	if opts.Interval < 0 {
		return nil, errors.New("interval must be positive")
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Feed{
		driver:   opts.Driver,
		sink:     opts.Sink,
		interval: interval,
		clock:    clock,
		logger:   logging.Component(opts.Logger, "accelerometer"),
	}, nil
}

// Start subscribes to the driver. It reports false, without error, when the
// sensor is absent or refuses the subscription.
func (f *Feed) Start() bool {
	f.lifecycle.Lock()
	defer f.lifecycle.Unlock()
	if f.active {
		return true
	}
	if f.driver == nil || !f.driver.Available() {
		f.logger.Debug("accelerometer unavailable, feed not started")
		return false
	}
	f.setActive(true)

	if err := f.driver.Subscribe(f.interval, f.handle); err != nil {
		f.setActive(false)
		f.logger.Debug("accelerometer subscription failed, feed not started", "driver", f.driver.Name(), "error", err)
		return false
	}
	f.logger.Debug("accelerometer feed started", "driver", f.driver.Name(), "interval", f.interval)
	return true
}

// Stop unsubscribes from the driver. Deliveries already in progress finish
// before Stop returns; later ones are discarded. A Stop racing a Start waits
// for the subscription to finish and then releases it. Stop is idempotent.
func (f *Feed) Stop() {
	f.lifecycle.Lock()
	defer f.lifecycle.Unlock()
	if !f.active {
		return
	}
	f.setActive(false)
	f.driver.Unsubscribe()
	f.logger.Debug("accelerometer feed stopped", "delivered", f.delivered.Load(), "skipped", f.skipped.Load())
}

// Delivered reports how many samples were turned into records.
func (f *Feed) Delivered() uint64 { return f.delivered.Load() }

// Skipped reports how many ticks were dropped because the driver returned an error.
func (f *Feed) Skipped() uint64 { return f.skipped.Load() }

func (f *Feed) handle(sample Sample, err error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.active {
		return
	}
	if err != nil {
		f.skipped.Add(1)
		f.logger.Debug("accelerometer tick skipped", "error", err)
		return
	}
	f.sink.Append(telemetry.NewAccelerometer(f.clock(), telemetry.Acceleration{
		X:          sample.X,
		Y:          sample.Y,
		Z:          sample.Z,
		SensorTime: sample.Timestamp,
	}))
	f.delivered.Add(1)
}

func (f *Feed) setActive(active bool) {
	f.mu.Lock()
	f.active = active
	f.mu.Unlock()
}
