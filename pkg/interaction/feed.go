package interaction

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/offlinefirst/eventtracker/pkg/logging"
	"github.com/offlinefirst/eventtracker/pkg/telemetry"
)

// FeedOptions controls the tap feed.
type FeedOptions struct {
	Sink   telemetry.Appender
	Clock  func() time.Time
	Logger *slog.Logger
}

// Feed turns taps on the foreground surface into touch records.
type Feed struct {
	sink   telemetry.Appender
	clock  func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	active  bool
	remove  func()
	surface string

	delivered atomic.Uint64
}

// NewFeed validates options and constructs a feed.
func NewFeed(opts FeedOptions) (*Feed, error) {
	if opts.Sink == nil {
		return nil, errors.New("sink must not be nil")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Feed{sink: opts.Sink, clock: clock, logger: logging.Component(opts.Logger, "touch")}, nil
}

// Start attaches a tap listener to the host's foreground surface. When no
// surface is available it reports false and capture stays off for the
// session; there is no retry.
func (f *Feed) Start(host Host) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		return true
	}
	if host == nil {
		f.logger.Debug("no interaction host, tap feed not started")
		return false
	}
	surface, ok := host.ForegroundSurface()
	if !ok || surface == nil {
		f.logger.Debug("no foreground surface, tap feed not started")
		return false
	}

	f.active = true
	f.surface = surface.Name()
	f.remove = surface.AddTapListener(f.handle)
	f.logger.Debug("tap feed started", "surface", f.surface)
	return true
}

// Stop detaches the listener. Taps in progress finish before Stop returns;
// later ones are discarded. Stop is idempotent.
func (f *Feed) Stop() {
	f.mu.Lock()
	remove := f.remove
	wasActive := f.active
	f.active = false
	f.remove = nil
	f.mu.Unlock()

	if !wasActive {
		return
	}
	if remove != nil {
		remove()
	}
	f.logger.Debug("tap feed stopped", "surface", f.surface, "delivered", f.delivered.Load())
}

// Delivered reports how many taps were turned into records.
func (f *Feed) Delivered() uint64 { return f.delivered.Load() }

func (f *Feed) handle(location telemetry.Point) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.active {
		return
	}
	f.sink.Append(telemetry.NewTouch(f.clock(), location))
	f.delivered.Add(1)
}
