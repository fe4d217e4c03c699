// Package tracker coordinates the accelerometer and tap feeds around a single
// shared buffer and exposes the stop, drain, render and reset sequence.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/offlinefirst/eventtracker/pkg/interaction"
	"github.com/offlinefirst/eventtracker/pkg/logging"
	"github.com/offlinefirst/eventtracker/pkg/sensor"
	"github.com/offlinefirst/eventtracker/pkg/telemetry"
)

// ErrAlreadyRunning reports a Start call on a tracker that is already capturing.
var ErrAlreadyRunning = errors.New("tracker already running")

// State is the tracker lifecycle state.
type State int

const (
	Idle State = iota
	Running
)

// String returns the textual state for diagnostics.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	default:
		return "idle"
	}
}

// Options controls tracker construction.
type Options struct {
	// Sensor is the accelerometer driver. Nil disables the sensor feed.
	Sensor   sensor.Driver
	Interval time.Duration
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Result describes one flushed session. Carried counts records that a Close
// left buffered before the session started; they are flushed with it.
type Result struct {
	SessionID       string
	StartedAt       time.Time
	StoppedAt       time.Time
	SensorAvailable bool
	TouchAvailable  bool
	Records         int
	Events          []telemetry.Record
	Carried         int
	Counts          map[telemetry.Category]int
	Report          string
}

// Tracker owns the event buffer and both feeds. It is safe for concurrent use.
type Tracker struct {
	clock  func() time.Time
	logger *slog.Logger
	buffer *telemetry.Buffer
	sensor *sensor.Feed
	taps   *interaction.Feed

	mu        sync.Mutex
	state     State
	sessionID string
	startedAt time.Time
	sensorOn  bool
	tapsOn    bool
	carried   int
}

// New constructs an idle tracker.
func New(opts Options) (*Tracker, error) {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	buffer := telemetry.NewBuffer()
	sensorFeed, err := sensor.NewFeed(sensor.FeedOptions{
		Driver:   opts.Sensor,
		Sink:     buffer,
		Interval: opts.Interval,
		Clock:    clock,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise sensor feed: %w", err)
	}
	tapFeed, err := interaction.NewFeed(interaction.FeedOptions{
		Sink:   buffer,
		Clock:  clock,
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise tap feed: %w", err)
	}

	return &Tracker{
		clock:  clock,
		logger: logging.Component(opts.Logger, "tracker"),
		buffer: buffer,
		sensor: sensorFeed,
		taps:   tapFeed,
	}, nil
}

// Start begins capturing from the accelerometer and from the host's
// foreground surface. Either feed may be unavailable; that only disables the
// feed. Calling Start while running returns ErrAlreadyRunning and leaves the
// current session untouched.
func (t *Tracker) Start(host interaction.Host) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Running {
		t.logger.Warn("start called while tracker running", "session", t.sessionID)
		return fmt.Errorf("start session: %w", ErrAlreadyRunning)
	}

	t.sessionID = uuid.NewString()
	t.startedAt = t.clock()
	t.carried = t.buffer.Len()
	if t.carried > 0 {
		t.logger.Warn("records left by a closed session will be flushed with this one", "session", t.sessionID, "carried", t.carried)
	}
	t.sensorOn = t.sensor.Start()
	t.tapsOn = t.taps.Start(host)
	t.state = Running

	t.logger.Info("tracker started", "session", t.sessionID, "accelerometer", t.sensorOn, "touch", t.tapsOn)
	return nil
}

// StopAndFlush stops both feeds, drains every buffered record and returns the
// rendered report. From Idle it returns whatever is buffered, which after a
// previous flush is just the header line.
func (t *Tracker) StopAndFlush() string {
	return t.Flush().Report
}

// Flush performs the StopAndFlush sequence and reports session metadata
// alongside the rendered text.
func (t *Tracker) Flush() Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopFeeds()
	records := t.buffer.DrainSorted()

	result := Result{
		SessionID:       t.sessionID,
		StartedAt:       t.startedAt,
		StoppedAt:       t.clock(),
		SensorAvailable: t.sensorOn,
		TouchAvailable:  t.tapsOn,
		Records:         len(records),
		Events:          records,
		Carried:         t.carried,
		Counts:          make(map[telemetry.Category]int),
		Report:          telemetry.Render(records),
	}
	for _, record := range records {
		result.Counts[record.Category()]++
	}

	if t.state == Running {
		t.logger.Info("tracker flushed", "session", t.sessionID, "records", result.Records)
	} else {
		t.logger.Debug("flush while idle", "records", result.Records)
	}
	t.state = Idle
	t.sessionID = ""
	t.startedAt = time.Time{}
	t.sensorOn = false
	t.tapsOn = false
	t.carried = 0
	return result
}

// Close releases the sensor subscription and the tap listener without
// draining. Records already captured stay buffered for the next flush. Close
// is safe to call on every exit path, including after a flush.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Running {
		t.logger.Debug("tracker closed while running", "session", t.sessionID, "pending", t.buffer.Len())
	}
	t.stopFeeds()
	t.state = Idle
	return nil
}

// State reports the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SessionID returns the identifier of the current session. Flush clears it;
// Close does not, but the next Start replaces it, and records a Close left
// buffered are then flushed under the new session (see Result.Carried).
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Pending reports how many records are buffered but not yet flushed.
func (t *Tracker) Pending() int {
	return t.buffer.Len()
}

// stopFeeds must be called with t.mu held.
func (t *Tracker) stopFeeds() {
	t.sensor.Stop()
	t.taps.Stop()
}
