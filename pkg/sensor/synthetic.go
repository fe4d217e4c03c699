package sensor

import (
	"math"
	"sync/atomic"
	"time"
)

// Synthetic produces a deterministic resting-device signal: gravity on Z with
// a small wobble on X and Y. It backs development runs and tests on machines
// without an accelerometer.
type Synthetic struct {
	clock func() time.Time

	// Disabled makes Available report false, as if no sensor were fitted.
	Disabled bool

	tick   atomic.Uint64
	poller poller
}

// NewSynthetic returns a synthetic driver using clock for sample timestamps.
func NewSynthetic(clock func() time.Time) *Synthetic {
	if clock == nil {
		clock = time.Now
	}
	return &Synthetic{clock: clock}
}

// Name implements Driver.
func (s *Synthetic) Name() string { return DriverSynthetic }

// Available implements Driver.
func (s *Synthetic) Available() bool { return !s.Disabled }

// Subscribe implements Driver.
func (s *Synthetic) Subscribe(interval time.Duration, deliver func(Sample, error)) error {
	if s.Disabled {
		return ErrUnavailable
	}
	return s.poller.start(interval, s.read, deliver)
}

// Unsubscribe implements Driver.
func (s *Synthetic) Unsubscribe() {
	s.poller.stop()
}

func (s *Synthetic) read() (Sample, error) {
	n := float64(s.tick.Add(1))
	return Sample{
		X:         round(0.02*math.Sin(n/2), 4),
		Y:         round(0.02*math.Cos(n/2), 4),
		Z:         1,
		Timestamp: s.clock(),
	}, nil
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
