package interaction

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/offlinefirst/eventtracker/pkg/telemetry"
)

// ScriptedTap is a tap delivered After the start of a replay.
type ScriptedTap struct {
	After time.Duration
	X, Y  float64
}

// ReplayOptions configure Replay timing.
type ReplayOptions struct {
	Clock   func() time.Time
	Sleeper func(context.Context, time.Duration) error
}

// Replay taps window according to the script until the script is exhausted or
// ctx is cancelled. It returns how many taps were delivered.
func Replay(ctx context.Context, window *Window, taps []ScriptedTap, opts ReplayOptions) (int, error) {
	if window == nil {
		return 0, errors.New("window must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = defaultSleeper
	}

	script := append([]ScriptedTap(nil), taps...)
	sort.SliceStable(script, func(i, j int) bool { return script[i].After < script[j].After })

	start := clock()
	delivered := 0
	for _, tap := range script {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if wait := start.Add(tap.After).Sub(clock()); wait > 0 {
			if err := sleeper(ctx, wait); err != nil {
				return delivered, err
			}
		}
		window.Tap(telemetry.Point{X: tap.X, Y: tap.Y})
		delivered++
	}
	return delivered, nil
}

func defaultSleeper(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
