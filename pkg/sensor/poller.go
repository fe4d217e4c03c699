package sensor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// poller runs a read/deliver loop on its own goroutine at a fixed cadence.
// stop waits for the goroutine to exit, which gives drivers their
// no-delivery-after-unsubscribe guarantee.
type poller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *poller) start(interval time.Duration, read func() (Sample, error), deliver func(Sample, error)) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}
	if deliver == nil {
		return errors.New("deliver callback must not be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return ErrAlreadySubscribed
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				return
			}
			sample, err := read()
			deliver(sample, err)
		}
	}()
	return nil
}

func (p *poller) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
