// Package timing provides the monotonic tick source and the periodic timer
// used by the pump controller. Both are built on clockz so tests can drive
// them with a fake clock.
package timing

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// TickFrequency is the rate of ClockTicks, in ticks per second.
const TickFrequency = 1_000_000

// TickSource is a wrapping monotonic tick counter.
type TickSource interface {
	// Ticks returns the current tick count. Wraps at 2^32.
	Ticks() uint32

	// Frequency returns ticks per second.
	Frequency() uint32
}

// Timer runs a callback periodically until stopped.
type Timer interface {
	// Start begins calling fn every period. Starting a running timer is a no-op.
	Start(period time.Duration, fn func())

	// Stop cancels future callbacks. It does not wait for a callback that is
	// already executing, so fn may itself call Stop.
	Stop()
}

// ClockTicks counts microseconds since construction.
type ClockTicks struct {
	clock clockz.Clock
	start time.Time
}

// NewClockTicks creates a tick source reading clock.
func NewClockTicks(clock clockz.Clock) *ClockTicks {
	return &ClockTicks{clock: clock, start: clock.Now()}
}

// Ticks returns elapsed microseconds, truncated to 32 bits.
func (c *ClockTicks) Ticks() uint32 {
	return uint32(c.clock.Since(c.start) / time.Microsecond)
}

// Frequency returns TickFrequency.
func (c *ClockTicks) Frequency() uint32 {
	return TickFrequency
}

// ClockTimer is a Timer backed by a clockz timer and one goroutine per run.
type ClockTimer struct {
	clock clockz.Clock

	mu   sync.Mutex
	stop chan struct{}
}

// NewClockTimer creates a stopped timer on clock.
func NewClockTimer(clock clockz.Clock) *ClockTimer {
	return &ClockTimer{clock: clock}
}

// Start implements Timer.
func (t *ClockTimer) Start(period time.Duration, fn func()) {
	t.mu.Lock()
	if t.stop != nil {
		t.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	timer := t.clock.NewTimer(period)
	go func() {
		defer timer.Stop()
		for {
			select {
			case <-stop:
				return
			case <-timer.C():
			}
			// A stop that raced the fire wins.
			select {
			case <-stop:
				return
			default:
			}
			timer.Reset(period)
			fn()
		}
	}()
}

// Stop implements Timer.
func (t *ClockTimer) Stop() {
	t.mu.Lock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.mu.Unlock()
}

// Running reports whether the timer has been started and not stopped.
func (t *ClockTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}
