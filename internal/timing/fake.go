package timing

import "time"

// FakeTicks is a TickSource whose count is set by the test.
type FakeTicks struct {
	Now uint32
	Hz  uint32
}

// NewFakeTicks creates a FakeTicks at tick 0 with the given frequency.
func NewFakeTicks(hz uint32) *FakeTicks {
	return &FakeTicks{Hz: hz}
}

// Ticks returns Now.
func (f *FakeTicks) Ticks() uint32 { return f.Now }

// Frequency returns Hz.
func (f *FakeTicks) Frequency() uint32 { return f.Hz }

// Advance moves Now forward by n ticks, wrapping like the real source.
func (f *FakeTicks) Advance(n uint32) {
	f.Now += n
}

// FakeTimer is a Timer fired manually by the test.
type FakeTimer struct {
	fn func()

	// Period is the period passed to the last Start.
	Period time.Duration

	// Running is true between Start and Stop.
	Running bool

	// Starts and Stops count effective calls.
	Starts int
	Stops  int
}

// NewFakeTimer creates a stopped FakeTimer.
func NewFakeTimer() *FakeTimer {
	return &FakeTimer{}
}

// Start implements Timer.
func (f *FakeTimer) Start(period time.Duration, fn func()) {
	if f.Running {
		return
	}
	f.Running = true
	f.Period = period
	f.fn = fn
	f.Starts++
}

// Stop implements Timer.
func (f *FakeTimer) Stop() {
	if !f.Running {
		return
	}
	f.Running = false
	f.Stops++
}

// Fire invokes the callback once if the timer is running.
func (f *FakeTimer) Fire() {
	if f.Running && f.fn != nil {
		f.fn()
	}
}

// FireStale invokes the most recently registered callback even if the timer
// was stopped, simulating a tick that was already in flight.
func (f *FakeTimer) FireStale() {
	if f.fn != nil {
		f.fn()
	}
}
