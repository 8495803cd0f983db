package gpio

// FakeOutput is a test double that records every level written.
type FakeOutput struct {
	// High is the current level.
	High bool

	// Writes contains every level passed to Set, in order.
	Writes []bool

	// SetError, if set, will be returned by Set (the level is not changed).
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutput creates a FakeOutput that starts low.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the level.
func (f *FakeOutput) Set(high bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.High = high
	f.Writes = append(f.Writes, high)
	return nil
}

// Close drives the fake low and marks it closed.
func (f *FakeOutput) Close() error {
	f.High = false
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *FakeOutput) Reset() {
	f.High = false
	f.Writes = nil
	f.SetError = nil
	f.Closed = false
}

// FakeEdgeSource is a test double whose edges are injected by the test.
type FakeEdgeSource struct {
	handler func()

	// Starts counts calls to Start.
	Starts int

	// StartError, if set, will be returned by Start.
	StartError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeEdgeSource creates an unarmed FakeEdgeSource.
func NewFakeEdgeSource() *FakeEdgeSource {
	return &FakeEdgeSource{}
}

// Start stores the handler.
func (f *FakeEdgeSource) Start(onEdge func()) error {
	if f.StartError != nil {
		return f.StartError
	}
	f.Starts++
	f.handler = onEdge
	return nil
}

// Close disarms the source.
func (f *FakeEdgeSource) Close() error {
	f.handler = nil
	f.Closed = true
	return nil
}

// Armed reports whether a handler is installed.
func (f *FakeEdgeSource) Armed() bool {
	return f.handler != nil
}

// Pulse delivers n rising edges. Edges on an unarmed source are dropped,
// like edges on an unrequested line.
func (f *FakeEdgeSource) Pulse(n int) {
	if f.handler == nil {
		return
	}
	for i := 0; i < n; i++ {
		f.handler()
	}
}
