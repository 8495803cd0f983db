// Package controller owns the pump/flow lifecycle: it starts and stops the
// pump actuator, runs the periodic flow sampler, and hands each reading to
// the registered sink.
package controller

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/flow-pump/internal/flow"
	"github.com/sweeney/flow-pump/internal/gpio"
	"github.com/sweeney/flow-pump/internal/pulse"
	"github.com/sweeney/flow-pump/internal/pump"
	"github.com/sweeney/flow-pump/internal/timing"
)

// State is the controller lifecycle state.
type State int

const (
	Disabled State = iota
	Enabled
)

func (s State) String() string {
	if s == Enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// Sink consumes readings. HandleReading runs synchronously on the sampling
// goroutine and must not block; a slow sink delays the next sample.
type Sink interface {
	HandleReading(r flow.Reading)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r flow.Reading)

// HandleReading calls f(r).
func (f SinkFunc) HandleReading(r flow.Reading) {
	f(r)
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Ticks timing.TickSource
	Timer timing.Timer
	Pump  *pump.Actuator
	Edges gpio.EdgeSource

	// Counter receives edges from Edges. A new counter is used if nil.
	Counter *pulse.Counter

	// Now timestamps readings. Defaults to time.Now.
	Now func() time.Time
}

// Controller is the single owner of pump, sampler and sink state.
type Controller struct {
	cfg     flow.Config
	ticks   timing.TickSource
	timer   timing.Timer
	pump    *pump.Actuator
	edges   gpio.EdgeSource
	counter *pulse.Counter
	now     func() time.Time

	mu       sync.Mutex
	inited   bool
	state    State
	gen      uint64 // bumped on every transition; stale timer callbacks are ignored
	baseline uint32
	sampler  *flow.Sampler
	last     flow.Reading
	sink     Sink
	cycles   int
}

// New creates a disabled controller. cfg.Window is the sampling period.
func New(cfg flow.Config, deps Deps) *Controller {
	if deps.Counter == nil {
		deps.Counter = &pulse.Counter{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	sampler := flow.NewSampler(cfg)
	return &Controller{
		cfg:     sampler.Config(),
		ticks:   deps.Ticks,
		timer:   deps.Timer,
		pump:    deps.Pump,
		edges:   deps.Edges,
		counter: deps.Counter,
		now:     deps.Now,
		sampler: sampler,
	}
}

// Init drives the pump to its safe level and arms the flow edge source.
// Safe to call more than once.
func (c *Controller) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked()
}

func (c *Controller) initLocked() error {
	if c.inited {
		return nil
	}
	if err := c.pump.Init(); err != nil {
		return fmt.Errorf("init pump: %w", err)
	}
	if err := c.edges.Start(c.counter.Increment); err != nil {
		return fmt.Errorf("init flow sensor: %w", err)
	}
	c.inited = true

	pwm := c.pump.PWM()
	var hz uint32
	if pwm.PeriodTicks > 0 {
		hz = c.ticks.Frequency() / pwm.PeriodTicks
	}
	log.Printf("controller: init done: mode=%s pwm=%d Hz duty=%d/%d ticks k=%.2f Hz per L/min window=%v",
		c.pump.Mode(), hz, pwm.HighTicks, pwm.PeriodTicks, c.cfg.KHzPerLPM, c.cfg.Window)
	return nil
}

// Enable starts (true) or stops (false) the pump and the flow sampler.
// Calls that do not change state are no-ops. Disabling forces the pump
// output low before returning.
func (c *Controller) Enable(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.initLocked(); err != nil {
		return err
	}

	if on {
		return c.enableLocked()
	}
	return c.disableLocked()
}

func (c *Controller) enableLocked() error {
	if c.state == Enabled {
		return nil
	}
	if err := c.pump.Start(c.ticks.Ticks()); err != nil {
		if serr := c.pump.Stop(); serr != nil {
			return fmt.Errorf("start pump: %w (stop pump: %v)", err, serr)
		}
		return fmt.Errorf("start pump: %w", err)
	}

	c.baseline = c.counter.Load()
	c.sampler.Reset()
	c.clearFaultLocked()
	c.gen++
	c.cycles++
	c.state = Enabled

	gen := c.gen
	c.timer.Start(c.cfg.Window, func() { c.sample(gen) })

	log.Printf("controller: enabled (baseline=%d)", c.baseline)
	return nil
}

func (c *Controller) disableLocked() error {
	if c.state == Disabled {
		return nil
	}
	c.timer.Stop()
	c.gen++
	c.state = Disabled
	c.sampler.Reset()
	c.clearFaultLocked()

	if err := c.pump.Stop(); err != nil {
		return fmt.Errorf("stop pump: %w", err)
	}
	log.Printf("controller: disabled")
	return nil
}

func (c *Controller) clearFaultLocked() {
	c.last.IsDry = false
	c.last.SecondsSinceEnabled = 0
	c.last.Fault = flow.FaultNone
}

// sample runs on the timer goroutine once per window.
func (c *Controller) sample(gen uint64) {
	c.mu.Lock()
	if c.state != Enabled || gen != c.gen {
		c.mu.Unlock()
		return
	}
	current, delta := c.counter.SampleAndReset(c.baseline)
	c.baseline = current
	r := c.sampler.Sample(current, delta, true, c.now())
	c.last = r
	sink := c.sink
	c.mu.Unlock()

	log.Printf("flow: pulses=%d freq=%.2f Hz q=%.3f L/min dry=%v",
		delta, float64(delta)/c.cfg.Window.Seconds(), r.RateLPM, r.IsDry)

	if sink != nil {
		sink.HandleReading(r)
	}
}

// Poll advances the software PWM waveform. Call it from the main loop at a
// rate well above the PWM frequency. A no-op while disabled.
func (c *Controller) Poll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Enabled {
		return nil
	}
	return c.pump.Poll(c.ticks.Ticks())
}

// SetSink registers the reading consumer, replacing any previous one.
// A nil sink drops readings.
func (c *Controller) SetSink(s Sink) {
	c.mu.Lock()
	c.sink = s
	c.mu.Unlock()
}

// IsEnabled reports whether the pump is enabled.
func (c *Controller) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Enabled
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FlowRate returns the rate from the most recent sample, in L/min.
func (c *Controller) FlowRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.RateLPM
}

// PulseCount returns the cumulative pulse count from the most recent sample.
func (c *Controller) PulseCount() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Pulses
}

// LastReading returns the most recent reading, with the fault cleared if the
// pump has since been disabled.
func (c *Controller) LastReading() flow.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// EnableCycles returns how many times the pump has gone from disabled to enabled.
func (c *Controller) EnableCycles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycles
}

// Close disables the pump and releases the flow edge source.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inited {
		return nil
	}
	err := c.disableLocked()
	if cerr := c.edges.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close flow sensor: %w", cerr)
	}
	c.inited = false
	return err
}
