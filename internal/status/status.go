// Package status provides a thread-safe status tracker for the flow-pump daemon.
// It is read by HTTP handlers and MQTT heartbeat/lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/flow-pump/internal/flow"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Mode           string
	PWMHz          uint32
	DutyNum        uint32
	DutyDen        uint32
	KHzPerLPM      float64
	SamplePeriodMs int64
	MinRateLPM     float64
	GraceSeconds   uint32
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
}

// Counts are running totals since startup.
type Counts struct {
	Readings     int
	DryRuns      int
	Recoveries   int
	EnableCycles int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Enabled       bool
	Reading       flow.Reading
	HasReading    bool
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordReading stores a sampler reading and counts fault transitions.
// Called from the controller sink once per sample. A reading that arrives
// after the pump was disabled never marks it dry.
func (t *Tracker) RecordReading(r flow.Reading) {
	t.mu.Lock()
	if !t.snap.Enabled {
		r.IsDry = false
	}
	t.snap.Reading = r
	t.snap.HasReading = true
	t.snap.Counts.Readings++
	switch r.Fault {
	case flow.FaultDryRun:
		t.snap.Counts.DryRuns++
	case flow.FaultRecovered:
		t.snap.Counts.Recoveries++
	}
	t.mu.Unlock()
}

// SetEnabled records the controller state. Disabling clears the stored
// dry flag, matching the controller.
func (t *Tracker) SetEnabled(enabled bool, cycles int) {
	t.mu.Lock()
	t.snap.Enabled = enabled
	t.snap.Counts.EnableCycles = cycles
	if !enabled {
		t.snap.Reading.IsDry = false
		t.snap.Reading.SecondsSinceEnabled = 0
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
