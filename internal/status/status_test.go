package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/flow-pump/internal/flow"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Mode: "pwm", SamplePeriodMs: 1000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.SamplePeriodMs != 1000 {
		t.Errorf("Config.SamplePeriodMs: got %d, want 1000", snap.Config.SamplePeriodMs)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Enabled {
		t.Error("expected Enabled=false initially")
	}
	if snap.HasReading {
		t.Error("expected HasReading=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRecordReading(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordReading(flow.Reading{RateLPM: 9.98, Pulses: 57, Delta: 57})
	tr.RecordReading(flow.Reading{RateLPM: 0.1, Pulses: 58, Delta: 1, IsDry: true, Fault: flow.FaultDryRun})
	tr.RecordReading(flow.Reading{RateLPM: 5, Pulses: 100, Delta: 42, Fault: flow.FaultRecovered})

	snap := tr.Snapshot()
	if !snap.HasReading {
		t.Fatal("expected HasReading=true")
	}
	if snap.Reading.Pulses != 100 {
		t.Errorf("Reading.Pulses: got %d, want 100", snap.Reading.Pulses)
	}
	if snap.Counts.Readings != 3 {
		t.Errorf("Counts.Readings: got %d, want 3", snap.Counts.Readings)
	}
	if snap.Counts.DryRuns != 1 {
		t.Errorf("Counts.DryRuns: got %d, want 1", snap.Counts.DryRuns)
	}
	if snap.Counts.Recoveries != 1 {
		t.Errorf("Counts.Recoveries: got %d, want 1", snap.Counts.Recoveries)
	}
}

func TestSetEnabled(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetEnabled(true, 1)
	tr.RecordReading(flow.Reading{IsDry: true, SecondsSinceEnabled: 4})
	snap := tr.Snapshot()
	if !snap.Enabled || snap.Counts.EnableCycles != 1 {
		t.Errorf("got Enabled=%v cycles=%d, want true 1", snap.Enabled, snap.Counts.EnableCycles)
	}

	tr.SetEnabled(false, 1)
	snap = tr.Snapshot()
	if snap.Enabled {
		t.Error("expected Enabled=false")
	}
	if snap.Reading.IsDry {
		t.Error("expected dry flag cleared on disable")
	}
	if snap.Reading.SecondsSinceEnabled != 0 {
		t.Errorf("SecondsSinceEnabled: got %d, want 0", snap.Reading.SecondsSinceEnabled)
	}
}

func TestRecordReadingAfterDisableIsNotDry(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetEnabled(true, 1)
	tr.SetEnabled(false, 1)

	// A sample taken just before the disable is delivered after it.
	tr.RecordReading(flow.Reading{RateLPM: 0, Pulses: 3, IsDry: true, Fault: flow.FaultDryRun})

	snap := tr.Snapshot()
	if snap.Reading.IsDry {
		t.Error("expected disabled pump never reported dry")
	}
	if snap.Reading.Pulses != 3 {
		t.Errorf("Reading.Pulses: got %d, want 3", snap.Reading.Pulses)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	snap := tr.Snapshot()
	if snap.Network == nil || snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network: got %+v", snap.Network)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Now().Add(-5 * time.Minute)
	tr := NewTracker(start, Config{})

	up := tr.Snapshot().Uptime()
	if up < 5*time.Minute || up > 6*time.Minute {
		t.Errorf("Uptime: got %v, want ~5m", up)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.RecordReading(flow.Reading{Pulses: 10})

	snap := tr.Snapshot()
	tr.RecordReading(flow.Reading{Pulses: 20})

	if snap.Reading.Pulses != 10 {
		t.Errorf("snapshot changed after update: got %d, want 10", snap.Reading.Pulses)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Enabled:    true,
		HasReading: true,
		Reading: flow.Reading{
			Timestamp: start.Add(90 * time.Second),
			RateLPM:   9.98,
			Pulses:    57,
		},
		Counts:        Counts{Readings: 90, DryRuns: 1, EnableCycles: 2},
		StartTime:     start,
		Now:           start.Add(2 * time.Minute),
		MQTTConnected: true,
		Config: Config{
			Mode: "pwm", PWMHz: 1000, DutyNum: 2, DutyDen: 16,
			KHzPerLPM: 5.71, SamplePeriodMs: 1000, MinRateLPM: 0.2, GraceSeconds: 3,
			HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80",
		},
	}

	var got StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := got.Status
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected no event/reason, got %q/%q", s.Event, s.Reason)
	}
	if s.Pump != "ON" {
		t.Errorf("Pump: got %q, want ON", s.Pump)
	}
	if s.UptimeSeconds != 120 {
		t.Errorf("UptimeSeconds: got %d, want 120", s.UptimeSeconds)
	}
	if s.Timestamp != "2026-01-01T00:02:00Z" {
		t.Errorf("Timestamp: got %q", s.Timestamp)
	}
	if s.Flow == nil || s.Flow.Pulses != 57 || s.Flow.RateLPM != 9.98 {
		t.Errorf("Flow: got %+v", s.Flow)
	}
	if s.Config.Duty != "2/16" {
		t.Errorf("Config.Duty: got %q, want 2/16", s.Config.Duty)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Counts.DryRuns != 1 || s.Counts.EnableCycles != 2 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Network != nil {
		t.Error("expected no network section")
	}
}

func TestFormatJSONWithoutReading(t *testing.T) {
	now := time.Now()
	data := FormatJSON(Snapshot{StartTime: now, Now: now})

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["status"]["flow"]; ok {
		t.Error("expected flow omitted before first reading")
	}
	if raw["status"]["pump"] != "OFF" {
		t.Errorf("pump: got %v, want OFF", raw["status"]["pump"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	now := time.Now()
	snap := Snapshot{StartTime: now, Now: now}

	var got StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", got.Status.Event)
	}
	if got.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", got.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	now := time.Now()
	data := FormatStatusEvent(Snapshot{StartTime: now, Now: now}, "HEARTBEAT", "")

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["status"]["reason"]; ok {
		t.Error("expected reason omitted")
	}
	if raw["status"]["event"] != "HEARTBEAT" {
		t.Errorf("event: got %v", raw["status"]["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	now := time.Now()
	snap := Snapshot{
		StartTime: now,
		Now:       now,
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "garden"},
	}

	var got StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Status.Network == nil {
		t.Fatal("expected network section")
	}
	if got.Status.Network.SSID != "garden" {
		t.Errorf("SSID: got %q, want garden", got.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.RecordReading(flow.Reading{Pulses: uint32(n*100 + j)})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.SetEnabled(j%2 == 0, j)
				tr.SetMQTTConnected(j%2 == 0)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Snapshot()
				_ = FormatJSON(tr.Snapshot())
			}
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Counts.Readings; got != 1000 {
		t.Errorf("Counts.Readings: got %d, want 1000", got)
	}
}
