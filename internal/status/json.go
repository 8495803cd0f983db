package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Pump          string       `json:"pump"`
	Flow          *FlowJSON    `json:"flow,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// FlowJSON is the last reading.
type FlowJSON struct {
	Timestamp string  `json:"timestamp"`
	RateLPM   float64 `json:"rate_lpm"`
	Pulses    uint32  `json:"pulses"`
	Dry       bool    `json:"dry"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Readings     int `json:"readings"`
	DryRuns      int `json:"dry_runs"`
	Recoveries   int `json:"recoveries"`
	EnableCycles int `json:"enable_cycles"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Mode           string  `json:"mode"`
	PWMHz          uint32  `json:"pwm_hz"`
	Duty           string  `json:"duty"`
	KHzPerLPM      float64 `json:"k_hz_per_lpm"`
	SamplePeriodMs int64   `json:"sample_period_ms"`
	MinRateLPM     float64 `json:"min_rate_lpm"`
	GraceSeconds   uint32  `json:"grace_seconds"`
	HeartbeatMs    int64   `json:"heartbeat_ms"`
	Broker         string  `json:"broker"`
	HTTPAddr       string  `json:"http_addr"`
}

// PumpState returns "ON" or "OFF".
func (s Snapshot) PumpState() string {
	if s.Enabled {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Pump:          snap.PumpState(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Readings:     snap.Counts.Readings,
			DryRuns:      snap.Counts.DryRuns,
			Recoveries:   snap.Counts.Recoveries,
			EnableCycles: snap.Counts.EnableCycles,
		},
		Config: ConfigJSON{
			Mode:           snap.Config.Mode,
			PWMHz:          snap.Config.PWMHz,
			Duty:           duty(snap.Config.DutyNum, snap.Config.DutyDen),
			KHzPerLPM:      snap.Config.KHzPerLPM,
			SamplePeriodMs: snap.Config.SamplePeriodMs,
			MinRateLPM:     snap.Config.MinRateLPM,
			GraceSeconds:   snap.Config.GraceSeconds,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	if snap.HasReading {
		inner.Flow = &FlowJSON{
			Timestamp: snap.Reading.Timestamp.UTC().Format(time.RFC3339),
			RateLPM:   snap.Reading.RateLPM,
			Pulses:    snap.Reading.Pulses,
			Dry:       snap.Reading.IsDry,
		}
	}
	return inner
}

func duty(num, den uint32) string {
	if den == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", num, den)
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
