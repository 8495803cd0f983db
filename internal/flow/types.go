package flow

import "time"

// FaultEvent names a change in dry-run state between consecutive samples.
type FaultEvent string

const (
	// FaultNone means the dry-run state did not change.
	FaultNone FaultEvent = ""
	// FaultDryRun is raised on the first dry sample.
	FaultDryRun FaultEvent = "DRY_RUN"
	// FaultRecovered is raised on the first good sample after a dry one.
	FaultRecovered FaultEvent = "RECOVERED"
	// FaultCleared is raised when disabling the pump drops an active fault.
	FaultCleared FaultEvent = "CLEARED"
)

// Error codes carried on the wire alongside each reading.
const (
	CodeOK  uint8 = 0
	CodeDry uint8 = 1
)

// Reading is the result of one sampling period.
type Reading struct {
	Timestamp time.Time

	// RateLPM is the flow rate in liters per minute, never negative.
	RateLPM float64

	// Pulses is the cumulative pulse count at the end of the window.
	Pulses uint32

	// Delta is the number of pulses seen during the window.
	Delta uint32

	// IsDry is set while the pump is enabled, past its grace period, and
	// delivering less than the minimum rate.
	IsDry bool

	// SecondsSinceEnabled is the dry-run grace counter after this sample.
	SecondsSinceEnabled uint32

	// Fault is set when IsDry differs from the previous sample.
	Fault FaultEvent
}

// ErrorCode returns CodeDry for a dry reading, CodeOK otherwise.
func (r Reading) ErrorCode() uint8 {
	if r.IsDry {
		return CodeDry
	}
	return CodeOK
}
