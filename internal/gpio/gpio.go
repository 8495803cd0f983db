// Package gpio provides pump output and flow sensor edge access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Output drives a single digital output line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error

	// Close leaves the line at its safe level and releases it.
	Close() error
}

// EdgeSource delivers one notification per qualifying rising edge.
type EdgeSource interface {
	// Start arms edge detection. onEdge runs on the event goroutine and
	// must do O(1) work.
	Start(onEdge func()) error

	// Close disarms edge detection and releases the line.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultChip = "gpiochip0"

	// Half-bridge IN1, driven with the PWM waveform.
	DefaultPinPump = 18

	// Half-bridge IN2, held low for the lifetime of the actuator.
	DefaultPinHoldLow = 23

	// YF-S201 signal line.
	DefaultPinFlow = 17

	// Kernel debounce applied to flow edges.
	DefaultDebounce = 200 * time.Microsecond
)
