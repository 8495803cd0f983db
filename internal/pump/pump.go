// Package pump drives the pump's half-bridge input either with a software
// PWM waveform or with a plain on/off level.
package pump

import (
	"fmt"

	"github.com/sweeney/flow-pump/internal/gpio"
)

// Mode selects how the actuator drives its output.
type Mode string

const (
	// ModePWM produces a fixed duty cycle by phase comparison on every Poll.
	ModePWM Mode = "pwm"
	// ModeOnOff drives the output high while running.
	ModeOnOff Mode = "onoff"
)

// ParseMode converts a config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePWM, ModeOnOff:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown pump mode %q", s)
}

// PWMState is the software PWM waveform, fixed at initialization.
type PWMState struct {
	PeriodTicks uint32
	HighTicks   uint32
	EpochTick   uint32
}

// NewPWMState derives the waveform from the tick frequency.
// period = tickHz/pwmHz and high = period*dutyNum/dutyDen, both at least 1
// and high never exceeding period.
func NewPWMState(tickHz, pwmHz, dutyNum, dutyDen uint32) PWMState {
	var period uint32
	if pwmHz > 0 {
		period = tickHz / pwmHz
	}
	if period == 0 {
		period = 1
	}

	var high uint32
	if dutyDen > 0 {
		high = uint32(uint64(period) * uint64(dutyNum) / uint64(dutyDen))
	}
	if high == 0 {
		high = 1
	}
	if high > period {
		high = period
	}
	return PWMState{PeriodTicks: period, HighTicks: high}
}

// LevelAt reports whether the waveform is high at tick now.
// Phase is taken from the absolute distance to the epoch, so it never drifts.
func (s PWMState) LevelAt(now uint32) bool {
	return (now-s.EpochTick)%s.PeriodTicks < s.HighTicks
}

// Actuator owns the pump output pin.
type Actuator struct {
	mode    Mode
	pwm     PWMState
	out     gpio.Output
	running bool
	level   bool
}

// NewActuator creates a stopped actuator. The output is not touched until
// Init, Start or Stop.
func NewActuator(mode Mode, pwm PWMState, out gpio.Output) *Actuator {
	return &Actuator{mode: mode, pwm: pwm, out: out}
}

// Init drives the output to the safe level.
func (a *Actuator) Init() error {
	return a.drive(false)
}

// Start begins driving the pump. now becomes the PWM epoch.
func (a *Actuator) Start(now uint32) error {
	a.running = true
	a.pwm.EpochTick = now
	switch a.mode {
	case ModeOnOff:
		return a.drive(true)
	default:
		return a.drive(a.pwm.LevelAt(now))
	}
}

// Poll updates the PWM output for tick now. The pin is written only on a
// level change. A no-op in on/off mode or while stopped.
func (a *Actuator) Poll(now uint32) error {
	if !a.running || a.mode != ModePWM {
		return nil
	}
	want := a.pwm.LevelAt(now)
	if want == a.level {
		return nil
	}
	return a.drive(want)
}

// Stop forces the output low in any mode. The actuator is stopped even if
// the pin write fails.
func (a *Actuator) Stop() error {
	a.running = false
	return a.drive(false)
}

// Running reports whether Start has been called without a following Stop.
func (a *Actuator) Running() bool {
	return a.running
}

// Level returns the last level successfully written to the pin.
func (a *Actuator) Level() bool {
	return a.level
}

// Mode returns the drive mode.
func (a *Actuator) Mode() Mode {
	return a.mode
}

// PWM returns the waveform, including the current epoch.
func (a *Actuator) PWM() PWMState {
	return a.pwm
}

func (a *Actuator) drive(high bool) error {
	if err := a.out.Set(high); err != nil {
		return fmt.Errorf("drive pump: %w", err)
	}
	a.level = high
	return nil
}
