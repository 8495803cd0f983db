// Package flow converts pulse counts into flow readings and detects dry-run.
package flow

import (
	"math"
	"time"
)

// MaxGraceCounter is the ceiling of the seconds-since-enabled counter.
const MaxGraceCounter = math.MaxUint32

// Config holds the sensor calibration and dry-run thresholds.
type Config struct {
	// KHzPerLPM is the sensor output frequency at 1 L/min (5.71 for a YF-S201).
	KHzPerLPM float64

	// Window is the sampling period.
	Window time.Duration

	// MinRateLPM is the rate below which an enabled pump counts as dry.
	MinRateLPM float64

	// GraceSeconds is the number of samples after enabling during which
	// dry-run is not reported.
	GraceSeconds uint32
}

// Detector tracks the dry-run grace counter and fault flag.
type Detector struct {
	grace   uint32
	minRate float64

	secondsSinceEnabled uint32
	faulted             bool
}

// NewDetector creates a detector with the given grace period and threshold.
func NewDetector(graceSeconds uint32, minRateLPM float64) *Detector {
	return &Detector{grace: graceSeconds, minRate: minRateLPM}
}

// Evaluate advances the detector by one sample and returns the fault flag.
// While enabled the counter increments, saturating at MaxGraceCounter;
// when disabled the detector resets.
func (d *Detector) Evaluate(enabled bool, rate float64) bool {
	if !enabled {
		d.Reset()
		return false
	}
	if d.secondsSinceEnabled < MaxGraceCounter {
		d.secondsSinceEnabled++
	}
	d.faulted = d.secondsSinceEnabled >= d.grace && rate < d.minRate
	return d.faulted
}

// Reset clears the counter and the fault.
func (d *Detector) Reset() {
	d.secondsSinceEnabled = 0
	d.faulted = false
}

// SecondsSinceEnabled returns the grace counter.
func (d *Detector) SecondsSinceEnabled() uint32 {
	return d.secondsSinceEnabled
}

// Faulted returns the fault flag from the last evaluation.
func (d *Detector) Faulted() bool {
	return d.faulted
}

// Sampler turns pulse deltas into Readings.
type Sampler struct {
	cfg Config
	det *Detector
}

// NewSampler creates a sampler. A zero Window is treated as one second.
func NewSampler(cfg Config) *Sampler {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	return &Sampler{
		cfg: cfg,
		det: NewDetector(cfg.GraceSeconds, cfg.MinRateLPM),
	}
}

// Rate converts a per-window pulse delta to liters per minute. At the
// nominal one second window this is exactly delta/K.
func (s *Sampler) Rate(delta uint32) float64 {
	if s.cfg.KHzPerLPM <= 0 {
		return 0
	}
	if s.cfg.Window == time.Second {
		return float64(delta) / s.cfg.KHzPerLPM
	}
	return float64(delta) / (s.cfg.KHzPerLPM * s.cfg.Window.Seconds())
}

// Sample produces the reading for one window.
func (s *Sampler) Sample(current, delta uint32, enabled bool, now time.Time) Reading {
	rate := s.Rate(delta)
	wasDry := s.det.Faulted()
	dry := s.det.Evaluate(enabled, rate)

	r := Reading{
		Timestamp:           now,
		RateLPM:             rate,
		Pulses:              current,
		Delta:               delta,
		IsDry:               dry,
		SecondsSinceEnabled: s.det.SecondsSinceEnabled(),
	}
	switch {
	case dry && !wasDry:
		r.Fault = FaultDryRun
	case !dry && wasDry:
		r.Fault = FaultRecovered
	}
	return r
}

// Reset clears the dry-run detector, starting a fresh grace window.
func (s *Sampler) Reset() {
	s.det.Reset()
}

// Detector exposes the dry-run detector state.
func (s *Sampler) Detector() *Detector {
	return s.det
}

// Config returns the sampler configuration.
func (s *Sampler) Config() Config {
	return s.cfg
}
