package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestSampler() *Sampler {
	return NewSampler(Config{
		KHzPerLPM:    5.71,
		Window:       time.Second,
		MinRateLPM:   0.2,
		GraceSeconds: 3,
	})
}

func TestRateIsDeltaOverK(t *testing.T) {
	s := newTestSampler()

	assert.Equal(t, float64(57)/5.71, s.Rate(57))
	assert.InDelta(t, 9.98, s.Rate(57), 0.005)
	assert.Equal(t, 0.0, s.Rate(0))
}

func TestRateScalesWithWindow(t *testing.T) {
	s := NewSampler(Config{KHzPerLPM: 5.71, Window: 500 * time.Millisecond})

	// 57 pulses in half a second is twice the flow of 57 in one second.
	assert.InDelta(t, 2*57/5.71, s.Rate(57), 1e-9)
}

func TestRateWithoutCalibration(t *testing.T) {
	s := NewSampler(Config{})
	assert.Equal(t, 0.0, s.Rate(100))
	assert.Equal(t, time.Second, s.Config().Window)
}

func TestNoDryFaultDuringGrace(t *testing.T) {
	s := newTestSampler()

	r := s.Sample(0, 0, true, t0)
	assert.False(t, r.IsDry, "sample 1")
	assert.Equal(t, uint32(1), r.SecondsSinceEnabled)

	r = s.Sample(0, 0, true, t0.Add(time.Second))
	assert.False(t, r.IsDry, "sample 2")

	r = s.Sample(0, 0, true, t0.Add(2*time.Second))
	assert.True(t, r.IsDry, "sample 3")
	assert.Equal(t, FaultDryRun, r.Fault)
	assert.Equal(t, CodeDry, r.ErrorCode())

	r = s.Sample(0, 0, true, t0.Add(3*time.Second))
	assert.True(t, r.IsDry, "sample 4")
	assert.Equal(t, FaultNone, r.Fault)
}

func TestDryFaultClearsWhenFlowReturns(t *testing.T) {
	s := newTestSampler()
	for i := 0; i < 3; i++ {
		s.Sample(0, 0, true, t0)
	}
	require.True(t, s.Detector().Faulted())

	r := s.Sample(57, 57, true, t0)
	assert.False(t, r.IsDry)
	assert.Equal(t, FaultRecovered, r.Fault)
	assert.Equal(t, CodeOK, r.ErrorCode())

	// No latching: drops straight back to dry on the next low sample.
	r = s.Sample(57, 0, true, t0)
	assert.True(t, r.IsDry)
	assert.Equal(t, FaultDryRun, r.Fault)
}

func TestRateAtThresholdIsNotDry(t *testing.T) {
	s := NewSampler(Config{KHzPerLPM: 1, MinRateLPM: 2, GraceSeconds: 1})

	assert.False(t, s.Sample(2, 2, true, t0).IsDry)
	assert.True(t, s.Sample(3, 1, true, t0).IsDry)
}

func TestDisabledSampleResetsDetector(t *testing.T) {
	s := newTestSampler()
	for i := 0; i < 5; i++ {
		s.Sample(0, 0, true, t0)
	}
	require.True(t, s.Detector().Faulted())

	r := s.Sample(0, 0, false, t0)
	assert.False(t, r.IsDry)
	assert.Equal(t, uint32(0), r.SecondsSinceEnabled)
	assert.Equal(t, FaultRecovered, r.Fault)
}

func TestResetGivesFreshGrace(t *testing.T) {
	s := newTestSampler()
	for i := 0; i < 4; i++ {
		s.Sample(0, 0, true, t0)
	}
	s.Reset()
	assert.Equal(t, uint32(0), s.Detector().SecondsSinceEnabled())
	assert.False(t, s.Detector().Faulted())

	assert.False(t, s.Sample(0, 0, true, t0).IsDry)
	assert.False(t, s.Sample(0, 0, true, t0).IsDry)
	assert.True(t, s.Sample(0, 0, true, t0).IsDry)
}

func TestGraceCounterSaturates(t *testing.T) {
	d := NewDetector(3, 0.2)
	d.secondsSinceEnabled = MaxGraceCounter - 1

	d.Evaluate(true, 1)
	assert.Equal(t, uint32(MaxGraceCounter), d.SecondsSinceEnabled())

	d.Evaluate(true, 1)
	assert.Equal(t, uint32(MaxGraceCounter), d.SecondsSinceEnabled(), "must not wrap")
	assert.False(t, d.Faulted())

	d.Evaluate(true, 0)
	assert.True(t, d.Faulted())
}

func TestZeroGraceFaultsOnFirstSample(t *testing.T) {
	s := NewSampler(Config{KHzPerLPM: 5.71, MinRateLPM: 0.2})
	assert.True(t, s.Sample(0, 0, true, t0).IsDry)
}
