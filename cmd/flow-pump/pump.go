package main

import (
	"log"
	"sync"
	"time"

	"github.com/sweeney/flow-pump/internal/flow"
	"github.com/sweeney/flow-pump/internal/mqtt"
	"github.com/sweeney/flow-pump/internal/status"
)

// switchable is the part of the controller that turns the pump on and off.
type switchable interface {
	Enable(on bool) error
	IsEnabled() bool
	EnableCycles() int
}

// pumpSwitch routes every enable/disable through one place so the status
// tracker and the system topic see each transition exactly once. It is also
// the controller sink.
type pumpSwitch struct {
	ctrl       switchable
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	now        func() time.Time

	mu          sync.Mutex
	faultActive bool // last fault published was DRY_RUN
}

func newPumpSwitch(ctrl switchable, tracker *status.Tracker, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, now func() time.Time) *pumpSwitch {
	return &pumpSwitch{ctrl: ctrl, tracker: tracker, publisher: publisher, mqttStatus: mqttStatus, now: now}
}

// Enable implements web.Enabler.
func (s *pumpSwitch) Enable(on bool) error {
	return s.Set(on, "HTTP")
}

// Set enables or disables the pump and publishes ENABLED/DISABLED when the
// state actually changes. Disabling with a fault outstanding publishes
// CLEARED on the fault topic.
func (s *pumpSwitch) Set(on bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	was := s.ctrl.IsEnabled()
	err := s.ctrl.Enable(on)
	enabled := s.ctrl.IsEnabled()
	s.tracker.SetEnabled(enabled, s.ctrl.EnableCycles())
	if !enabled && s.faultActive {
		s.publishFaultLocked(flow.Reading{Timestamp: s.now(), Fault: flow.FaultCleared})
	}
	if err != nil {
		return err
	}
	if was == enabled {
		return nil
	}

	event := "DISABLED"
	if enabled {
		event = "ENABLED"
	}
	log.Printf("pump: %s (%s)", event, reason)
	publishSystem(s.publisher, s.tracker, nil, s.now(), event, reason)
	return nil
}

// HandleReading fans each controller reading out to the tracker and MQTT.
// Fault transitions follow the last published fault, not the sampler.
func (s *pumpSwitch) HandleReading(r flow.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The window ended before a disable that has already been handled.
	if !s.ctrl.IsEnabled() {
		return
	}

	switch {
	case r.IsDry && !s.faultActive:
		r.Fault = flow.FaultDryRun
	case !r.IsDry && s.faultActive:
		r.Fault = flow.FaultRecovered
	default:
		r.Fault = flow.FaultNone
	}

	s.tracker.RecordReading(r)
	if s.mqttStatus != nil {
		s.tracker.SetMQTTConnected(s.mqttStatus.IsConnected())
	}

	if err := s.publisher.PublishReading(r); err != nil {
		log.Printf("publish error: %v", err)
	}

	if r.Fault != flow.FaultNone {
		s.publishFaultLocked(r)
	}
}

func (s *pumpSwitch) publishFaultLocked(r flow.Reading) {
	s.faultActive = r.Fault == flow.FaultDryRun
	log.Printf("fault: %s rate=%.3f L/min after %ds", r.Fault, r.RateLPM, r.SecondsSinceEnabled)
	if err := s.publisher.PublishFault(r); err != nil {
		log.Printf("fault publish error: %v", err)
	}
}

// discardPublisher is used when no broker is configured.
type discardPublisher struct{}

func (discardPublisher) PublishReading(flow.Reading) error    { return nil }
func (discardPublisher) PublishFault(flow.Reading) error      { return nil }
func (discardPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (discardPublisher) Close() error                         { return nil }
