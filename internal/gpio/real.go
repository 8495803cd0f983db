//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealOutput drives an output line through the GPIO character device.
type RealOutput struct {
	offset int
	line   *gpiocdev.Line
}

// NewOutput requests offset on chip as an output, initially low.
func NewOutput(chip string, offset int) (*RealOutput, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	return &RealOutput{offset: offset, line: line}, nil
}

// Set drives the line high or low.
func (o *RealOutput) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.offset, err)
	}
	return nil
}

// Close drives the line low, then reconfigures it as an input with pull-down
// so the pump driver stays off while nothing owns the pin.
func (o *RealOutput) Close() error {
	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("drive pin low: %w", err))
	}
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin: %w", err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealEdgeSource watches an input line for rising edges.
type RealEdgeSource struct {
	chip     string
	offset   int
	debounce time.Duration
	line     *gpiocdev.Line
}

// NewEdgeSource prepares an edge source for offset on chip. The line is not
// requested until Start.
func NewEdgeSource(chip string, offset int, debounce time.Duration) (*RealEdgeSource, error) {
	if offset < 0 {
		return nil, fmt.Errorf("invalid flow pin %d", offset)
	}
	return &RealEdgeSource{chip: chip, offset: offset, debounce: debounce}, nil
}

// Start requests the line with pull-up, rising edge detection and the kernel
// debounce filter. Calling Start on an armed source is a no-op.
func (s *RealEdgeSource) Start(onEdge func()) error {
	if s.line != nil {
		return nil
	}
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { onEdge() }),
	}
	if s.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(s.debounce))
	}
	line, err := gpiocdev.RequestLine(s.chip, s.offset, opts...)
	if err != nil {
		return fmt.Errorf("request flow pin %d: %w", s.offset, err)
	}
	s.line = line
	return nil
}

// Close releases the line. Safe to call when not started.
func (s *RealEdgeSource) Close() error {
	if s.line == nil {
		return nil
	}
	err := s.line.Close()
	s.line = nil
	if err != nil {
		return fmt.Errorf("close flow pin %d: %w", s.offset, err)
	}
	return nil
}
