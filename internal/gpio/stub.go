//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewOutput returns an error on non-Linux platforms.
func NewOutput(chip string, offset int) (*RealOutput, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (o *RealOutput) Set(high bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error {
	return nil
}

// RealEdgeSource is not available on non-Linux platforms.
type RealEdgeSource struct{}

// NewEdgeSource returns an error on non-Linux platforms.
func NewEdgeSource(chip string, offset int, debounce time.Duration) (*RealEdgeSource, error) {
	return nil, errUnsupported
}

// Start is not implemented on non-Linux platforms.
func (s *RealEdgeSource) Start(onEdge func()) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (s *RealEdgeSource) Close() error {
	return nil
}
