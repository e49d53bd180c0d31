//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the pulse input using the Linux GPIO character device.
type RealReader struct {
	line   *gpiocdev.Line
	offset int
}

func biasOption(b Bias) gpiocdev.LineBias {
	switch b {
	case BiasPullUp:
		return gpiocdev.WithPullUp
	case BiasNone:
		return gpiocdev.WithBiasDisabled
	}
	return gpiocdev.WithPullDown
}

// NewRealReader requests offset on chip (e.g. "gpiochip0") as an input.
func NewRealReader(chip string, offset int, bias Bias) (*RealReader, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput, biasOption(bias))
	if err != nil {
		return nil, fmt.Errorf("request pin %d on %s: %w", offset, chip, err)
	}
	return &RealReader{line: line, offset: offset}, nil
}

// Read returns true when the line is high.
func (r *RealReader) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", r.offset, err)
	}
	return v == 1, nil
}

// Setup is a no-op; the line is configured when requested.
func (r *RealReader) Setup() error { return nil }

// Number returns the line offset.
func (r *RealReader) Number() int { return r.offset }

// Close releases the line.
// Reconfigures it to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	if r.line == nil {
		return nil
	}
	var errs []error
	if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", r.offset, err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", r.offset, err))
	}
	r.line = nil

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
