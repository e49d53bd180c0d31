package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphReader reads the pulse input through periph.io drivers. It covers
// boards where the character device is unavailable.
type PeriphReader struct {
	pin pgpio.PinIO
}

func periphPull(b Bias) pgpio.Pull {
	switch b {
	case BiasPullUp:
		return pgpio.PullUp
	case BiasNone:
		return pgpio.Float
	}
	return pgpio.PullDown
}

// NewPeriphReader initialises periph.io and configures GPIO<number> as an input.
func NewPeriphReader(number int, bias Bias) (*PeriphReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	name := fmt.Sprintf("GPIO%d", number)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("invalid pin: %s", name)
	}
	if err := p.In(periphPull(bias), pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s: %w", name, err)
	}
	return &PeriphReader{pin: p}, nil
}

// Read returns true when the line is high.
func (r *PeriphReader) Read() (bool, error) {
	return r.pin.Read() == pgpio.High, nil
}

// Close leaves the pin as a pulled-down input.
func (r *PeriphReader) Close() error {
	if err := r.pin.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
		return fmt.Errorf("reset %s: %w", r.pin.Name(), err)
	}
	return nil
}
