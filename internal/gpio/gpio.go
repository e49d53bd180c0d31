// Package gpio provides pulse input reading with hardware abstraction.
// The real implementations use the Linux GPIO character device or periph.io.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Reader reads the level of the pulse input.
type Reader interface {
	// Read returns true when the line is high.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin identifies the line to count pulses on.
type Pin interface {
	// Setup prepares the pin for use.
	Setup() error

	// Number returns the GPIO number.
	Number() int
}

// DefaultPin is the default pulse input (GPIO27, retained I/O 17).
const DefaultPin = 27

// Bias selects the line's pull resistor.
type Bias string

const (
	BiasPullDown Bias = "pull-down"
	BiasPullUp   Bias = "pull-up"
	BiasNone     Bias = "none"
)

// ParseBias validates a bias name. Empty means pull-down.
func ParseBias(s string) (Bias, error) {
	switch Bias(s) {
	case "", BiasPullDown:
		return BiasPullDown, nil
	case BiasPullUp, BiasNone:
		return Bias(s), nil
	}
	return "", fmt.Errorf("gpio: unknown bias %q", s)
}

// Line is a Pin known only by number. The main processor uses it; the line
// itself is owned by the coprocessor runner.
type Line int

// Setup checks the line number.
func (l Line) Setup() error {
	if l < 0 {
		return fmt.Errorf("gpio: invalid line %d", int(l))
	}
	return nil
}

// Number returns the GPIO number.
func (l Line) Number() int { return int(l) }
