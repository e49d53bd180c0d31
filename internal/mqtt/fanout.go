package mqtt

import (
	"errors"

	"github.com/sweeney/pulse-counter/internal/logic"
)

// Fanout publishes to every publisher in order. A failing publisher does not
// stop the others; all errors are joined.
type Fanout []Publisher

// Publish sends the reading to every publisher.
func (f Fanout) Publish(reading logic.Reading) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(reading); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishSystem sends the event to every publisher.
func (f Fanout) PublishSystem(event SystemEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishSystem(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsConnected reports whether the first publisher that tracks a connection
// is connected.
func (f Fanout) IsConnected() bool {
	for _, p := range f {
		if cs, ok := p.(ConnectionStatus); ok {
			return cs.IsConnected()
		}
	}
	return false
}
