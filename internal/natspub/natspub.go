// Package natspub publishes pulse readings to NATS, alongside or instead of MQTT.
package natspub

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sweeney/pulse-counter/internal/logic"
	"github.com/sweeney/pulse-counter/internal/mqtt"
)

// Subject is the NATS subject for pulse readings.
const Subject = "energy.pulse.sensor.readings"

// SubjectSystem is the NATS subject for system lifecycle events.
const SubjectSystem = "energy.pulse.sensor.system"

// Publisher sends the same JSON payloads as the MQTT publisher.
type Publisher struct {
	nc *nats.Conn
}

// Connect dials url and keeps reconnecting for the life of the process.
func Connect(url, name string) (*Publisher, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Publisher{nc: nc}, nil
}

// Publish sends a pulse reading.
func (p *Publisher) Publish(reading logic.Reading) error {
	payload, err := mqtt.FormatPayload(reading)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	if err := p.nc.Publish(Subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event.
func (p *Publisher) PublishSystem(event mqtt.SystemEvent) error {
	payload, err := mqtt.FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if err := p.nc.Publish(SubjectSystem, payload); err != nil {
		return fmt.Errorf("nats publish system: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

var _ mqtt.Publisher = (*Publisher)(nil)
