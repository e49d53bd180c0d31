// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/pulse-counter/internal/logic"
)

// Topic is the MQTT topic for pulse readings.
const Topic = "energy/pulse/sensor/readings"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "energy/pulse/sensor/system"

// TopicSetTotal is the command topic that replaces the running pulse total.
const TopicSetTotal = "energy/pulse/sensor/set_total"

// Publisher publishes readings to a message broker.
type Publisher interface {
	// Publish sends a pulse reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(reading logic.Reading) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Pulse PulsePayload `json:"pulse"`
}

// PulsePayload contains one reading. Rate and total are omitted when the
// tick did not produce them.
type PulsePayload struct {
	Timestamp  string   `json:"timestamp"`
	RatePerMin *float64 `json:"rate_per_min,omitempty"`
	Total      *uint64  `json:"total,omitempty"`
	Edges      uint32   `json:"edges"`
	IntervalMs int64    `json:"interval_ms"`
}

// FormatPayload creates the JSON payload for a reading.
func FormatPayload(r logic.Reading) ([]byte, error) {
	p := PulsePayload{
		Timestamp:  r.Timestamp.UTC().Format(time.RFC3339),
		Edges:      r.Edges,
		IntervalMs: r.Interval.Milliseconds(),
	}
	if r.HasRate {
		rate := r.Rate
		p.RatePerMin = &rate
	}
	if r.HasTotal {
		total := r.Total
		p.Total = &total
	}
	return json.Marshal(Payload{Pulse: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// ParseSetTotal parses a set-total command payload: a plain decimal count.
func ParseSetTotal(payload []byte) (uint64, error) {
	s := strings.TrimSpace(string(payload))
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse set_total %q: %w", s, err)
	}
	return n, nil
}
