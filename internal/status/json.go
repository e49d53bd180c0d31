package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pulse-counter/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Name          string       `json:"name"`
	State         string       `json:"state"`
	Ready         bool         `json:"ready"`
	Error         string       `json:"error,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Pulse         PulseJSON    `json:"pulse"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// PulseJSON is the JSON representation of the tracker's stats.
type PulseJSON struct {
	RatePerMin     *float64 `json:"rate_per_min,omitempty"`
	Total          *uint64  `json:"total,omitempty"`
	Readings       int      `json:"readings"`
	MeanExecTimeUs int64    `json:"mean_exec_time_us"`
	Resumed        bool     `json:"resumed"`
	LastUpdate     string   `json:"last_update,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Pin          int    `json:"pin"`
	RisingEdge   string `json:"rising_edge"`
	FallingEdge  string `json:"falling_edge"`
	Debounce     uint16 `json:"debounce"`
	WakePeriodMs int64  `json:"wake_period_ms"`
	MinPulseMs   int64  `json:"min_pulse_ms"`
	UpdateMs     int64  `json:"update_ms"`
	Total        bool   `json:"total"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	NATS         string `json:"nats,omitempty"`
	HTTPPort     string `json:"http_port"`
	WSBroker     string `json:"ws_broker,omitempty"`
}

func stateName(p logic.Phase) string {
	if p == "" {
		return "UNKNOWN"
	}
	return string(p)
}

func buildInner(snap Snapshot) StatusInner {
	p := snap.Pulse
	inner := StatusInner{
		Name:          snap.Config.Name,
		State:         stateName(p.Phase),
		Ready:         p.Phase == logic.PhaseTracking,
		Error:         p.Err,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Pulse: PulseJSON{
			Readings:       p.Readings,
			MeanExecTimeUs: p.MeanExecTime.Microseconds(),
			Resumed:        p.Resumed,
		},
		Config: ConfigJSON{
			Pin:          snap.Config.Pin,
			RisingEdge:   snap.Config.RisingEdge,
			FallingEdge:  snap.Config.FallingEdge,
			Debounce:     snap.Config.Debounce,
			WakePeriodMs: snap.Config.WakePeriodMs,
			MinPulseMs:   snap.Config.MinPulseMs,
			UpdateMs:     snap.Config.UpdateMs,
			Total:        snap.Config.Total,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			NATS:         snap.Config.NATS,
			HTTPPort:     snap.Config.HTTPPort,
			WSBroker:     snap.Config.WSBroker,
		},
	}
	if p.HasRate {
		rate := p.Rate
		inner.Pulse.RatePerMin = &rate
	}
	if p.TrackTotal {
		total := p.Total
		inner.Pulse.Total = &total
	}
	if !p.LastUpdate.IsZero() {
		inner.Pulse.LastUpdate = p.LastUpdate.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
