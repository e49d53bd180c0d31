// Package logic contains pure business logic for pulse rate tracking.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Phase is the tracker's position in its per-boot state machine.
type Phase string

const (
	PhaseColdInit   Phase = "COLD_INIT"
	PhaseWarmResume Phase = "WARM_RESUME"
	PhaseTracking   Phase = "TRACKING"
	PhaseFailed     Phase = "FAILED"
)

// Counter is the main processor's view of the coprocessor's shared registers.
type Counter interface {
	// Drain returns the counts accumulated since the last drain and clears them.
	Drain() (edges, runs uint32)

	// Peek returns the pending counts and the stored iteration time without clearing.
	Peek() (edges, runs uint32, meanExecTime time.Duration)

	// SetMeanExecTime stores the estimated duration of one coprocessor iteration.
	SetMeanExecTime(d time.Duration)
}

// Launcher brings the coprocessor program up at boot.
type Launcher interface {
	// Start initialises and starts the program after a cold boot.
	Start() (Counter, error)

	// Resume attaches to a program that survived a sleep.
	Resume() Counter
}

// Reading is one publishable result of a tick.
type Reading struct {
	Timestamp time.Time
	// Rate is in pulses per minute; valid only when HasRate is set.
	Rate    float64
	HasRate bool
	// Total is the cumulative pulse count; valid only when HasTotal is set.
	Total    uint64
	HasTotal bool
	Edges    uint32
	Interval time.Duration
}

// Stats is a point-in-time view of the tracker for status reporting.
type Stats struct {
	Phase        Phase
	Resumed      bool
	Err          string
	Rate         float64
	HasRate      bool
	Total        uint64
	TrackTotal   bool
	MeanExecTime time.Duration
	Readings     int
	LastUpdate   time.Time
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Stats     Stats
}
