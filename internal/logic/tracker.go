package logic

import "time"

// Tracker turns drained edge counts into a pulses-per-minute rate and an
// optional running total. It is driven from a single goroutine.
type Tracker struct {
	trackTotal bool

	phase   Phase
	resumed bool
	err     error
	counter Counter

	last     time.Time
	total    uint64
	meanExec time.Duration

	rate     float64
	hasRate  bool
	readings int
	updated  time.Time

	startTime     time.Time
	lastHeartbeat time.Time
}

// NewTracker creates a tracker. When trackTotal is set every tick also
// reports the cumulative pulse count.
func NewTracker(trackTotal bool) *Tracker {
	return &Tracker{
		trackTotal: trackTotal,
		phase:      PhaseColdInit,
	}
}

// Boot brings the coprocessor up. After a cold boot it starts the program;
// after a wake it resumes and backdates the last observation by the time the
// program's iteration count represents, so the first rate after waking covers
// the whole sleep. A start failure leaves the tracker Failed and is returned.
func (t *Tracker) Boot(wokeFromSleep bool, now time.Time, l Launcher) error {
	t.startTime = now
	t.lastHeartbeat = now

	if !wokeFromSleep {
		t.phase = PhaseColdInit
		c, err := l.Start()
		if err != nil {
			t.phase = PhaseFailed
			t.err = err
			return err
		}
		t.counter = c
		t.last = now
		t.phase = PhaseTracking
		return nil
	}

	t.phase = PhaseWarmResume
	t.resumed = true
	t.counter = l.Resume()
	_, runs, mean := t.counter.Peek()
	t.meanExec = mean
	t.last = now.Add(-time.Duration(runs) * mean)
	t.phase = PhaseTracking
	return nil
}

// Update drains the counters and returns what to publish, or nil when there
// is nothing (failed, or no interval and no total).
func (t *Tracker) Update(now time.Time) *Reading {
	if t.phase != PhaseTracking {
		return nil
	}

	edges, runs := t.counter.Drain()
	interval := now.Sub(t.last)

	r := &Reading{Timestamp: now, Edges: edges, Interval: interval}
	if interval > 0 {
		if runs > 0 {
			t.meanExec = interval / time.Duration(runs)
			t.counter.SetMeanExecTime(t.meanExec)
		}
		r.Rate = float64(edges) * float64(time.Minute) / float64(interval)
		r.HasRate = true
		t.rate = r.Rate
		t.hasRate = true
	}

	if t.trackTotal {
		// Wraps at 2^64.
		t.total += uint64(edges)
		r.Total = t.total
		r.HasTotal = true
	}

	t.last = now
	t.readings++
	t.updated = now

	if !r.HasRate && !r.HasTotal {
		return nil
	}
	return r
}

// SetTotal replaces the running total. It returns the total to publish, or
// nil when totals are not tracked or the tracker has failed.
func (t *Tracker) SetTotal(n uint64, now time.Time) *Reading {
	if !t.trackTotal || t.phase == PhaseFailed {
		return nil
	}
	t.total = n
	return &Reading{Timestamp: now, Total: n, HasTotal: true}
}

// Phase returns the current state.
func (t *Tracker) Phase() Phase {
	return t.phase
}

// Stats returns a snapshot for status reporting.
func (t *Tracker) Stats() Stats {
	s := Stats{
		Phase:        t.phase,
		Resumed:      t.resumed,
		Rate:         t.rate,
		HasRate:      t.hasRate,
		Total:        t.total,
		TrackTotal:   t.trackTotal,
		MeanExecTime: t.meanExec,
		Readings:     t.readings,
		LastUpdate:   t.updated,
	}
	if t.err != nil {
		s.Err = t.err.Error()
	}
	return s
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or boot). Returns nil if interval is <= 0 (disabled) or not
// yet elapsed.
func (t *Tracker) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(t.lastHeartbeat) < interval {
		return nil
	}
	t.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(t.startTime),
		Stats:     t.Stats(),
	}
}
