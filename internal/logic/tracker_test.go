package logic

import (
	"errors"
	"testing"
	"time"
)

// fakeCounter scripts drained values and records writes.
type fakeCounter struct {
	drains    [][2]uint32
	index     int
	peekEdges uint32
	peekRuns  uint32
	mean      time.Duration
	meanSets  []time.Duration
	drainCall int
}

func (c *fakeCounter) Drain() (uint32, uint32) {
	c.drainCall++
	if c.index >= len(c.drains) {
		return 0, 0
	}
	d := c.drains[c.index]
	c.index++
	return d[0], d[1]
}

func (c *fakeCounter) Peek() (uint32, uint32, time.Duration) {
	return c.peekEdges, c.peekRuns, c.mean
}

func (c *fakeCounter) SetMeanExecTime(d time.Duration) {
	c.mean = d
	c.meanSets = append(c.meanSets, d)
}

type fakeLauncher struct {
	counter  *fakeCounter
	startErr error
	started  bool
	resumed  bool
}

func (l *fakeLauncher) Start() (Counter, error) {
	l.started = true
	if l.startErr != nil {
		return nil, l.startErr
	}
	return l.counter, nil
}

func (l *fakeLauncher) Resume() Counter {
	l.resumed = true
	return l.counter
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func bootCold(t *testing.T, total bool, c *fakeCounter) *Tracker {
	t.Helper()
	tr := NewTracker(total)
	if err := tr.Boot(false, t0, &fakeLauncher{counter: c}); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	return tr
}

func TestNewTracker(t *testing.T) {
	tr := NewTracker(true)
	if tr.Phase() != PhaseColdInit {
		t.Errorf("expected COLD_INIT, got %s", tr.Phase())
	}
	if tr.Update(t0) != nil {
		t.Error("update before boot should be a no-op")
	}
}

func TestColdBootStartsProgram(t *testing.T) {
	l := &fakeLauncher{counter: &fakeCounter{}}
	tr := NewTracker(false)

	if err := tr.Boot(false, t0, l); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if !l.started || l.resumed {
		t.Errorf("expected Start only, got started=%v resumed=%v", l.started, l.resumed)
	}
	if tr.Phase() != PhaseTracking {
		t.Errorf("expected TRACKING, got %s", tr.Phase())
	}
	if !tr.last.Equal(t0) {
		t.Errorf("last: got %v, want %v", tr.last, t0)
	}
}

func TestRateUnitConversion(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{120, 3000}}}
	tr := bootCold(t, false, c)

	r := tr.Update(t0.Add(60 * time.Second))
	if r == nil || !r.HasRate {
		t.Fatal("expected a rate reading")
	}
	if r.Rate != 120.0 {
		t.Errorf("rate: got %v, want 120.0", r.Rate)
	}
	if r.HasTotal {
		t.Error("total should not be reported when disabled")
	}
	if r.Interval != 60*time.Second {
		t.Errorf("interval: got %v", r.Interval)
	}
}

func TestRateFractional(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{5, 100}}}
	tr := bootCold(t, false, c)

	r := tr.Update(t0.Add(30 * time.Second))
	if r.Rate != 10.0 {
		t.Errorf("rate: got %v, want 10.0", r.Rate)
	}
}

func TestMeanExecTimeUpdated(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{1, 3000}, {0, 0}}}
	tr := bootCold(t, false, c)

	tr.Update(t0.Add(60 * time.Second))
	if len(c.meanSets) != 1 || c.meanSets[0] != 20*time.Millisecond {
		t.Fatalf("mean exec time writes: got %v, want [20ms]", c.meanSets)
	}

	// Zero runs carry no information; the estimate is left alone.
	tr.Update(t0.Add(120 * time.Second))
	if len(c.meanSets) != 1 {
		t.Errorf("mean exec time rewritten with zero runs: %v", c.meanSets)
	}
	if tr.Stats().MeanExecTime != 20*time.Millisecond {
		t.Errorf("stats mean: got %v", tr.Stats().MeanExecTime)
	}
}

func TestZeroIntervalSkipsRate(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{7, 0}, {3, 10}}}
	tr := bootCold(t, false, c)

	if r := tr.Update(t0); r != nil {
		t.Errorf("expected nothing to publish at zero interval, got %+v", r)
	}
	if c.drainCall != 1 {
		t.Errorf("expected a drain, got %d", c.drainCall)
	}
	if len(c.meanSets) != 0 {
		t.Error("mean exec time must not change at zero interval")
	}

	r := tr.Update(t0.Add(time.Minute))
	if r == nil || r.Rate != 3.0 {
		t.Errorf("next tick: got %+v, want rate 3", r)
	}
}

func TestZeroIntervalStillReportsTotal(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{7, 0}}}
	tr := bootCold(t, true, c)

	r := tr.Update(t0)
	if r == nil {
		t.Fatal("expected total reading")
	}
	if r.HasRate {
		t.Error("rate must not be reported at zero interval")
	}
	if !r.HasTotal || r.Total != 7 {
		t.Errorf("total: got %d (has=%v), want 7", r.Total, r.HasTotal)
	}
}

func TestClockStepBackSkipsRate(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{4, 10}, {4, 10}}}
	tr := bootCold(t, false, c)

	if r := tr.Update(t0.Add(-time.Second)); r != nil {
		t.Errorf("expected no reading for negative interval, got %+v", r)
	}
	r := tr.Update(t0.Add(59 * time.Second))
	if r == nil || r.Rate != 4.0 {
		t.Errorf("got %+v, want rate 4", r)
	}
}

func TestWakeReconstruction(t *testing.T) {
	c := &fakeCounter{
		peekEdges: 2,
		peekRuns:  50,
		mean:      20 * time.Millisecond,
		drains:    [][2]uint32{{12, 3050}},
	}
	l := &fakeLauncher{counter: c}
	tr := NewTracker(false)

	if err := tr.Boot(true, t0, l); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if l.started || !l.resumed {
		t.Errorf("expected Resume only, got started=%v resumed=%v", l.started, l.resumed)
	}
	if want := t0.Add(-1000 * time.Millisecond); !tr.last.Equal(want) {
		t.Errorf("last: got %v, want %v", tr.last, want)
	}
	if tr.Phase() != PhaseTracking {
		t.Errorf("expected TRACKING, got %s", tr.Phase())
	}
	if !tr.Stats().Resumed {
		t.Error("stats should record the resume")
	}

	r := tr.Update(t0.Add(60 * time.Second))
	if r.Interval != 61*time.Second {
		t.Errorf("interval: got %v, want 61s", r.Interval)
	}
	want := 12 * 60.0 / 61.0
	if r.Rate != want {
		t.Errorf("rate: got %v, want %v", r.Rate, want)
	}
	if c.mean != 20*time.Millisecond {
		t.Errorf("mean exec time: got %v, want 20ms", c.mean)
	}
}

func TestCumulativeTotal(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{10, 100}, {15, 100}, {7, 100}}}
	tr := bootCold(t, true, c)

	var got []uint64
	for i := 1; i <= 3; i++ {
		r := tr.Update(t0.Add(time.Duration(i) * time.Minute))
		if r == nil || !r.HasTotal {
			t.Fatalf("tick %d: expected total", i)
		}
		got = append(got, r.Total)
	}

	want := []uint64{10, 25, 32}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("total %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestTotalWraps(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{5, 1}}}
	tr := bootCold(t, true, c)
	tr.SetTotal(^uint64(0)-1, t0)

	r := tr.Update(t0.Add(time.Second))
	if r.Total != 3 {
		t.Errorf("total: got %d, want 3", r.Total)
	}
}

func TestSetTotal(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{4, 1}}}
	tr := bootCold(t, true, c)

	r := tr.SetTotal(1000, t0)
	if r == nil || !r.HasTotal || r.Total != 1000 || r.HasRate {
		t.Fatalf("SetTotal: got %+v", r)
	}
	r = tr.Update(t0.Add(time.Minute))
	if r.Total != 1004 {
		t.Errorf("total after update: got %d, want 1004", r.Total)
	}

	if NewTracker(false).SetTotal(5, t0) != nil {
		t.Error("SetTotal without total tracking should be a no-op")
	}
}

func TestFailedStartIsTerminal(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{10, 10}, {10, 10}}}
	l := &fakeLauncher{counter: c, startErr: errors.New("load failed")}
	tr := NewTracker(true)

	err := tr.Boot(false, t0, l)
	if err == nil {
		t.Fatal("expected boot error")
	}
	if tr.Phase() != PhaseFailed {
		t.Errorf("expected FAILED, got %s", tr.Phase())
	}
	if tr.Stats().Err != "load failed" {
		t.Errorf("stats error: got %q", tr.Stats().Err)
	}

	for i := 1; i <= 5; i++ {
		if r := tr.Update(t0.Add(time.Duration(i) * time.Minute)); r != nil {
			t.Errorf("tick %d: failed tracker published %+v", i, r)
		}
	}
	if tr.SetTotal(5, t0) != nil {
		t.Error("failed tracker should not accept a total")
	}
	if c.drainCall != 0 {
		t.Errorf("failed tracker drained %d times", c.drainCall)
	}
}

func TestStats(t *testing.T) {
	c := &fakeCounter{drains: [][2]uint32{{30, 300}}}
	tr := bootCold(t, true, c)
	now := t0.Add(30 * time.Second)
	tr.Update(now)

	s := tr.Stats()
	if s.Phase != PhaseTracking {
		t.Errorf("phase: got %s", s.Phase)
	}
	if !s.HasRate || s.Rate != 60 {
		t.Errorf("rate: got %v (has=%v)", s.Rate, s.HasRate)
	}
	if s.Total != 30 || !s.TrackTotal {
		t.Errorf("total: got %d (track=%v)", s.Total, s.TrackTotal)
	}
	if s.Readings != 1 {
		t.Errorf("readings: got %d", s.Readings)
	}
	if !s.LastUpdate.Equal(now) {
		t.Errorf("last update: got %v", s.LastUpdate)
	}
	if s.MeanExecTime != 100*time.Millisecond {
		t.Errorf("mean: got %v", s.MeanExecTime)
	}
}

func TestCheckHeartbeat(t *testing.T) {
	tr := bootCold(t, false, &fakeCounter{})

	if tr.CheckHeartbeat(t0.Add(time.Hour), 0) != nil {
		t.Error("heartbeat disabled should return nil")
	}
	if tr.CheckHeartbeat(t0.Add(10*time.Minute), 15*time.Minute) != nil {
		t.Error("heartbeat before interval should return nil")
	}

	hb := tr.CheckHeartbeat(t0.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("uptime: got %v", hb.Uptime)
	}
	if hb.Stats.Phase != PhaseTracking {
		t.Errorf("phase: got %s", hb.Stats.Phase)
	}

	if tr.CheckHeartbeat(t0.Add(20*time.Minute), 15*time.Minute) != nil {
		t.Error("heartbeat should reset after firing")
	}
	if tr.CheckHeartbeat(t0.Add(30*time.Minute), 15*time.Minute) == nil {
		t.Error("expected second heartbeat")
	}
}
