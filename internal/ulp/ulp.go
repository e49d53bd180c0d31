// Package ulp drives the always-on coprocessor that counts pulses while the
// main processor sleeps.
//
// The coprocessor runs a fixed counting program out of retained memory and
// shares a handful of 16-bit registers with the main processor. Start brings
// the program up on a cold boot; Resume attaches to it after a wake. The main
// processor then drains the counters periodically.
package ulp

import (
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/pulse-counter/internal/gpio"
)

// CountMode selects what happens on an edge of one direction.
type CountMode uint8

const (
	CountDisable CountMode = iota
	CountIncrement
	CountDecrement
)

func (m CountMode) String() string {
	switch m {
	case CountDisable:
		return "DISABLE"
	case CountIncrement:
		return "INCREMENT"
	case CountDecrement:
		return "DECREMENT"
	}
	return "UNKNOWN"
}

// ParseCountMode parses DISABLE, INCREMENT or DECREMENT (any case).
func ParseCountMode(s string) (CountMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DISABLE":
		return CountDisable, nil
	case "INCREMENT":
		return CountIncrement, nil
	case "DECREMENT":
		return CountDecrement, nil
	}
	return CountDisable, fmt.Errorf("ulp: unknown count mode %q", s)
}

// initialDebounceCounter biases the program towards several stable samples
// before the very first edge is trusted.
const initialDebounceCounter = 3

// Config holds the program parameters written at Start.
type Config struct {
	// DebounceThreshold is the number of extra stable samples an edge needs.
	DebounceThreshold uint16
	// WakePeriod is the interval between samples.
	WakePeriod time.Duration
	Rising     CountMode
	Falling    CountMode
	// Image is the program to load; nil means DefaultImage.
	Image []byte
}

// MinPulseWidth returns the shortest pulse the program can detect.
func MinPulseWidth(wakePeriod time.Duration, debounceThreshold uint16) time.Duration {
	return wakePeriod * time.Duration(int(debounceThreshold)+1)
}

// Program is a handle on a running counting program.
type Program struct {
	regs *Registers
}

// Start loads and starts the counting program for pin. All failures are
// fatal for this boot.
func Start(p Platform, pin gpio.Pin, cfg Config) (*Program, error) {
	if err := pin.Setup(); err != nil {
		return nil, fmt.Errorf("setup pin: %w", err)
	}

	image := cfg.Image
	if image == nil {
		image = DefaultImage
	}
	if err := p.LoadBinary(image); err != nil {
		return nil, fmt.Errorf("load ulp binary: %w", err)
	}

	num := pin.Number()
	rtcio, ok := p.RTCIONumber(num)
	if !ok {
		return nil, fmt.Errorf("%w: GPIO%d", ErrPinNotRetained, num)
	}

	r := p.Registers()
	prevPeriod, prevMean := r.WakePeriod(), r.MeanExecTime()

	r.store(wordEdgeCount, 0)
	r.store(wordRunCount, 0)
	r.store(wordDebounceCounter, initialDebounceCounter)
	r.store(wordDebounceMaxCount, uint32(cfg.DebounceThreshold))
	r.store(wordNextEdge, 0)
	r.store(wordIONumber, uint32(rtcio)&mask16)

	if err := p.ConfigureInput(num); err != nil {
		return nil, fmt.Errorf("configure pin: %w", err)
	}
	if err := p.SetWakeupPeriod(cfg.WakePeriod); err != nil {
		return nil, fmt.Errorf("set wake period: %w", err)
	}
	// Until the main processor measures it, one iteration takes the nominal
	// wake period. A measurement for another period no longer applies.
	if prevMean == 0 || prevPeriod != r.WakePeriod() {
		r.store(wordMeanExecTime, execUnits(cfg.WakePeriod))
	}
	p.SetCountMode(cfg.Rising, cfg.Falling)

	if err := p.Run(); err != nil {
		return nil, fmt.Errorf("start ulp program: %w", err)
	}
	return &Program{regs: r}, nil
}

// Resume attaches to a program that kept running while the main processor
// slept. It writes nothing.
func Resume(p Platform) *Program {
	return &Program{regs: p.Registers()}
}

// Drain returns the edge and run counts accumulated since the last drain and
// clears both.
func (p *Program) Drain() (edges, runs uint32) {
	edges = p.regs.take(wordEdgeCount)
	runs = p.regs.take(wordRunCount)
	return edges, runs
}

// Peek returns the pending counts and the stored mean iteration time without
// clearing anything.
func (p *Program) Peek() (edges, runs uint32, meanExecTime time.Duration) {
	return p.regs.EdgeCount(), p.regs.RunCount(), p.regs.MeanExecTime()
}

// SetMeanExecTime stores the wall-clock duration of one program iteration,
// in ExecTimeUnit steps. Durations beyond MaxWakePeriod are clamped.
func (p *Program) SetMeanExecTime(d time.Duration) {
	p.regs.store(wordMeanExecTime, execUnits(d))
}

// Mismatch reports how the running program differs from what Start would set
// up for pin and cfg. It returns "" when they agree.
func Mismatch(p Platform, pin int, cfg Config) string {
	r := p.Registers()
	rtcio, ok := p.RTCIONumber(pin)
	if !ok {
		return fmt.Sprintf("GPIO%d is not a retained I/O", pin)
	}
	if io := r.IONumber(); io != rtcio {
		return fmt.Sprintf("io_number %d, want %d", io, rtcio)
	}
	if n := r.DebounceMaxCount(); n != uint32(cfg.DebounceThreshold) {
		return fmt.Sprintf("debounce %d, want %d", n, cfg.DebounceThreshold)
	}
	if d := r.WakePeriod(); d != cfg.WakePeriod.Truncate(time.Microsecond) {
		return fmt.Sprintf("wake period %v, want %v", d, cfg.WakePeriod)
	}
	if rising, falling := r.CountModes(); rising != cfg.Rising || falling != cfg.Falling {
		return fmt.Sprintf("count modes %s/%s, want %s/%s", rising, falling, cfg.Rising, cfg.Falling)
	}
	return ""
}

// Registers exposes the underlying registers for status reporting.
func (p *Program) Registers() *Registers { return p.regs }
