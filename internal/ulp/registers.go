package ulp

import (
	"sync/atomic"
	"time"
)

// Word indices of the register region at the start of retained memory.
// The first group mirrors what a real chip keeps in peripheral registers;
// the second group is the counting program's variables.
const (
	wordMagic = iota
	wordState
	wordWakePeriod // microseconds
	wordCountMode  // rising | falling<<8
	wordPinConfig
	wordImageSize // bytes of text+data+bss loaded

	wordEdgeCount
	wordRunCount
	wordDebounceCounter
	wordDebounceMaxCount
	wordNextEdge
	wordIONumber
	wordMeanExecTime

	numRegisterWords
)

// regionWords is the size of the register region; the program area follows it.
const regionWords = 16

const (
	// mask16 is the part of each word the coprocessor can read.
	mask16 = 0xFFFF

	magicValue = 0x554C5050 // "ULPP"

	stateStopped = 0
	stateRunning = 1

	pinInput = 1 << 0
	pinHold  = 1 << 1
)

// ExecTimeUnit is the resolution of the mean_exec_time register.
const ExecTimeUnit = 10 * time.Microsecond

// MaxWakePeriod is the longest iteration mean_exec_time can hold.
const MaxWakePeriod = mask16 * ExecTimeUnit

// execUnits converts d to mean_exec_time units, clamped to the register.
func execUnits(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}
	n := d / ExecTimeUnit
	if n > mask16 {
		n = mask16
	}
	return uint32(n)
}

// Registers is the block of words shared between the coprocessor and the
// main processor.
//
// Ownership: the coprocessor increments edge_count and run_count and owns
// next_edge and debounce_counter. The main processor owns mean_exec_time and
// clears edge_count/run_count through Drain. Every access is a single atomic
// word operation, so no lock is needed.
type Registers struct {
	w []uint32
}

func newRegisters(words []uint32) *Registers {
	return &Registers{w: words[:regionWords:regionWords]}
}

func (r *Registers) load(i int) uint32 { return atomic.LoadUint32(&r.w[i]) }

func (r *Registers) store(i int, v uint32) { atomic.StoreUint32(&r.w[i], v) }

// take reads a counter and clears it in one operation.
func (r *Registers) take(i int) uint32 { return atomic.SwapUint32(&r.w[i], 0) & mask16 }

// incr adds one to a 16-bit counter, wrapping at the register width.
// A concurrent take either sees the old value or the new one, never loses it.
func (r *Registers) incr(i int) {
	for {
		old := atomic.LoadUint32(&r.w[i])
		if atomic.CompareAndSwapUint32(&r.w[i], old, (old+1)&mask16) {
			return
		}
	}
}

// EdgeCount returns debounced edges counted since the last drain.
func (r *Registers) EdgeCount() uint32 { return r.load(wordEdgeCount) & mask16 }

// RunCount returns program iterations since the last drain.
func (r *Registers) RunCount() uint32 { return r.load(wordRunCount) & mask16 }

// DebounceCounter returns the samples still needed before the pending edge is confirmed.
func (r *Registers) DebounceCounter() uint32 { return r.load(wordDebounceCounter) & mask16 }

// DebounceMaxCount returns the configured debounce threshold.
func (r *Registers) DebounceMaxCount() uint32 { return r.load(wordDebounceMaxCount) & mask16 }

// NextEdge returns the level the input moves to on the next edge.
func (r *Registers) NextEdge() uint32 { return r.load(wordNextEdge) & 1 }

// IONumber returns the retained I/O index the program samples.
func (r *Registers) IONumber() int { return int(r.load(wordIONumber) & mask16) }

// MeanExecTime returns the main processor's estimate of one iteration.
func (r *Registers) MeanExecTime() time.Duration {
	return time.Duration(r.load(wordMeanExecTime)&mask16) * ExecTimeUnit
}

// WakePeriod returns the interval between program iterations.
func (r *Registers) WakePeriod() time.Duration {
	return time.Duration(r.load(wordWakePeriod)) * time.Microsecond
}

// CountModes returns the configured rising and falling edge modes.
func (r *Registers) CountModes() (rising, falling CountMode) {
	m := r.load(wordCountMode)
	return CountMode(m & 0xFF), CountMode((m >> 8) & 0xFF)
}

// Running reports whether a loaded program has been started.
func (r *Registers) Running() bool {
	return r.load(wordMagic) == magicValue && r.load(wordState) == stateRunning
}

// Held reports whether the sampled pin was configured as a held input.
func (r *Registers) Held() bool {
	return r.load(wordPinConfig)&(pinInput|pinHold) == pinInput|pinHold
}
