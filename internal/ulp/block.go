package ulp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPinNotRetained is returned when a pin cannot be sampled by the
	// coprocessor while the main processor sleeps.
	ErrPinNotRetained = errors.New("ulp: pin is not a retained (RTC) I/O")

	// ErrNotLoaded is returned by Run when no program image has been loaded.
	ErrNotLoaded = errors.New("ulp: no program loaded")
)

// Platform is the set of coprocessor facilities that Start and Resume drive.
type Platform interface {
	// LoadBinary copies a program image into coprocessor memory.
	LoadBinary(image []byte) error

	// RTCIONumber maps a GPIO to its retained I/O index.
	RTCIONumber(gpio int) (int, bool)

	// ConfigureInput makes gpio a retained input whose configuration is held across sleep.
	ConfigureInput(gpio int) error

	// SetWakeupPeriod sets the interval between program iterations.
	SetWakeupPeriod(d time.Duration) error

	// SetCountMode selects which edge directions are counted.
	SetCountMode(rising, falling CountMode)

	// Run starts the loaded program.
	Run() error

	// Registers returns the shared registers.
	Registers() *Registers

	// WokeFromSleep reports whether this boot followed a sleep cycle, i.e. the
	// coprocessor program was already running when the main processor started.
	WokeFromSleep() bool
}

// Block is a Platform backed by a retained Memory block.
type Block struct {
	mem     Memory
	regs    *Registers
	program []uint32
	rtcio   map[int]int
}

// NewBlock wraps mem. rtcio maps GPIO numbers to retained I/O indices; nil
// means DefaultRTCIOMap.
func NewBlock(mem Memory, rtcio map[int]int) *Block {
	if rtcio == nil {
		rtcio = DefaultRTCIOMap
	}
	words := mem.Words()
	return &Block{
		mem:     mem,
		regs:    newRegisters(words),
		program: words[regionWords : regionWords+ReserveMem/4],
		rtcio:   rtcio,
	}
}

// Registers returns the shared registers.
func (b *Block) Registers() *Registers { return b.regs }

// WokeFromSleep reports whether a started program survived in retained memory.
func (b *Block) WokeFromSleep() bool { return b.regs.Running() }

// LoadBinary validates image and copies its text and data sections into the
// program area, zeroing bss. The program is stopped while loading.
func (b *Block) LoadBinary(image []byte) error {
	h, err := parseImage(image)
	if err != nil {
		return err
	}

	b.regs.store(wordState, stateStopped)

	sections := image[h.TextOffset : int(h.TextOffset)+int(h.TextSize)+int(h.DataSize)]
	n := len(sections) / 4
	for i := 0; i < n; i++ {
		b.program[i] = binary.LittleEndian.Uint32(sections[i*4:])
	}
	for i := n; i < len(b.program); i++ {
		b.program[i] = 0
	}

	b.regs.store(wordImageSize, uint32(h.loadSize()))
	b.regs.store(wordMagic, magicValue)
	return nil
}

// RTCIONumber maps a GPIO to its retained I/O index.
func (b *Block) RTCIONumber(gpio int) (int, bool) {
	n, ok := b.rtcio[gpio]
	return n, ok
}

// GPIONumber is the inverse of RTCIONumber.
func (b *Block) GPIONumber(rtcio int) (int, bool) {
	for g, n := range b.rtcio {
		if n == rtcio {
			return g, true
		}
	}
	return 0, false
}

// ConfigureInput marks gpio as a held retained input.
func (b *Block) ConfigureInput(gpio int) error {
	if _, ok := b.rtcio[gpio]; !ok {
		return fmt.Errorf("%w: GPIO%d", ErrPinNotRetained, gpio)
	}
	b.regs.store(wordPinConfig, pinInput|pinHold)
	return nil
}

// SetWakeupPeriod sets the interval between program iterations.
func (b *Block) SetWakeupPeriod(d time.Duration) error {
	us := d.Microseconds()
	if us <= 0 || d > MaxWakePeriod {
		return fmt.Errorf("ulp: wake period %v out of range", d)
	}
	b.regs.store(wordWakePeriod, uint32(us))
	return nil
}

// SetCountMode selects which edge directions are counted.
func (b *Block) SetCountMode(rising, falling CountMode) {
	b.regs.store(wordCountMode, uint32(rising)&0xFF|(uint32(falling)&0xFF)<<8)
}

// Run starts the loaded program.
func (b *Block) Run() error {
	if b.regs.load(wordMagic) != magicValue || b.regs.load(wordImageSize) == 0 {
		return ErrNotLoaded
	}
	b.regs.store(wordState, stateRunning)
	return nil
}

// Stop halts the program. The counters are left as they are.
func (b *Block) Stop() {
	b.regs.store(wordState, stateStopped)
}

// Close releases the underlying memory.
func (b *Block) Close() error {
	return b.mem.Close()
}
