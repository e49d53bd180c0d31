package ulp

// ReserveMem is the number of bytes reserved for the program image.
const ReserveMem = 1024

// MemSize is the size in bytes of a retained memory block: the register
// region followed by the program area.
const MemSize = regionWords*4 + ReserveMem

// Memory is a block of retained memory shared with the coprocessor.
type Memory interface {
	// Words returns the block as native words. The slice aliases the memory.
	Words() []uint32

	// Close releases the mapping. The contents are retained.
	Close() error
}

type heapMemory struct {
	words []uint32
}

// NewMemory returns an in-process block. It survives only as long as the
// process, which is enough for tests and for running both sides in one binary.
func NewMemory() Memory {
	return &heapMemory{words: make([]uint32, MemSize/4)}
}

func (m *heapMemory) Words() []uint32 { return m.words }

func (m *heapMemory) Close() error { return nil }
