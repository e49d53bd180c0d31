//go:build linux

package ulp

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

type mappedMemory struct {
	data  []byte
	words []uint32
}

// OpenFile maps the retained block stored at path, creating it zeroed if it
// does not exist. Place it on tmpfs (/run) so a reboot clears it the way a
// power cycle clears RTC memory.
func OpenFile(path string) (Memory, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open retained memory: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat retained memory: %w", err)
	}
	if fi.Size() != MemSize {
		// Unknown layout: start from a zeroed block.
		if err := f.Truncate(0); err != nil {
			return nil, fmt.Errorf("reset retained memory: %w", err)
		}
		if err := f.Truncate(MemSize); err != nil {
			return nil, fmt.Errorf("size retained memory: %w", err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, MemSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap retained memory: %w", err)
	}

	return &mappedMemory{
		data:  data,
		words: unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), MemSize/4),
	}, nil
}

func (m *mappedMemory) Words() []uint32 { return m.words }

func (m *mappedMemory) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	m.words = nil
	if err != nil {
		return fmt.Errorf("munmap retained memory: %w", err)
	}
	return nil
}
