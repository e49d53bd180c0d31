package ulp

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
)

// DefaultImage is the edge-counting program. Its contents are opaque to the
// main processor; only the header is inspected when loading.
//
//go:embed pulse_cnt.bin
var DefaultImage []byte

var (
	// ErrInvalidImage is returned when an image header is malformed.
	ErrInvalidImage = errors.New("ulp: invalid program image")

	// ErrImageTooLarge is returned when an image does not fit in ReserveMem.
	ErrImageTooLarge = errors.New("ulp: program image too large")
)

// imageMagic opens every program image.
var imageMagic = [4]byte{'u', 'l', 'p', 0}

const imageHeaderSize = 12

// imageHeader describes the sections of a program image.
type imageHeader struct {
	TextOffset uint16
	TextSize   uint16
	DataSize   uint16
	BSSSize    uint16
}

func parseImage(image []byte) (imageHeader, error) {
	var h imageHeader
	if len(image) < imageHeaderSize {
		return h, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidImage, len(image))
	}
	if [4]byte(image[0:4]) != imageMagic {
		return h, fmt.Errorf("%w: bad magic % x", ErrInvalidImage, image[0:4])
	}

	h.TextOffset = binary.LittleEndian.Uint16(image[4:])
	h.TextSize = binary.LittleEndian.Uint16(image[6:])
	h.DataSize = binary.LittleEndian.Uint16(image[8:])
	h.BSSSize = binary.LittleEndian.Uint16(image[10:])

	if h.TextOffset < imageHeaderSize {
		return h, fmt.Errorf("%w: text offset %d inside header", ErrInvalidImage, h.TextOffset)
	}
	if (h.TextSize|h.DataSize|h.BSSSize)%4 != 0 {
		return h, fmt.Errorf("%w: section sizes must be word aligned", ErrInvalidImage)
	}
	if int(h.TextOffset)+int(h.TextSize)+int(h.DataSize) > len(image) {
		return h, fmt.Errorf("%w: sections exceed %d byte image", ErrInvalidImage, len(image))
	}
	if n := h.loadSize(); n > ReserveMem {
		return h, fmt.Errorf("%w: %d bytes, %d reserved", ErrImageTooLarge, n, ReserveMem)
	}
	return h, nil
}

// loadSize is the number of bytes the program occupies once loaded.
func (h imageHeader) loadSize() int {
	return int(h.TextSize) + int(h.DataSize) + int(h.BSSSize)
}
