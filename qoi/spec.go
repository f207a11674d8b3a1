package qoi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	opRGB   byte = 0b11111110
	opRGBA  byte = 0b11111111
	opINDEX byte = 0b00000000
	opDIFF  byte = 0b01000000
	opLUMA  byte = 0b10000000
	opRUN   byte = 0b11000000

	mask2B byte = 0b11000000
)

const (
	windowLength = 64

	diffBias      = 2
	lumaBias      = 8
	lumaGreenBias = 32
	runBias       = 1

	maxRun = 62

	// maxPixels bounds the allocation a header is allowed to request.
	maxPixels = 400_000_000
)

const (
	ColorspaceSRGB   byte = 0
	ColorspaceLinear byte = 1
)

const headerLength = 4 + 4 + 4 + 1 + 1

const qoiMagic = "qoif"

var qoiMagicBytes = [4]byte{'q', 'o', 'i', 'f'}

var endMarker = [8]byte{0, 0, 0, 0, 0, 0, 0, 1}

var (
	// ErrInvalidHeader is returned when the stream does not start with a valid QOI header.
	ErrInvalidHeader = errors.New("qoi: invalid header")

	// ErrTruncated is returned when the stream ends before every pixel or the end marker was read.
	ErrTruncated = errors.New("qoi: data is too short")
)

// getOP returns the opcode of b. The 8-bit tags take precedence over the 2-bit ones.
func getOP(b byte) byte {
	if b == opRGB || b == opRGBA {
		return b
	}
	return b & mask2B
}

type headerBytes [headerLength]byte

// Header is the fixed 14 byte preamble of a QOI stream.
type Header struct {
	magic      [4]byte
	width      uint32
	height     uint32
	channels   byte
	colorspace byte
}

func (h Header) Width() int       { return int(h.width) }
func (h Header) Height() int      { return int(h.height) }
func (h Header) Channels() byte   { return h.channels }
func (h Header) Colorspace() byte { return h.colorspace }

func (h Header) write(w io.Writer) error {
	var b headerBytes
	copy(b[:4], h.magic[:])
	binary.BigEndian.PutUint32(b[4:], h.width)
	binary.BigEndian.PutUint32(b[8:], h.height)
	b[12] = h.channels
	b[13] = h.colorspace
	_, err := w.Write(b[:])
	return err
}

func (h Header) validate() error {
	if h.magic != qoiMagicBytes {
		return fmt.Errorf("%w: invalid magic '%s'", ErrInvalidHeader, h.magic[:])
	}
	if h.width == 0 || h.height == 0 {
		return fmt.Errorf("%w: empty dimensions %dx%d", ErrInvalidHeader, h.width, h.height)
	}
	if uint64(h.width)*uint64(h.height) > maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds the pixel limit", ErrInvalidHeader, h.width, h.height)
	}
	if h.channels != 3 && h.channels != 4 {
		return fmt.Errorf("%w: invalid channel count %d", ErrInvalidHeader, h.channels)
	}
	if h.colorspace > ColorspaceLinear {
		return fmt.Errorf("%w: invalid colorspace %d", ErrInvalidHeader, h.colorspace)
	}
	return nil
}

func interpretHeaderBytes(b headerBytes) (Header, error) {
	h := Header{
		width:      binary.BigEndian.Uint32(b[4:]),
		height:     binary.BigEndian.Uint32(b[8:]),
		channels:   b[12],
		colorspace: b[13],
	}
	copy(h.magic[:], b[:4])
	return h, h.validate()
}
