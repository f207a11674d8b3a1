// Package ico reads and writes Windows icon files.
//
// The encoder writes a single PNG-compressed entry. The decoder returns the
// largest entry of the directory, stored either as PNG or as a 24 or 32-bit
// device independent bitmap.
package ico

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
)

const (
	dirLength   = 6
	entryLength = 16
	dibLength   = 40

	// MaxSize is the largest icon edge in pixels.
	MaxSize = 256
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

var (
	// ErrInvalidHeader is returned for malformed icon directories.
	ErrInvalidHeader = errors.New("ico: invalid header")

	// ErrTooLarge is returned when encoding an image wider or taller than MaxSize.
	ErrTooLarge = errors.New("ico: image too large")

	// ErrUnsupported is returned for bitmap entries with palettes or compression.
	ErrUnsupported = errors.New("ico: unsupported entry")
)

func init() {
	image.RegisterFormat("ico", "\x00\x00\x01\x00", Decode, DecodeConfig)
}

type entry struct {
	width  int
	height int
	size   uint32
	offset uint32
}

func readDirectory(r io.Reader) ([]entry, error) {
	var dir [dirLength]byte
	if _, err := io.ReadFull(r, dir[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if binary.LittleEndian.Uint16(dir[0:]) != 0 || binary.LittleEndian.Uint16(dir[2:]) != 1 {
		return nil, fmt.Errorf("%w: not an icon", ErrInvalidHeader)
	}
	count := int(binary.LittleEndian.Uint16(dir[4:]))
	if count == 0 {
		return nil, fmt.Errorf("%w: empty directory", ErrInvalidHeader)
	}

	entries := make([]entry, count)
	var b [entryLength]byte
	for i := range entries {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
		}
		entries[i] = entry{
			width:  dimension(b[0]),
			height: dimension(b[1]),
			size:   binary.LittleEndian.Uint32(b[8:]),
			offset: binary.LittleEndian.Uint32(b[12:]),
		}
	}
	return entries, nil
}

// A zero byte in the directory stands for 256.
func dimension(b byte) int {
	if b == 0 {
		return MaxSize
	}
	return int(b)
}

func largest(entries []entry) entry {
	best := entries[0]
	for _, e := range entries[1:] {
		if e.width*e.height > best.width*best.height {
			best = e
		}
	}
	return best
}

// DecodeConfig returns the dimensions of the largest entry.
func DecodeConfig(r io.Reader) (image.Config, error) {
	entries, err := readDirectory(r)
	if err != nil {
		return image.Config{}, err
	}
	e := largest(entries)
	return image.Config{ColorModel: color.NRGBAModel, Width: e.width, Height: e.height}, nil
}

// Decode reads the largest entry of an icon file.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	entries, err := readDirectory(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	e := largest(entries)
	end := uint64(e.offset) + uint64(e.size)
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: entry data out of bounds", ErrInvalidHeader)
	}
	payload := data[e.offset:end]

	if bytes.HasPrefix(payload, pngMagic) {
		img, err := imaging.Decode(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("ico: could not decode the png entry: %w", err)
		}
		return img, nil
	}
	return decodeDIB(payload)
}

func decodeDIB(b []byte) (image.Image, error) {
	if len(b) < dibLength {
		return nil, fmt.Errorf("%w: short bitmap header", ErrInvalidHeader)
	}
	width := int(int32(binary.LittleEndian.Uint32(b[4:])))
	// the height covers both the color bitmap and the AND mask
	height := int(int32(binary.LittleEndian.Uint32(b[8:]))) / 2
	bitCount := binary.LittleEndian.Uint16(b[14:])
	compression := binary.LittleEndian.Uint32(b[16:])
	if width <= 0 || height <= 0 || width > MaxSize || height > MaxSize {
		return nil, fmt.Errorf("%w: bitmap dimensions %dx%d", ErrInvalidHeader, width, height)
	}
	if compression != 0 || (bitCount != 24 && bitCount != 32) {
		return nil, fmt.Errorf("%w: %d bit bitmap with compression %d", ErrUnsupported, bitCount, compression)
	}

	bpp := int(bitCount / 8)
	stride := (width*bpp + 3) &^ 3
	maskStride := ((width+7)/8 + 3) &^ 3
	headerSize := binary.LittleEndian.Uint32(b[0:])
	if headerSize < dibLength || uint64(headerSize) > uint64(len(b)) {
		return nil, fmt.Errorf("%w: bitmap header size %d", ErrInvalidHeader, headerSize)
	}
	pixels := b[headerSize:]
	if len(pixels) < stride*height {
		return nil, fmt.Errorf("%w: short bitmap data", ErrInvalidHeader)
	}
	mask := pixels[stride*height:]
	hasMask := len(mask) >= maskStride*height

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for row := 0; row < height; row++ {
		y := height - 1 - row
		line := pixels[row*stride:]
		for x := 0; x < width; x++ {
			px := line[x*bpp:]
			c := color.NRGBA{R: px[2], G: px[1], B: px[0], A: 0xff}
			if bpp == 4 {
				c.A = px[3]
			} else if hasMask && mask[row*maskStride+x/8]&(0x80>>(x%8)) != 0 {
				c.A = 0
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}

// Encode writes m to w as an icon holding one PNG entry.
func Encode(w io.Writer, m image.Image) error {
	size := m.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("%w: empty image", ErrInvalidHeader)
	}
	if size.X > MaxSize || size.Y > MaxSize {
		return fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrTooLarge, size.X, size.Y, MaxSize, MaxSize)
	}

	payload := new(bytes.Buffer)
	if err := imaging.Encode(payload, m, imaging.PNG); err != nil {
		return fmt.Errorf("ico: could not encode the png entry: %w", err)
	}

	var head [dirLength + entryLength]byte
	binary.LittleEndian.PutUint16(head[2:], 1)
	binary.LittleEndian.PutUint16(head[4:], 1)
	e := head[dirLength:]
	e[0], e[1] = byte(size.X), byte(size.Y) // 256 wraps to 0
	binary.LittleEndian.PutUint16(e[4:], 1)
	binary.LittleEndian.PutUint16(e[6:], 32)
	binary.LittleEndian.PutUint32(e[8:], uint32(payload.Len()))
	binary.LittleEndian.PutUint32(e[12:], dirLength+entryLength)

	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err := payload.WriteTo(w)
	return err
}
