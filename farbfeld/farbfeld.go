// Package farbfeld implements the farbfeld image format: a magic, two
// big-endian uint32 dimensions and 16-bit big-endian non-premultiplied RGBA
// samples.
package farbfeld

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

const (
	magic        = "farbfeld"
	headerLength = 8 + 4 + 4
	maxPixels    = 400_000_000
)

// ErrInvalidHeader is returned for streams that do not carry a farbfeld header.
var ErrInvalidHeader = errors.New("farbfeld: invalid header")

func init() {
	image.RegisterFormat("farbfeld", magic, Decode, DecodeConfig)
}

func readHeader(r io.Reader) (width, height int, err error) {
	var header [headerLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if string(header[:8]) != magic {
		return 0, 0, fmt.Errorf("%w: invalid magic '%s'", ErrInvalidHeader, header[:8])
	}
	w := binary.BigEndian.Uint32(header[8:])
	h := binary.BigEndian.Uint32(header[12:])
	if uint64(w)*uint64(h) > maxPixels {
		return 0, 0, fmt.Errorf("%w: %dx%d exceeds the pixel limit", ErrInvalidHeader, w, h)
	}
	return int(w), int(h), nil
}

// DecodeConfig returns the dimensions of a farbfeld image.
func DecodeConfig(r io.Reader) (image.Config, error) {
	width, height, err := readHeader(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.NRGBA64Model, Width: width, Height: height}, nil
}

// Decode reads a farbfeld image from r as an *image.NRGBA64.
func Decode(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	width, height, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA64(image.Rect(0, 0, width, height))
	// samples are stored exactly like NRGBA64.Pix
	if _, err := io.ReadFull(br, img.Pix); err != nil {
		return nil, fmt.Errorf("farbfeld: could not read the pixel data: %w", err)
	}
	return img, nil
}

// Encode writes m to w in farbfeld format.
func Encode(w io.Writer, m image.Image) error {
	bounds := m.Bounds()
	bw := bufio.NewWriter(w)

	var header [headerLength]byte
	copy(header[:], magic)
	binary.BigEndian.PutUint32(header[8:], uint32(bounds.Dx()))
	binary.BigEndian.PutUint32(header[12:], uint32(bounds.Dy()))
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}

	row := make([]byte, bounds.Dx()*8)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		if src, ok := m.(*image.NRGBA64); ok {
			offset := src.PixOffset(bounds.Min.X, y)
			copy(row, src.Pix[offset:offset+len(row)])
		} else {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.NRGBA64Model.Convert(m.At(x, y)).(color.NRGBA64)
				i := (x - bounds.Min.X) * 8
				binary.BigEndian.PutUint16(row[i:], c.R)
				binary.BigEndian.PutUint16(row[i+2:], c.G)
				binary.BigEndian.PutUint16(row[i+4:], c.B)
				binary.BigEndian.PutUint16(row[i+6:], c.A)
			}
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}
