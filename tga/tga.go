// Package tga reads and writes Truevision TGA images.
//
// TGA has no magic number, so the decoder is not registered with the image
// package; callers must know the format up front.
package tga

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
)

const (
	headerLength = 18

	// maxPixels bounds the allocation a header is allowed to request.
	maxPixels = 400_000_000
)

const (
	typeTrueColor    = 2
	typeGray         = 3
	typeRLETrueColor = 10
	typeRLEGray      = 11
)

const (
	descriptorAlphaMask = 0x0f
	descriptorRightLeft = 0x10
	descriptorTopDown   = 0x20
)

var (
	// ErrInvalidHeader is returned for headers describing an impossible image.
	ErrInvalidHeader = errors.New("tga: invalid header")

	// ErrUnsupported is returned for color-mapped images and unusual pixel depths.
	ErrUnsupported = errors.New("tga: unsupported image type")
)

type header struct {
	idLength     uint8
	colorMapType uint8
	imageType    uint8
	width        int
	height       int
	bitsPerPixel uint8
	descriptor   uint8
}

func readHeader(r io.Reader) (header, error) {
	var b [headerLength]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	h := header{
		idLength:     b[0],
		colorMapType: b[1],
		imageType:    b[2],
		width:        int(binary.LittleEndian.Uint16(b[12:])),
		height:       int(binary.LittleEndian.Uint16(b[14:])),
		bitsPerPixel: b[16],
		descriptor:   b[17],
	}
	if h.colorMapType != 0 {
		return header{}, fmt.Errorf("%w: color-mapped images", ErrUnsupported)
	}
	switch h.imageType {
	case typeTrueColor, typeRLETrueColor:
		if h.bitsPerPixel != 24 && h.bitsPerPixel != 32 {
			return header{}, fmt.Errorf("%w: %d bits per pixel", ErrUnsupported, h.bitsPerPixel)
		}
	case typeGray, typeRLEGray:
		if h.bitsPerPixel != 8 {
			return header{}, fmt.Errorf("%w: %d bits per gray pixel", ErrUnsupported, h.bitsPerPixel)
		}
	default:
		return header{}, fmt.Errorf("%w: type %d", ErrUnsupported, h.imageType)
	}
	if h.width == 0 || h.height == 0 {
		return header{}, fmt.Errorf("%w: empty dimensions %dx%d", ErrInvalidHeader, h.width, h.height)
	}
	if uint64(h.width)*uint64(h.height) > maxPixels {
		return header{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidHeader, h.width, h.height, maxPixels)
	}
	return h, nil
}

func (h header) rle() bool {
	return h.imageType == typeRLETrueColor || h.imageType == typeRLEGray
}

func (h header) hasAlpha() bool {
	return h.bitsPerPixel == 32 && h.descriptor&descriptorAlphaMask != 0
}

// DecodeConfig returns the dimensions of a TGA image.
func DecodeConfig(r io.Reader) (image.Config, error) {
	h, err := readHeader(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.NRGBAModel, Width: h.width, Height: h.height}, nil
}

// Decode reads a TGA image from r as an *image.NRGBA.
func Decode(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	if _, err := br.Discard(int(h.idLength)); err != nil {
		return nil, fmt.Errorf("tga: could not skip the image id: %w", err)
	}

	bpp := int(h.bitsPerPixel / 8)
	raw := make([]byte, h.width*h.height*bpp)
	if h.rle() {
		err = readRLE(br, raw, bpp)
	} else {
		_, err = io.ReadFull(br, raw)
	}
	if err != nil {
		return nil, fmt.Errorf("tga: could not read the pixel data: %w", err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, h.width, h.height))
	for i := 0; i < h.width*h.height; i++ {
		x, y := i%h.width, i/h.width
		if h.descriptor&descriptorRightLeft != 0 {
			x = h.width - 1 - x
		}
		if h.descriptor&descriptorTopDown == 0 {
			y = h.height - 1 - y
		}
		px := raw[i*bpp : (i+1)*bpp]
		c := color.NRGBA{A: 0xff}
		switch bpp {
		case 1:
			c.R, c.G, c.B = px[0], px[0], px[0]
		default:
			c.B, c.G, c.R = px[0], px[1], px[2]
			if h.hasAlpha() {
				c.A = px[3]
			}
		}
		img.SetNRGBA(x, y, c)
	}
	return img, nil
}

func readRLE(r *bufio.Reader, dst []byte, bpp int) error {
	for len(dst) > 0 {
		packet, err := r.ReadByte()
		if err != nil {
			return err
		}
		count := int(packet&0x7f) + 1
		if count*bpp > len(dst) {
			return fmt.Errorf("%w: run overflows the image", ErrInvalidHeader)
		}
		if packet&0x80 == 0 {
			if _, err := io.ReadFull(r, dst[:count*bpp]); err != nil {
				return err
			}
		} else {
			if _, err := io.ReadFull(r, dst[:bpp]); err != nil {
				return err
			}
			for i := 1; i < count; i++ {
				copy(dst[i*bpp:], dst[:bpp])
			}
		}
		dst = dst[count*bpp:]
	}
	return nil
}

// Encode writes m to w as an uncompressed 32-bit top-down TGA.
func Encode(w io.Writer, m image.Image) error {
	img := imaging.Clone(m)
	size := img.Bounds().Size()
	if size.X > 0xffff || size.Y > 0xffff {
		return fmt.Errorf("%w: %dx%d is larger than 65535x65535", ErrInvalidHeader, size.X, size.Y)
	}

	var b [headerLength]byte
	b[2] = typeTrueColor
	binary.LittleEndian.PutUint16(b[12:], uint16(size.X))
	binary.LittleEndian.PutUint16(b[14:], uint16(size.Y))
	b[16] = 32
	b[17] = descriptorTopDown | 8

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(b[:]); err != nil {
		return err
	}
	var px [4]byte
	for i := 0; i < len(img.Pix); i += 4 {
		px[0], px[1], px[2], px[3] = img.Pix[i+2], img.Pix[i+1], img.Pix[i], img.Pix[i+3]
		if _, err := bw.Write(px[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
