package qoi

import (
	"bufio"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// Encode writes the Image m to w in QOI format. Any Image may be encoded, but images that are not image.NRGBA are converted first.
func Encode(w io.Writer, m image.Image) error {
	return NewEncoder(w, m).Encode()
}

type Encoder struct {
	out      *bufio.Writer
	img      *image.NRGBA
	header   Header
	window   [windowLength]pixel
	previous pixel
	run      byte
}

func NewEncoder(out io.Writer, img image.Image) *Encoder {
	return &Encoder{out: bufio.NewWriter(out), img: toNRGBA(img)}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	return imaging.Clone(img)
}

func (enc *Encoder) Encode() error {
	size := enc.img.Bounds().Size()
	enc.header = Header{
		magic:      qoiMagicBytes,
		width:      uint32(size.X),
		height:     uint32(size.Y),
		channels:   channelsOf(enc.img),
		colorspace: ColorspaceSRGB,
	}
	if err := enc.header.validate(); err != nil {
		return err
	}
	if err := enc.header.write(enc.out); err != nil {
		return fmt.Errorf("could not encode the header: %w", err)
	}
	if err := enc.encodeBody(); err != nil {
		return fmt.Errorf("could not encode the image body: %w", err)
	}
	return nil
}

func channelsOf(img *image.NRGBA) byte {
	if img.Opaque() {
		return 3
	}
	return 4
}

func (enc *Encoder) encodeBody() error {
	enc.previous = newPixel(pixelBytes{0, 0, 0, 255})
	bounds := enc.img.Bounds()
	rowLength := bounds.Dx() * 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		offset := enc.img.PixOffset(bounds.Min.X, y)
		row := enc.img.Pix[offset : offset+rowLength]
		for x := 0; x < rowLength; x += 4 {
			current := newPixel(pixelBytes{row[x], row[x+1], row[x+2], row[x+3]})
			if err := enc.encodePixel(current); err != nil {
				return err
			}
		}
	}
	if err := enc.flushRun(); err != nil {
		return err
	}
	if _, err := enc.out.Write(endMarker[:]); err != nil {
		return err
	}
	return enc.out.Flush()
}

func (enc *Encoder) encodePixel(current pixel) error {
	if current == enc.previous {
		enc.run++
		if enc.run == maxRun {
			return enc.flushRun()
		}
		return nil
	}
	if err := enc.flushRun(); err != nil {
		return err
	}
	defer func() { enc.previous = current }()

	if enc.window[current.Hash()] == current {
		return enc.op_INDEX(current)
	}
	enc.window[current.Hash()] = current

	diffR, diffG, diffB, diffA := current.Minus(enc.previous)
	switch {
	case diffA != 0:
		return enc.op_RGBA(current)
	case isWithinDIFFSpec(diffR) && isWithinDIFFSpec(diffG) && isWithinDIFFSpec(diffB):
		return enc.op_DIFF(diffR, diffG, diffB)
	case isGreenWithinLUMASpec(diffG) && isWithinLUMASpec(diffR-diffG) && isWithinLUMASpec(diffB-diffG):
		return enc.op_LUMA(diffR, diffG, diffB)
	default:
		return enc.op_RGB(current)
	}
}

func isWithinDIFFSpec(v int8) bool {
	return v >= -diffBias && v < diffBias
}

func isWithinLUMASpec(v int8) bool {
	return v >= -lumaBias && v < lumaBias
}

func isGreenWithinLUMASpec(v int8) bool {
	return v >= -lumaGreenBias && v < lumaGreenBias
}

func (enc *Encoder) flushRun() error {
	if enc.run == 0 {
		return nil
	}
	err := enc.out.WriteByte(opRUN | (enc.run - runBias))
	enc.run = 0
	return err
}

func (enc *Encoder) op_RGB(p pixel) error {
	if err := enc.out.WriteByte(opRGB); err != nil {
		return err
	}
	_, err := enc.out.Write(p.v[:3])
	return err
}

func (enc *Encoder) op_RGBA(p pixel) error {
	if err := enc.out.WriteByte(opRGBA); err != nil {
		return err
	}
	_, err := enc.out.Write(p.v[:])
	return err
}

func (enc *Encoder) op_INDEX(p pixel) error {
	return enc.out.WriteByte(opINDEX | p.Hash())
}

func (enc *Encoder) op_DIFF(r, g, b int8) error {
	return enc.out.WriteByte(opDIFF | byte(r+diffBias)<<4 | byte(g+diffBias)<<2 | byte(b+diffBias))
}

func (enc *Encoder) op_LUMA(r, g, b int8) error {
	if err := enc.out.WriteByte(opLUMA | byte(g+lumaGreenBias)); err != nil {
		return err
	}
	return enc.out.WriteByte(byte(r-g+lumaBias)<<4 | byte(b-g+lumaBias))
}
