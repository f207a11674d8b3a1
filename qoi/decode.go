package qoi

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

func init() {
	image.RegisterFormat("qoi", qoiMagic, Decode, DecodeConfig)
}

// Decode reads a QOI image from r and returns it as an image.Image.
func Decode(r io.Reader) (image.Image, error) {
	decoder := NewDecoder(r)
	if err := decoder.decodeHeader(); err != nil {
		return nil, fmt.Errorf("could not decode the header: %w", err)
	}
	img, err := decoder.decodeBody()
	if err != nil {
		return nil, fmt.Errorf("could not decode the image body: %w", err)
	}
	return img, nil
}

// DecodeConfig returns the color model and dimensions of a QOI image without decoding the entire image.
func DecodeConfig(r io.Reader) (image.Config, error) {
	decoder := NewDecoder(r)
	if err := decoder.decodeHeader(); err != nil {
		return image.Config{}, fmt.Errorf("could not decode the header: %w", err)
	}
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      decoder.header.Width(),
		Height:     decoder.header.Height(),
	}, nil
}

// DecodeHeader reads only the QOI header from r.
func DecodeHeader(r io.Reader) (Header, error) {
	decoder := NewDecoder(r)
	err := decoder.decodeHeader()
	return decoder.header, err
}

type Decoder struct {
	data          *bufio.Reader
	headerBytes   headerBytes
	header        Header
	pixelWindow   [windowLength]pixel
	currentPixel  pixel
	currentByte   byte
	run           byte
	imgPixelBytes []byte
}

func NewDecoder(data io.Reader) *Decoder {
	return &Decoder{data: bufio.NewReader(data)}
}

func (d *Decoder) decodeHeader() error {
	if err := d.readHeader(); err != nil {
		return fmt.Errorf("could not read the header: %w", err)
	}
	header, err := interpretHeaderBytes(d.headerBytes)
	if err != nil {
		return fmt.Errorf("could not interpret the header: %w", err)
	}
	d.header = header
	return nil
}

func (d *Decoder) readHeader() error {
	if _, err := io.ReadFull(d.data, d.headerBytes[:]); err != nil {
		return ErrTruncated
	}
	return nil
}

func (d *Decoder) decodeBody() (*image.NRGBA, error) {
	d.currentPixel = newPixel(pixelBytes{0, 0, 0, 255})
	img := image.NewNRGBA(image.Rect(0, 0, d.header.Width(), d.header.Height()))
	d.imgPixelBytes = img.Pix
	for len(d.imgPixelBytes) > 0 {
		if d.run > 0 {
			d.run--
			d.writeCurrentPixel()
			continue
		}
		b, err := d.data.ReadByte()
		if err != nil {
			return nil, truncated(err)
		}
		d.currentByte = b
		if err := d.dispatchOP(); err != nil {
			return nil, truncated(err)
		}
		d.cacheCurrentPixel()
		d.writeCurrentPixel()
	}
	if err := d.readEndMarker(); err != nil {
		return nil, err
	}
	return img, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}

func (d *Decoder) readEndMarker() error {
	var marker [len(endMarker)]byte
	if _, err := io.ReadFull(d.data, marker[:]); err != nil {
		return truncated(err)
	}
	if marker != endMarker {
		return errors.New("qoi: invalid end marker")
	}
	return nil
}

func (d *Decoder) cacheCurrentPixel() {
	d.pixelWindow[d.currentPixel.Hash()] = d.currentPixel
}

func (d *Decoder) dispatchOP() error {
	switch getOP(d.currentByte) {
	case opRGB:
		return d.op_RGB()
	case opRGBA:
		return d.op_RGBA()
	case opINDEX:
		return d.op_INDEX()
	case opDIFF:
		return d.op_DIFF()
	case opLUMA:
		return d.op_LUMA()
	default:
		return d.op_RUN()
	}
}

func (d *Decoder) op_RGB() error {
	_, err := io.ReadFull(d.data, d.currentPixel.v[:3])
	d.currentPixel.calculateHash()
	return err
}

func (d *Decoder) op_RGBA() error {
	_, err := io.ReadFull(d.data, d.currentPixel.v[:])
	d.currentPixel.calculateHash()
	return err
}

func (d *Decoder) op_INDEX() error {
	d.currentPixel = d.pixelWindow[d.currentByte&^mask2B]
	return nil
}

func (d *Decoder) op_DIFF() error {
	r, g, b := getDIFFValues(d.currentByte)
	d.currentPixel.Add(r, g, b)
	return nil
}

func getDIFFValues(diff byte) (byte, byte, byte) {
	return diff>>4&0b11 - diffBias, diff>>2&0b11 - diffBias, diff&0b11 - diffBias
}

func (d *Decoder) op_LUMA() error {
	b2, err := d.data.ReadByte()
	if err != nil {
		return err
	}
	r, g, b := getLUMAValues(d.currentByte, b2)
	d.currentPixel.Add(r, g, b)
	return nil
}

func getLUMAValues(b1, b2 byte) (byte, byte, byte) {
	diffGreen := b1&^mask2B - lumaGreenBias
	diffRed := diffGreen + b2>>4 - lumaBias
	diffBlue := diffGreen + b2&0b1111 - lumaBias
	return diffRed, diffGreen, diffBlue
}

// op_RUN emits the current pixel now and schedules the remaining repeats.
func (d *Decoder) op_RUN() error {
	d.run = d.currentByte&^mask2B + runBias - 1
	return nil
}

func (d *Decoder) writeCurrentPixel() {
	copy(d.imgPixelBytes[:4], d.currentPixel.v[:])
	d.imgPixelBytes = d.imgPixelBytes[4:]
}
