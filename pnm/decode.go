// Package pnm reads and writes the Netpbm family: PBM, PGM and PPM in their
// plain (P1, P2, P3) and raw (P4, P5, P6) flavours, and PAM (P7). Bitmaps are
// read but never written.
package pnm

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"
)

const maxPixels = 400_000_000

var (
	// ErrInvalidHeader is returned for malformed Netpbm headers.
	ErrInvalidHeader = errors.New("pnm: invalid header")

	// ErrUnsupported is returned for valid Netpbm variants this package does not read.
	ErrUnsupported = errors.New("pnm: unsupported subtype")
)

func init() {
	for _, magic := range []string{"P1", "P2", "P3", "P4", "P5", "P6", "P7"} {
		image.RegisterFormat("pnm", magic, Decode, DecodeConfig)
	}
}

type header struct {
	magic     string
	width     int
	height    int
	depth     int
	maxval    int
	tupleType string
}

func (h header) plain() bool {
	return h.magic == "P2" || h.magic == "P3"
}

func (h header) bitmap() bool {
	return h.magic == "P1" || h.magic == "P4"
}

func (h header) bytesPerSample() int {
	if h.maxval < 256 {
		return 1
	}
	return 2
}

func (h header) validate() error {
	if h.width <= 0 || h.height <= 0 {
		return fmt.Errorf("%w: empty dimensions %dx%d", ErrInvalidHeader, h.width, h.height)
	}
	if uint64(h.width)*uint64(h.height) > maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds the pixel limit", ErrInvalidHeader, h.width, h.height)
	}
	if h.maxval < 1 || h.maxval > 0xffff {
		return fmt.Errorf("%w: maxval %d out of range", ErrInvalidHeader, h.maxval)
	}
	if h.depth < 1 || h.depth > 4 {
		return fmt.Errorf("%w: depth %d", ErrUnsupported, h.depth)
	}
	return nil
}

func readHeader(r *bufio.Reader) (header, error) {
	var magic [2]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	h := header{magic: string(magic[:])}
	switch h.magic {
	case "P7":
		if err := readPAMHeader(r, &h); err != nil {
			return header{}, err
		}
		return h, h.validate()
	case "P2", "P5":
		h.depth = 1
	case "P3", "P6":
		h.depth = 3
	case "P1", "P4":
		h.depth, h.maxval = 1, 1
	default:
		return header{}, fmt.Errorf("%w: invalid magic '%s'", ErrInvalidHeader, h.magic)
	}
	fields := []*int{&h.width, &h.height, &h.maxval}
	if h.bitmap() {
		fields = fields[:2]
	}
	for _, field := range fields {
		v, err := readInt(r)
		if err != nil {
			return header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
		}
		*field = v
	}
	return h, h.validate()
}

func readPAMHeader(r *bufio.Reader, h *header) error {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("%w: missing ENDHDR", ErrInvalidHeader)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if fields[0] == "ENDHDR" {
			return nil
		}
		if len(fields) < 2 {
			return fmt.Errorf("%w: malformed line %q", ErrInvalidHeader, strings.TrimSpace(line))
		}
		if fields[0] == "TUPLTYPE" {
			h.tupleType = strings.Join(fields[1:], " ")
			continue
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidHeader, err)
		}
		switch fields[0] {
		case "WIDTH":
			h.width = v
		case "HEIGHT":
			h.height = v
		case "DEPTH":
			h.depth = v
		case "MAXVAL":
			h.maxval = v
		}
	}
}

// readToken returns the next whitespace separated token, skipping comments.
// The single whitespace byte ending the token is consumed.
func readToken(r *bufio.Reader) (string, error) {
	var tok []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(tok) > 0 {
				return string(tok), nil
			}
			return "", err
		}
		switch {
		case b == '#':
			if _, err := r.ReadString('\n'); err != nil && err != io.EOF {
				return "", err
			}
			if len(tok) > 0 {
				return string(tok), nil
			}
		case isSpace(b):
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func readInt(r *bufio.Reader) (int, error) {
	tok, err := readToken(r)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(tok)
}

// DecodeConfig returns the color model and dimensions of a Netpbm image.
func DecodeConfig(r io.Reader) (image.Config, error) {
	h, err := readHeader(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: colorModel(h), Width: h.width, Height: h.height}, nil
}

func colorModel(h header) color.Model {
	switch {
	case h.depth == 1 && h.bytesPerSample() == 1:
		return color.GrayModel
	case h.depth == 1:
		return color.Gray16Model
	case h.bytesPerSample() == 1:
		return color.NRGBAModel
	default:
		return color.NRGBA64Model
	}
}

// Decode reads a Netpbm image from r.
func Decode(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	samples, err := readSamples(br, h)
	if err != nil {
		return nil, err
	}
	return buildImage(h, samples), nil
}

func readSamples(r *bufio.Reader, h header) ([]uint16, error) {
	samples := make([]uint16, h.width*h.height*h.depth)
	switch h.magic {
	case "P1":
		return samples, readPlainBits(r, samples)
	case "P4":
		return samples, readRawBits(r, h.width, samples)
	}
	if h.plain() {
		for i := range samples {
			v, err := readInt(r)
			if err != nil {
				return nil, fmt.Errorf("pnm: could not read sample %d: %w", i, err)
			}
			if v < 0 || v > h.maxval {
				return nil, fmt.Errorf("pnm: sample %d exceeds maxval %d", v, h.maxval)
			}
			samples[i] = uint16(v)
		}
		return samples, nil
	}

	bps := h.bytesPerSample()
	raw := make([]byte, len(samples)*bps)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("pnm: could not read the raster: %w", err)
	}
	for i := range samples {
		if bps == 1 {
			samples[i] = uint16(raw[i])
		} else {
			samples[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
		}
		if int(samples[i]) > h.maxval {
			return nil, fmt.Errorf("pnm: sample %d exceeds maxval %d", samples[i], h.maxval)
		}
	}
	return samples, nil
}

// PBM stores 1 for black, the samples hold gray levels with maxval 1.
func bitSample(bit byte) uint16 {
	return uint16(1 - bit)
}

// readPlainBits reads P1 digits, which need no whitespace between them.
func readPlainBits(r *bufio.Reader, samples []uint16) error {
	for i := 0; i < len(samples); {
		b, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("pnm: could not read bit %d: %w", i, err)
		}
		switch {
		case b == '0' || b == '1':
			samples[i] = bitSample(b - '0')
			i++
		case b == '#':
			if _, err := r.ReadString('\n'); err != nil {
				return fmt.Errorf("pnm: could not read bit %d: %w", i, err)
			}
		case !isSpace(b):
			return fmt.Errorf("pnm: invalid bit %q", b)
		}
	}
	return nil
}

// readRawBits reads P4 rows packed eight pixels a byte, most significant bit
// first, each row padded to a whole byte.
func readRawBits(r *bufio.Reader, width int, samples []uint16) error {
	row := make([]byte, (width+7)/8)
	for y := 0; y < len(samples)/width; y++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return fmt.Errorf("pnm: could not read the raster: %w", err)
		}
		for x := 0; x < width; x++ {
			samples[y*width+x] = bitSample(row[x/8] >> (7 - x%8) & 1)
		}
	}
	return nil
}

func scale8(v uint16, maxval int) uint8 {
	return uint8((uint32(v)*0xff + uint32(maxval)/2) / uint32(maxval))
}

func scale16(v uint16, maxval int) uint16 {
	return uint16((uint32(v)*0xffff + uint32(maxval)/2) / uint32(maxval))
}

func buildImage(h header, samples []uint16) image.Image {
	rect := image.Rect(0, 0, h.width, h.height)
	pixels := h.width * h.height
	wide := h.bytesPerSample() == 2

	if h.depth == 1 {
		if wide {
			img := image.NewGray16(rect)
			for i, v := range samples {
				s := scale16(v, h.maxval)
				img.Pix[2*i], img.Pix[2*i+1] = uint8(s>>8), uint8(s)
			}
			return img
		}
		img := image.NewGray(rect)
		for i, v := range samples {
			img.Pix[i] = scale8(v, h.maxval)
		}
		return img
	}

	// depth 2 is gray+alpha, 3 is RGB, 4 is RGB+alpha
	rgba := func(i int) (r, g, b, a uint16, hasAlpha bool) {
		px := samples[i*h.depth : (i+1)*h.depth]
		switch h.depth {
		case 2:
			return px[0], px[0], px[0], px[1], true
		case 3:
			return px[0], px[1], px[2], 0, false
		default:
			return px[0], px[1], px[2], px[3], true
		}
	}
	if wide {
		img := image.NewNRGBA64(rect)
		for i := 0; i < pixels; i++ {
			r, g, b, a, hasAlpha := rgba(i)
			c := color.NRGBA64{R: scale16(r, h.maxval), G: scale16(g, h.maxval), B: scale16(b, h.maxval), A: 0xffff}
			if hasAlpha {
				c.A = scale16(a, h.maxval)
			}
			img.SetNRGBA64(i%h.width, i/h.width, c)
		}
		return img
	}
	img := image.NewNRGBA(rect)
	for i := 0; i < pixels; i++ {
		r, g, b, a, hasAlpha := rgba(i)
		c := color.NRGBA{R: scale8(r, h.maxval), G: scale8(g, h.maxval), B: scale8(b, h.maxval), A: 0xff}
		if hasAlpha {
			c.A = scale8(a, h.maxval)
		}
		img.Pix[4*i], img.Pix[4*i+1], img.Pix[4*i+2], img.Pix[4*i+3] = c.R, c.G, c.B, c.A
	}
	return img
}
