package pnm

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
)

// Subtype selects the Netpbm flavour written by the encoder.
type Subtype int

const (
	// PAM writes P7 with a tuple type matching the image.
	PAM Subtype = iota
	// PPM writes raw P6, dropping alpha.
	PPM
	// PGM writes raw P5 luminance.
	PGM
)

func (s Subtype) String() string {
	switch s {
	case PAM:
		return "pam"
	case PPM:
		return "ppm"
	case PGM:
		return "pgm"
	default:
		return fmt.Sprintf("Subtype(%d)", int(s))
	}
}

// ParseSubtype maps pam, ppm or pgm to a Subtype.
func ParseSubtype(name string) (Subtype, error) {
	for _, s := range []Subtype{PAM, PPM, PGM} {
		if s.String() == name {
			return s, nil
		}
	}
	return PAM, fmt.Errorf("pnm: unknown subtype %q", name)
}

// Options are the encoding parameters.
type Options struct {
	Subtype Subtype
}

// Encode writes m to w as PAM.
func Encode(w io.Writer, m image.Image) error {
	return EncodeWithOptions(w, m, Options{})
}

// EncodeWithOptions writes m to w in the flavour chosen by o.
func EncodeWithOptions(w io.Writer, m image.Image, o Options) error {
	bw := bufio.NewWriter(w)
	size := m.Bounds().Size()

	var err error
	switch o.Subtype {
	case PGM:
		_, err = fmt.Fprintf(bw, "P5\n%d %d\n255\n", size.X, size.Y)
		if err == nil {
			err = writeGray(bw, m)
		}
	case PPM:
		_, err = fmt.Fprintf(bw, "P6\n%d %d\n255\n", size.X, size.Y)
		if err == nil {
			err = writeTuples(bw, imaging.Clone(m), 3)
		}
	case PAM:
		err = writePAM(bw, m)
	default:
		return fmt.Errorf("pnm: unknown subtype %d", o.Subtype)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

func isGray(m image.Image) bool {
	model := m.ColorModel()
	return model == color.GrayModel || model == color.Gray16Model
}

func writePAM(w *bufio.Writer, m image.Image) error {
	size := m.Bounds().Size()
	if isGray(m) {
		if err := writePAMHeader(w, size, 1, "GRAYSCALE"); err != nil {
			return err
		}
		return writeGray(w, m)
	}
	nrgba := imaging.Clone(m)
	depth, tupleType := 4, "RGB_ALPHA"
	if nrgba.Opaque() {
		depth, tupleType = 3, "RGB"
	}
	if err := writePAMHeader(w, size, depth, tupleType); err != nil {
		return err
	}
	return writeTuples(w, nrgba, depth)
}

func writePAMHeader(w io.Writer, size image.Point, depth int, tupleType string) error {
	_, err := fmt.Fprintf(w, "P7\nWIDTH %d\nHEIGHT %d\nDEPTH %d\nMAXVAL 255\nTUPLTYPE %s\nENDHDR\n",
		size.X, size.Y, depth, tupleType)
	return err
}

func writeGray(w *bufio.Writer, m image.Image) error {
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if err := w.WriteByte(color.GrayModel.Convert(m.At(x, y)).(color.Gray).Y); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeTuples writes the first depth channels of every pixel.
func writeTuples(w *bufio.Writer, img *image.NRGBA, depth int) error {
	for i := 0; i < len(img.Pix); i += 4 {
		if _, err := w.Write(img.Pix[i : i+depth]); err != nil {
			return err
		}
	}
	return nil
}
