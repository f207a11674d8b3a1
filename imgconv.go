// Package imgconv converts images between formats.
//
// Input is sniffed from its leading bytes and decoded through the image
// package registry, which the codec packages of this module join at init.
// Output goes through the encoder registered for the target format.
package imgconv

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"imgconv/format"
)

var (
	// ErrUnknownFormat is returned for a target or guessed format of format.Unknown.
	ErrUnknownFormat = errors.New("unknown image format")

	// ErrUnsupportedFormat is returned for formats that are recognised but
	// cannot be read or written.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrEmptyInput is returned when there are no bytes to convert.
	ErrEmptyInput = errors.New("empty input")

	// ErrDecode wraps failures to read the input image.
	ErrDecode = errors.New("could not decode image")

	// ErrEncode wraps failures to write the output image.
	ErrEncode = errors.New("could not encode image")
)

// Guess returns the format of buf from its magic bytes.
func Guess(buf []byte) (format.Format, error) {
	f := format.Guess(buf)
	if f == format.Unknown {
		return f, ErrUnknownFormat
	}
	return f, nil
}

// Convert decodes buf, whatever its format, and encodes it as to.
func Convert(buf []byte, to format.Format, opts ...Option) ([]byte, error) {
	return ConvertFrom(buf, format.Unknown, to, opts...)
}

// ConvertFrom is Convert with an explicit source format. A source of
// format.Unknown sniffs the input.
func ConvertFrom(buf []byte, from, to format.Format, opts ...Option) ([]byte, error) {
	if to == format.Unknown {
		return nil, ErrUnknownFormat
	}
	if len(buf) == 0 {
		return nil, ErrEmptyInput
	}
	if !CanEncode(to) {
		return nil, fmt.Errorf("%w: no encoder for %s", ErrUnsupportedFormat, to)
	}

	o := newOptions(opts)
	img, _, err := decode(buf, from, o)
	if err != nil {
		return nil, err
	}

	out := new(bytes.Buffer)
	if err := encode(out, img, to, o); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decode reads the image held in buf. With a hint of format.Unknown the
// format is sniffed and the detected format is returned along with the image.
func Decode(buf []byte, hint format.Format, opts ...Option) (image.Image, format.Format, error) {
	if len(buf) == 0 {
		return nil, hint, ErrEmptyInput
	}
	return decode(buf, hint, newOptions(opts))
}

// Encode writes img to w as to.
func Encode(w io.Writer, img image.Image, to format.Format, opts ...Option) error {
	if to == format.Unknown {
		return ErrUnknownFormat
	}
	return encode(w, img, to, newOptions(opts))
}

func decode(buf []byte, from format.Format, o Options) (image.Image, format.Format, error) {
	if from == format.Unknown || (from == format.Jpeg && o.AutoOrientation) {
		img, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(o.AutoOrientation))
		if err != nil {
			return nil, format.Guess(buf), fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return img, format.Guess(buf), nil
	}

	dec, ok := lookupDecoder(from)
	if !ok {
		return nil, from, fmt.Errorf("%w: no decoder for %s", ErrUnsupportedFormat, from)
	}
	img, err := dec(bytes.NewReader(buf))
	if err != nil {
		return nil, from, fmt.Errorf("%w: %s: %w", ErrDecode, from, err)
	}
	return img, from, nil
}

func encode(w io.Writer, img image.Image, to format.Format, o Options) error {
	enc, ok := lookupEncoder(to)
	if !ok {
		return fmt.Errorf("%w: no encoder for %s", ErrUnsupportedFormat, to)
	}
	if err := enc(w, img, o); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, to, err)
	}
	return nil
}
