package imgconv

import (
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"imgconv/farbfeld"
	"imgconv/format"
	"imgconv/ico"
	"imgconv/pnm"
	"imgconv/qoi"
	"imgconv/tga"
)

// DecodeFunc reads a single image of a known format.
type DecodeFunc func(r io.Reader) (image.Image, error)

// EncodeFunc writes img to w honoring the options that apply to its format.
type EncodeFunc func(w io.Writer, img image.Image, o Options) error

var (
	codecsMu sync.RWMutex
	decoders = map[format.Format]DecodeFunc{}
	encoders = map[format.Format]EncodeFunc{}
)

// RegisterDecoder sets the decoder used when the source format is given
// explicitly. Sniffed input goes through the image package registry instead.
func RegisterDecoder(f format.Format, fn DecodeFunc) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	decoders[f] = fn
}

// RegisterEncoder sets the encoder of a format, replacing any previous one.
func RegisterEncoder(f format.Format, fn EncodeFunc) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	encoders[f] = fn
}

func lookupDecoder(f format.Format) (DecodeFunc, bool) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	fn, ok := decoders[f]
	return fn, ok
}

func lookupEncoder(f format.Format) (EncodeFunc, bool) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	fn, ok := encoders[f]
	return fn, ok
}

// CanEncode reports whether images can be written in f.
func CanEncode(f format.Format) bool {
	_, ok := lookupEncoder(f)
	return ok
}

// CanDecode reports whether images in f can be read.
func CanDecode(f format.Format) bool {
	_, ok := lookupDecoder(f)
	return ok
}

func imagingEncoder(f imaging.Format) EncodeFunc {
	return func(w io.Writer, img image.Image, o Options) error {
		return imaging.Encode(w, img, f,
			imaging.JPEGQuality(o.JPEGQuality),
			imaging.PNGCompressionLevel(o.PNGCompression),
			imaging.GIFNumColors(o.GIFColors),
		)
	}
}

func plainEncoder(fn func(io.Writer, image.Image) error) EncodeFunc {
	return func(w io.Writer, img image.Image, _ Options) error {
		return fn(w, img)
	}
}

func init() {
	RegisterDecoder(format.Png, png.Decode)
	RegisterDecoder(format.Jpeg, jpeg.Decode)
	RegisterDecoder(format.Gif, gif.Decode)
	RegisterDecoder(format.Bmp, bmp.Decode)
	RegisterDecoder(format.Tiff, tiff.Decode)
	RegisterDecoder(format.Ico, ico.Decode)
	RegisterDecoder(format.Tga, tga.Decode)
	RegisterDecoder(format.Farbfeld, farbfeld.Decode)
	RegisterDecoder(format.Pnm, pnm.Decode)
	RegisterDecoder(format.Qoi, qoi.Decode)

	RegisterEncoder(format.Png, imagingEncoder(imaging.PNG))
	RegisterEncoder(format.Jpeg, imagingEncoder(imaging.JPEG))
	RegisterEncoder(format.Gif, imagingEncoder(imaging.GIF))
	RegisterEncoder(format.Bmp, imagingEncoder(imaging.BMP))
	RegisterEncoder(format.Tiff, imagingEncoder(imaging.TIFF))
	RegisterEncoder(format.Ico, plainEncoder(ico.Encode))
	RegisterEncoder(format.Tga, plainEncoder(tga.Encode))
	RegisterEncoder(format.Farbfeld, plainEncoder(farbfeld.Encode))
	RegisterEncoder(format.Qoi, plainEncoder(qoi.Encode))
	RegisterEncoder(format.Pnm, func(w io.Writer, img image.Image, o Options) error {
		return pnm.EncodeWithOptions(w, img, pnm.Options{Subtype: o.PNMSubtype})
	})
}
