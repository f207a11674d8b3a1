package imgconv

import (
	"image/png"

	"imgconv/pnm"
)

// DefaultJPEGQuality is the JPEG quality used when none is given.
const DefaultJPEGQuality = 75

// Options are the encoding and decoding parameters of a conversion.
type Options struct {
	// JPEGQuality ranges from 1 to 100 inclusive, higher is better.
	JPEGQuality int

	PNGCompression png.CompressionLevel

	// GIFColors is the maximum palette size, from 1 to 256.
	GIFColors int

	PNMSubtype pnm.Subtype

	// AutoOrientation applies the EXIF orientation of JPEG input.
	AutoOrientation bool
}

// DefaultOptions returns the options used by Convert when no Option is given.
func DefaultOptions() Options {
	return Options{
		JPEGQuality:    DefaultJPEGQuality,
		PNGCompression: png.DefaultCompression,
		GIFColors:      256,
		PNMSubtype:     pnm.PAM,
	}
}

// Option changes one conversion parameter.
type Option func(*Options)

func WithJPEGQuality(quality int) Option {
	return func(o *Options) {
		o.JPEGQuality = quality
	}
}

func WithPNGCompression(level png.CompressionLevel) Option {
	return func(o *Options) {
		o.PNGCompression = level
	}
}

func WithGIFColors(colors int) Option {
	return func(o *Options) {
		o.GIFColors = colors
	}
}

func WithPNMSubtype(subtype pnm.Subtype) Option {
	return func(o *Options) {
		o.PNMSubtype = subtype
	}
}

func WithAutoOrientation(enabled bool) Option {
	return func(o *Options) {
		o.AutoOrientation = enabled
	}
}

func newOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
