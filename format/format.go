// Package format models the image formats imgconv knows about and detects them from raw bytes.
package format

import (
	"path/filepath"
	"strings"
)

// Format identifies an image encoding. Text encodings, JSON included, carry
// the format name rather than the number.
type Format uint8

const (
	Png      Format = 0
	Jpeg     Format = 1
	Gif      Format = 2
	Bmp      Format = 4
	Ico      Format = 5
	Tiff     Format = 6
	Tga      Format = 7
	Dds      Format = 8
	Hdr      Format = 9
	Farbfeld Format = 10
	Pnm      Format = 11
	OpenExr  Format = 12
	Qoi      Format = 13
	Unknown  Format = 14
)

var all = []Format{Png, Jpeg, Gif, Bmp, Ico, Tiff, Tga, Dds, Hdr, Farbfeld, Pnm, OpenExr, Qoi}

var names = map[Format]string{
	Png:      "png",
	Jpeg:     "jpeg",
	Gif:      "gif",
	Bmp:      "bmp",
	Ico:      "ico",
	Tiff:     "tiff",
	Tga:      "tga",
	Dds:      "dds",
	Hdr:      "hdr",
	Farbfeld: "farbfeld",
	Pnm:      "pnm",
	OpenExr:  "exr",
	Qoi:      "qoi",
	Unknown:  "unknown",
}

var aliases = map[string]Format{
	"jpg": Jpeg,
}

var mimeTypes = map[Format]string{
	Png:      "image/png",
	Jpeg:     "image/jpeg",
	Gif:      "image/gif",
	Bmp:      "image/bmp",
	Ico:      "image/x-icon",
	Tiff:     "image/tiff",
	Tga:      "image/x-tga",
	Dds:      "image/vnd-ms.dds",
	Hdr:      "image/vnd.radiance",
	Farbfeld: "image/x-farbfeld",
	Pnm:      "image/x-portable-anymap",
	OpenExr:  "image/x-exr",
	Qoi:      "image/x-qoi",
}

// extra suffixes accepted by FromExtension on top of the canonical names
var extensions = map[string]Format{
	".jpg":  Jpeg,
	".jpe":  Jpeg,
	".tif":  Tiff,
	".ff":   Farbfeld,
	".pbm":  Pnm,
	".pgm":  Pnm,
	".ppm":  Pnm,
	".pam":  Pnm,
	".icb":  Tga,
	".vda":  Tga,
	".vst":  Tga,
	".pic":  Hdr,
	".dib":  Bmp,
	".jfif": Jpeg,
}

// All returns every known format in enum order, Unknown excluded.
func All() []Format {
	out := make([]Format, len(all))
	copy(out, all)
	return out
}

func (f Format) String() string {
	if name, ok := names[f]; ok {
		return name
	}
	return names[Unknown]
}

// Extension returns the canonical file suffix, dot included.
func (f Format) Extension() string {
	if f == Unknown || !f.Valid() {
		return ""
	}
	return "." + f.String()
}

// MIMEType returns the media type of f, falling back to application/octet-stream.
func (f Format) MIMEType() string {
	if m, ok := mimeTypes[f]; ok {
		return m
	}
	return "application/octet-stream"
}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	_, ok := names[f]
	return ok && f != Unknown
}

// Parse maps a format name to a Format. Unrecognised names yield Unknown.
func Parse(name string) Format {
	name = strings.ToLower(strings.TrimSpace(name))
	if f, ok := aliases[name]; ok {
		return f
	}
	for f, n := range names {
		if n == name && f != Unknown {
			return f
		}
	}
	return Unknown
}

// FromExtension resolves the format of a file name from its suffix.
func FromExtension(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return Unknown
	}
	if f, ok := extensions[ext]; ok {
		return f
	}
	return Parse(ext[1:])
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(text []byte) error {
	*f = Parse(string(text))
	return nil
}
