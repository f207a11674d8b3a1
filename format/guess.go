package format

import "bytes"

type signature struct {
	magic  []byte
	format Format
}

// Checked in order; the first matching prefix wins.
var signatures = []signature{
	{[]byte("\x89PNG\r\n\x1a\n"), Png},
	{[]byte{0xff, 0xd8, 0xff}, Jpeg},
	{[]byte("GIF89a"), Gif},
	{[]byte("GIF87a"), Gif},
	{[]byte("MM\x00*"), Tiff},
	{[]byte("II*\x00"), Tiff},
	{[]byte("DDS "), Dds},
	{[]byte("BM"), Bmp},
	{[]byte{0, 0, 1, 0}, Ico},
	{[]byte("#?RADIANCE"), Hdr},
	{[]byte("P1"), Pnm},
	{[]byte("P2"), Pnm},
	{[]byte("P3"), Pnm},
	{[]byte("P4"), Pnm},
	{[]byte("P5"), Pnm},
	{[]byte("P6"), Pnm},
	{[]byte("P7"), Pnm},
	{[]byte("farbfeld"), Farbfeld},
	{[]byte{0x76, 0x2f, 0x31, 0x01}, OpenExr},
	{[]byte("qoif"), Qoi},
}

// Guess detects the format of buf from its leading magic bytes.
// TGA carries no magic and is never detected; neither are formats outside
// the enum such as WebP.
func Guess(buf []byte) Format {
	for _, s := range signatures {
		if bytes.HasPrefix(buf, s.magic) {
			return s.format
		}
	}
	return Unknown
}
