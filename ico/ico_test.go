package ico

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 10, B: 30, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{A: 0})
			}
		}
	}
	return img
}

// dibIcon builds an icon with one 24-bit bitmap entry of 2x2 pixels. The
// top-left pixel is masked out.
func dibIcon() []byte {
	const width, height = 2, 2
	stride, maskStride := 8, 4

	dib := make([]byte, dibLength)
	binary.LittleEndian.PutUint32(dib[0:], dibLength)
	binary.LittleEndian.PutUint32(dib[4:], width)
	binary.LittleEndian.PutUint32(dib[8:], height*2)
	binary.LittleEndian.PutUint16(dib[12:], 1)
	binary.LittleEndian.PutUint16(dib[14:], 24)

	// rows bottom-up, BGR
	pixels := make([]byte, stride*height)
	copy(pixels[0:], []byte{0, 0, 255, 0, 255, 0})
	copy(pixels[stride:], []byte{255, 0, 0, 255, 255, 255})
	mask := make([]byte, maskStride*height)
	mask[maskStride] = 0x80

	payload := append(append(dib, pixels...), mask...)

	head := make([]byte, dirLength+entryLength)
	binary.LittleEndian.PutUint16(head[2:], 1)
	binary.LittleEndian.PutUint16(head[4:], 1)
	head[dirLength], head[dirLength+1] = width, height
	binary.LittleEndian.PutUint32(head[dirLength+8:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(head[dirLength+12:], dirLength+entryLength)
	return append(head, payload...)
}

func TestRoundTrip(t *testing.T) {
	for scenario, size := range map[string]int{
		"small":   16,
		"maximum": MaxSize,
	} {
		t.Run(scenario, func(t *testing.T) {
			src := checkerboard(size, size)
			buf := new(bytes.Buffer)
			require.NoError(t, Encode(buf, src))

			head := buf.Bytes()[:dirLength+entryLength]
			assert.Equal(t, []byte{0, 0, 1, 0, 1, 0}, head[:dirLength])
			assert.Equal(t, byte(size%256), head[dirLength])
			assert.Equal(t, uint32(dirLength+entryLength), binary.LittleEndian.Uint32(head[dirLength+12:]))

			img, name, err := image.Decode(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, "ico", name)
			assert.Equal(t, src.Bounds(), img.Bounds())
			assert.Equal(t, color.NRGBA{R: 200, G: 10, B: 30, A: 255}, color.NRGBAModel.Convert(img.At(0, 0)))
			assert.Equal(t, uint32(0), alpha(img.At(1, 0)))
		})
	}
}

func alpha(c color.Color) uint32 {
	_, _, _, a := c.RGBA()
	return a
}

func TestEncodeTooLarge(t *testing.T) {
	err := Encode(new(bytes.Buffer), image.NewNRGBA(image.Rect(0, 0, MaxSize+1, 1)))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeDIB(t *testing.T) {
	img, err := Decode(bytes.NewReader(dibIcon()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	assert.Equal(t, color.NRGBA{B: 255, A: 0}, img.At(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, img.At(1, 0))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.At(0, 1))
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, img.At(1, 1))
}

func TestDecodePicksLargestEntry(t *testing.T) {
	small, large := new(bytes.Buffer), new(bytes.Buffer)
	require.NoError(t, Encode(small, checkerboard(8, 8)))
	require.NoError(t, Encode(large, checkerboard(32, 32)))
	smallPNG := small.Bytes()[dirLength+entryLength:]
	largePNG := large.Bytes()[dirLength+entryLength:]

	head := make([]byte, dirLength+2*entryLength)
	binary.LittleEndian.PutUint16(head[2:], 1)
	binary.LittleEndian.PutUint16(head[4:], 2)
	offset := uint32(len(head))
	for i, e := range []struct {
		size int
		data []byte
	}{{8, smallPNG}, {32, largePNG}} {
		b := head[dirLength+i*entryLength:]
		b[0], b[1] = byte(e.size), byte(e.size)
		binary.LittleEndian.PutUint32(b[8:], uint32(len(e.data)))
		binary.LittleEndian.PutUint32(b[12:], offset)
		offset += uint32(len(e.data))
	}
	data := append(append(head, smallPNG...), largePNG...)

	cfg, err := DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Width)

	img, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())
}

func TestDecodeFailures(t *testing.T) {
	outOfBounds := dibIcon()
	binary.LittleEndian.PutUint32(outOfBounds[dirLength+8:], 1<<20)

	for scenario, tc := range map[string]struct {
		data []byte
		err  error
	}{
		"cursor":          {data: []byte{0, 0, 2, 0, 1, 0}, err: ErrInvalidHeader},
		"empty directory": {data: []byte{0, 0, 1, 0, 0, 0}, err: ErrInvalidHeader},
		"short entry":     {data: []byte{0, 0, 1, 0, 1, 0, 16}, err: ErrInvalidHeader},
		"out of bounds":   {data: outOfBounds, err: ErrInvalidHeader},
	} {
		t.Run(scenario, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tc.data))
			require.ErrorIs(t, err, tc.err)
		})
	}
}
