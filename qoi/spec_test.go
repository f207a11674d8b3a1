package qoi

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderWrite(t *testing.T) {
	header := Header{
		magic:      qoiMagicBytes,
		width:      400,
		height:     400,
		channels:   4,
		colorspace: 1,
	}
	expectedBytes := make([]byte, 0, headerLength)
	expectedBuf := bytes.NewBuffer(expectedBytes)
	err := binary.Write(expectedBuf, binary.BigEndian, header.magic)
	require.NoError(t, err)
	err = binary.Write(expectedBuf, binary.BigEndian, header.width)
	require.NoError(t, err)
	err = binary.Write(expectedBuf, binary.BigEndian, header.height)
	require.NoError(t, err)
	err = binary.Write(expectedBuf, binary.BigEndian, header.channels)
	require.NoError(t, err)
	err = binary.Write(expectedBuf, binary.BigEndian, header.colorspace)
	require.NoError(t, err)
	answerBuf := new(bytes.Buffer)
	err = header.write(answerBuf)
	require.NoError(t, err)
	assert.EqualValues(t, expectedBuf.Bytes(), answerBuf.Bytes())
}

func TestInterpretHeaderBytes(t *testing.T) {
	for scenario, tc := range map[string]struct {
		mutate func(b *headerBytes)
		valid  bool
	}{
		"accepts a well formed header":  {mutate: func(b *headerBytes) {}, valid: true},
		"rejects a bad magic":           {mutate: func(b *headerBytes) { b[0] = 'x' }},
		"rejects a zero width":          {mutate: func(b *headerBytes) { binary.BigEndian.PutUint32(b[4:], 0) }},
		"rejects two channels":          {mutate: func(b *headerBytes) { b[12] = 2 }},
		"rejects an unknown colorspace": {mutate: func(b *headerBytes) { b[13] = 2 }},
		"rejects oversized images": {mutate: func(b *headerBytes) {
			binary.BigEndian.PutUint32(b[4:], 1<<20)
			binary.BigEndian.PutUint32(b[8:], 1<<20)
		}},
	} {
		t.Run(scenario, func(t *testing.T) {
			buf := new(bytes.Buffer)
			require.NoError(t, Header{magic: qoiMagicBytes, width: 3, height: 2, channels: 4, colorspace: 0}.write(buf))
			var b headerBytes
			copy(b[:], buf.Bytes())
			tc.mutate(&b)

			header, err := interpretHeaderBytes(b)
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, 3, header.Width())
				assert.Equal(t, 2, header.Height())
				return
			}
			require.ErrorIs(t, err, ErrInvalidHeader)
		})
	}
}

func TestGetOP(t *testing.T) {
	assert.Equal(t, opRGB, getOP(0xfe))
	assert.Equal(t, opRGBA, getOP(0xff))
	assert.Equal(t, opRUN, getOP(0xfd))
	assert.Equal(t, opINDEX, getOP(0x3f))
	assert.Equal(t, opDIFF, getOP(0x7f))
	assert.Equal(t, opLUMA, getOP(0xaa))
}

func TestPixelHash(t *testing.T) {
	assert.Equal(t, byte(4), newPixel(pixelBytes{1, 1, 1, 255}).Hash())
	assert.Equal(t, byte(0), newPixel(pixelBytes{}).Hash())

	p := newPixel(pixelBytes{0, 0, 0, 255})
	p.Add(10, 10, 10)
	assert.Equal(t, byte(11), p.Hash())
}
