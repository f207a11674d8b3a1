package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"imgconv"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := (&cli{}).root()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.NRGBA{R: 255, A: 255})
	}
	path := filepath.Join(dir, "input.png")
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir)
	output := filepath.Join(dir, "output.qoi")

	_, err := execute(t, "convert", input, output)
	require.NoError(t, err)

	converted, err := os.ReadFile(output)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(converted, []byte("qoif")))

	out, err := execute(t, "guess", output)
	require.NoError(t, err)
	require.Equal(t, "qoi\n", out)
}

func TestConvertCommandFormatFlag(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir)
	output := filepath.Join(dir, "output.bin")

	_, err := execute(t, "convert", "--format", "farbfeld", input, output)
	require.NoError(t, err)

	converted, err := os.ReadFile(output)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(converted, []byte("farbfeld")))
}

func TestConvertCommandUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir)

	_, err := execute(t, "convert", input, filepath.Join(dir, "output"))
	require.ErrorIs(t, err, imgconv.ErrUnknownFormat)
}

func TestGuessCommandUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))

	_, err := execute(t, "guess", path)
	require.ErrorIs(t, err, imgconv.ErrUnknownFormat)
}

func TestFormatsCommand(t *testing.T) {
	out, err := execute(t, "formats")
	require.NoError(t, err)

	require.Contains(t, out, "FORMAT")
	require.Contains(t, out, "image/x-qoi")
	require.Contains(t, out, "hdr")
}

func TestBenchCommand(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir)
	output := filepath.Join(dir, "test.jpeg")

	out, err := execute(t, "bench", "--input", input, "--output", output, "--iterations", "3")
	require.NoError(t, err)

	ms, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	require.NoError(t, err)
	require.GreaterOrEqual(t, ms, int64(0))

	converted, err := os.ReadFile(output)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(converted, []byte{0xff, 0xd8}))
}

func TestBenchCommandRejectsConfig(t *testing.T) {
	_, err := execute(t, "bench", "--iterations", "0")
	require.Error(t, err)
}
