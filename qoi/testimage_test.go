package qoi

import (
	"image"
	"image/color"
	"math/rand"
)

// noisyImage returns a deterministic image mixing flat areas, gradients and noise so every op gets exercised.
func noisyImage(width, height int, withAlpha bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	rng := rand.New(rand.NewSource(42))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{R: byte(x), G: byte(y), B: byte(x + y), A: 255}
			switch {
			case y%4 == 0:
				c = color.NRGBA{R: 200, G: 30, B: 30, A: 255}
			case y%4 == 1 && x%3 == 0:
				c = color.NRGBA{R: byte(rng.Intn(256)), G: byte(rng.Intn(256)), B: byte(rng.Intn(256)), A: 255}
			}
			if withAlpha && x%5 == 0 {
				c.A = byte(rng.Intn(256))
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
