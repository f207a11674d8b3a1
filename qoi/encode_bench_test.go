package qoi

import (
	"bytes"
	"testing"
)

func BenchmarkEncode(b *testing.B) {
	inputImg := noisyImage(512, 512, true)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if err := Encode(&buf, inputImg); err != nil {
			b.Fatal(err)
		}
	}
}
