package imgconv

import (
	"context"

	"imgconv/format"
)

// Converter binds a set of options once so that repeated conversions share
// them. The zero value converts with DefaultOptions.
type Converter struct {
	opts []Option
}

func NewConverter(opts ...Option) *Converter {
	return &Converter{opts: opts}
}

// Convert converts buf to the target format. It returns the context error
// without doing any work when ctx is already done.
func (c *Converter) Convert(ctx context.Context, buf []byte, to format.Format) ([]byte, error) {
	return c.ConvertFrom(ctx, buf, format.Unknown, to)
}

// ConvertFrom converts buf read as from to the target format.
func (c *Converter) ConvertFrom(ctx context.Context, buf []byte, from, to format.Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ConvertFrom(buf, from, to, c.opts...)
}
