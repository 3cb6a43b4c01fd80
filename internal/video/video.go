// Package video holds the encoder sinks that receive released frames in
// strictly increasing index order.
package video

import (
	"context"
	"image"
	"image/draw"
	"io"

	"github.com/ivlev/autoslideshow/internal/audio"
)

// Sink is the ordered, write-only consumer of rendered frames.
//
// Open is called once with the first frame the render intends to produce and
// returns the first frame the sink can actually continue from, which is never
// larger. Output from earlier frames is kept; anything later is discarded.
// Commit returns only after every written frame is durable. Finish muxes the
// soundtrack (nil for silent video) and produces the final file. Close
// releases resources; after a Finish it is a no-op.
type Sink interface {
	Open(ctx context.Context, resumeFrom int) (int, error)
	WriteFrame(ctx context.Context, index int, img *image.RGBA) error
	Commit(ctx context.Context) error
	Finish(ctx context.Context, st *audio.Soundtrack) error
	Close() error
}

// writeRawRGBA writes tightly packed RGBA rows.
func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rectangle{Max: bounds.Size()})
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix[:bounds.Dx()*bounds.Dy()*4])
	return err
}
