// Package motion generates Ken Burns crop paths and applies them to frames.
package motion

import (
	"fmt"
	"image"
	"math/rand/v2"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	motionSeed = 0x6b62 // mixed with the image index
	maxShrink  = 0.30   // of the rectangle size, at intensity 1
	maxPan     = 0.20   // of the image extent, at intensity 1
)

// Rect is a crop rectangle in source pixels. Fractional edges keep slow
// motion smooth.
type Rect struct {
	X, Y, W, H float64
}

// Within reports whether r lies inside a w x h image.
func (r Rect) Within(w, h int) bool {
	const eps = 1e-6
	return r.W > 0 && r.H > 0 &&
		r.X >= -eps && r.Y >= -eps &&
		r.X+r.W <= float64(w)+eps && r.Y+r.H <= float64(h)+eps
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f,%.2f %.2fx%.2f)", r.X, r.Y, r.W, r.H)
}

// Path is the crop rectangle of one image over its visibility window
// [From, To]. It is immutable and safe to share across workers.
type Path struct {
	Start, End Rect
	From, To   float64
	Size       image.Point
}

// Static returns a path that shows the whole image for every frame.
func Static(size image.Point, from, to float64) Path {
	full := Rect{W: float64(size.X), H: float64(size.Y)}
	return Path{Start: full, End: full, From: from, To: to, Size: size}
}

// Generate picks start and end rectangles for image index. The end rectangle
// is up to intensity*30% smaller and its center is panned by up to
// intensity*20% of the image extent. Both keep the image's aspect ratio.
func Generate(index int, size image.Point, intensity, from, to float64) Path {
	if intensity <= 0 || size.X <= 0 || size.Y <= 0 {
		return Static(size, from, to)
	}
	intensity = min(intensity, 1)
	rng := rand.New(rand.NewPCG(uint64(index), motionSeed))
	shrink := intensity * maxShrink * (0.5 + 0.5*rng.Float64())
	w, h := float64(size.X), float64(size.Y)
	dx := intensity * maxPan * w * (2*rng.Float64() - 1)
	dy := intensity * maxPan * h * (2*rng.Float64() - 1)
	return endAt(Static(size, from, to), shrink, dx, dy)
}

// Focused is Generate with the pan aimed at focus instead of a random
// direction. The zoom and the pan limit are the same.
func Focused(index int, size image.Point, intensity, from, to float64, focus image.Point) Path {
	if intensity <= 0 || size.X <= 0 || size.Y <= 0 {
		return Static(size, from, to)
	}
	intensity = min(intensity, 1)
	rng := rand.New(rand.NewPCG(uint64(index), motionSeed))
	shrink := intensity * maxShrink * (0.5 + 0.5*rng.Float64())
	w, h := float64(size.X), float64(size.Y)
	limX, limY := intensity*maxPan*w, intensity*maxPan*h
	dx := min(max(float64(focus.X)-w/2, -limX), limX)
	dy := min(max(float64(focus.Y)-h/2, -limY), limY)
	return endAt(Static(size, from, to), shrink, dx, dy)
}

// endAt sets the end rectangle shrunk by shrink and centered at the image
// center moved by (dx, dy), clamped inside the image.
func endAt(p Path, shrink, dx, dy float64) Path {
	w, h := float64(p.Size.X), float64(p.Size.Y)
	ew, eh := w*(1-shrink), h*(1-shrink)
	cx := min(max(w/2+dx, ew/2), w-ew/2)
	cy := min(max(h/2+dy, eh/2), h-eh/2)
	p.End = Rect{X: cx - ew/2, Y: cy - eh/2, W: ew, H: eh}
	return p
}

// At returns the eased crop rectangle at time t.
func (p Path) At(t float64) Rect {
	var progress float64
	if span := p.To - p.From; span > 0 {
		progress = (t - p.From) / span
	}
	e := easeInOutCubic(progress)
	r := Rect{
		X: lerp(p.Start.X, p.End.X, e),
		Y: lerp(p.Start.Y, p.End.Y, e),
		W: lerp(p.Start.W, p.End.W, e),
		H: lerp(p.Start.H, p.End.H, e),
	}
	// Rounding in lerp can leave the far edge a hair outside.
	r.X = max(r.X, 0)
	r.Y = max(r.Y, 0)
	r.W = min(r.W, float64(p.Size.X)-r.X)
	r.H = min(r.H, float64(p.Size.Y)-r.Y)
	return r
}

// IsStatic reports whether the path never moves.
func (p Path) IsStatic() bool {
	return p.Start == p.End
}

// Apply renders the r crop of src scaled to fill dst. A crop outside src is
// an error; a crop covering src at dst's size is a plain copy.
func Apply(dst, src *image.RGBA, r Rect) error {
	sb := src.Bounds()
	if !r.Within(sb.Dx(), sb.Dy()) {
		return fmt.Errorf("crop %v outside %dx%d image", r, sb.Dx(), sb.Dy())
	}
	db := dst.Bounds()
	if r == (Rect{W: float64(sb.Dx()), H: float64(sb.Dy())}) && sb.Size() == db.Size() {
		draw.Copy(dst, db.Min, src, sb, draw.Src, nil)
		return nil
	}

	sx := float64(db.Dx()) / r.W
	sy := float64(db.Dy()) / r.H
	s2d := f64.Aff3{
		sx, 0, float64(db.Min.X) - (r.X+float64(sb.Min.X))*sx,
		0, sy, float64(db.Min.Y) - (r.Y+float64(sb.Min.Y))*sy,
	}
	draw.BiLinear.Transform(dst, s2d, src, sb, draw.Src, nil)
	return nil
}
