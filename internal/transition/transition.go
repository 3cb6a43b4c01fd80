// Package transition composites two equally sized frames for a progress value
// in [0,1]. Every kind is a pure function of its inputs: progress 0 yields the
// outgoing frame and progress 1 the incoming frame, byte for byte.
package transition

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Render composites a and b into a freshly allocated frame.
func Render(a, b *image.RGBA, progress float64, kind Kind) (*image.RGBA, error) {
	if a == nil {
		return nil, errors.New("transition: nil frame")
	}
	dst := image.NewRGBA(image.Rect(0, 0, a.Rect.Dx(), a.Rect.Dy()))
	if err := RenderInto(dst, a, b, progress, kind); err != nil {
		return nil, err
	}
	return dst, nil
}

// RenderInto composites a and b into dst, which must not alias either input.
func RenderInto(dst, a, b *image.RGBA, progress float64, kind Kind) error {
	if dst == nil || a == nil || b == nil {
		return errors.New("transition: nil frame")
	}
	size := a.Rect.Size()
	if b.Rect.Size() != size || dst.Rect.Size() != size {
		return fmt.Errorf("transition: frame size mismatch %v / %v / %v", a.Rect.Size(), b.Rect.Size(), dst.Rect.Size())
	}
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("transition: empty frame %v", size)
	}
	if math.IsNaN(progress) || progress < 0 || progress > 1 {
		return fmt.Errorf("transition: progress %v out of [0,1]", progress)
	}
	if !kind.Valid() {
		return fmt.Errorf("transition: invalid kind %d", int(kind))
	}

	f := frames{dst: dst, a: a, b: b, w: size.X, h: size.Y}
	switch progress {
	case 0:
		f.copyAll(a)
		return nil
	case 1:
		f.copyAll(b)
		return nil
	}

	switch kind {
	case Fade:
		f.fade(progress)
	case WipeLeft:
		f.wipeHorizontal(progress, true)
	case WipeRight:
		f.wipeHorizontal(progress, false)
	case WipeUp:
		f.wipeVertical(progress, true)
	case WipeDown:
		f.wipeVertical(progress, false)
	case ZoomIn:
		f.zoomIn(progress)
	case ZoomOut:
		f.zoomOut(progress)
	case SlideLeft:
		f.slide(progress, true)
	case SlideRight:
		f.slide(progress, false)
	case CubeRotation:
		f.cube(progress)
	case DoorOpen:
		f.doorOpen(progress)
	case Pixelate:
		f.pixelate(progress)
	case RadialWipe:
		f.radialWipe(progress)
	case SplitVertical:
		f.splitVertical(progress)
	case PageCurl:
		f.pageCurl(progress)
	}
	return nil
}

// frames addresses Pix buffers relative to each image's Rect.Min.
type frames struct {
	dst, a, b *image.RGBA
	w, h      int
}

func off(img *image.RGBA, x, y int) int {
	return y*img.Stride + x*4
}

func (f *frames) copyAll(src *image.RGBA) {
	for y := 0; y < f.h; y++ {
		f.copyRow(y, 0, f.w, src, 0, y)
	}
}

// copyRow copies columns [x0,x1) of dst row y from src starting at (sx, sy).
func (f *frames) copyRow(y, x0, x1 int, src *image.RGBA, sx, sy int) {
	if x1 <= x0 {
		return
	}
	d := off(f.dst, x0, y)
	s := off(src, sx, sy)
	n := (x1 - x0) * 4
	copy(f.dst.Pix[d:d+n], src.Pix[s:s+n])
}

func (f *frames) copyPixel(x, y int, src *image.RGBA, sx, sy int) {
	d := off(f.dst, x, y)
	s := off(src, sx, sy)
	copy(f.dst.Pix[d:d+4], src.Pix[s:s+4])
}

// mixPixel writes src(sx,sy)*alpha + base(x,y)*(1-alpha) into dst(x,y).
func (f *frames) mixPixel(x, y int, src *image.RGBA, sx, sy int, base *image.RGBA, alpha float64) {
	d := off(f.dst, x, y)
	s := off(src, sx, sy)
	o := off(base, x, y)
	for c := 0; c < 4; c++ {
		v := float64(base.Pix[o+c]) + (float64(src.Pix[s+c])-float64(base.Pix[o+c]))*alpha
		f.dst.Pix[d+c] = clamp8(v)
	}
}

// shadePixel writes src(sx,sy) with RGB multiplied by k into dst(x,y).
func (f *frames) shadePixel(x, y int, src *image.RGBA, sx, sy int, k float64) {
	d := off(f.dst, x, y)
	s := off(src, sx, sy)
	for c := 0; c < 3; c++ {
		f.dst.Pix[d+c] = clamp8(float64(src.Pix[s+c]) * k)
	}
	f.dst.Pix[d+3] = src.Pix[s+3]
}

func (f *frames) blackPixel(x, y int) {
	d := off(f.dst, x, y)
	f.dst.Pix[d], f.dst.Pix[d+1], f.dst.Pix[d+2], f.dst.Pix[d+3] = 0, 0, 0, 255
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
