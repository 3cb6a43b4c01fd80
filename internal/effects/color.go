package effects

import (
	"image"
	"math"
)

const vignetteStrength = 0.3

// Frames are opaque, so premultiplied and straight channels coincide.

func channelGain(img *image.RGBA, r, g, b float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			row[i] = clamp8(float64(row[i]) * r)
			row[i+1] = clamp8(float64(row[i+1]) * g)
			row[i+2] = clamp8(float64(row[i+2]) * b)
		}
	}
}

func sepia(img *image.RGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			r, g, b := float64(row[i]), float64(row[i+1]), float64(row[i+2])
			row[i] = clamp8(0.393*r + 0.769*g + 0.189*b)
			row[i+1] = clamp8(0.349*r + 0.686*g + 0.168*b)
			row[i+2] = clamp8(0.272*r + 0.534*g + 0.131*b)
		}
	}
}

func grayscale(img *image.RGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			l := clamp8(0.299*float64(row[i]) + 0.587*float64(row[i+1]) + 0.114*float64(row[i+2]))
			row[i], row[i+1], row[i+2] = l, l, l
		}
	}
}

// radialMask darkens towards the corners: gain = 1 - strength*d/r, where r is
// half the diagonal.
func radialMask(w, h int, strength float64) []float32 {
	mask := make([]float32, w*h)
	cx, cy := float64(w/2), float64(h/2)
	radius := math.Hypot(float64(w), float64(h)) / 2
	for y := 0; y < h; y++ {
		dy := float64(y) - cy
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)-cx, dy) / radius
			mask[y*w+x] = float32(1 - min(d, 1)*strength)
		}
	}
	return mask
}

func applyMask(img *image.RGBA, mask []float32) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		m := mask[y*w : (y+1)*w]
		for x, g := range m {
			i := x * 4
			row[i] = clamp8(float64(row[i]) * float64(g))
			row[i+1] = clamp8(float64(row[i+1]) * float64(g))
			row[i+2] = clamp8(float64(row[i+2]) * float64(g))
		}
	}
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
