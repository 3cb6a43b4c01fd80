package transition

import "math"

// fade blends linearly in 16.16 fixed point.
func (f *frames) fade(p float64) {
	w := uint32(p*65536 + 0.5)
	iw := 65536 - w
	for y := 0; y < f.h; y++ {
		d := off(f.dst, 0, y)
		sa := off(f.a, 0, y)
		sb := off(f.b, 0, y)
		for i := 0; i < f.w*4; i++ {
			f.dst.Pix[d+i] = uint8((uint32(f.a.Pix[sa+i])*iw + uint32(f.b.Pix[sb+i])*w + 32768) >> 16)
		}
	}
}

// wipeHorizontal reveals b from the right edge (fromRight) or from the left.
func (f *frames) wipeHorizontal(p float64, fromRight bool) {
	cut := int(math.Round(p * float64(f.w)))
	for y := 0; y < f.h; y++ {
		if fromRight {
			f.copyRow(y, 0, f.w-cut, f.a, 0, y)
			f.copyRow(y, f.w-cut, f.w, f.b, f.w-cut, y)
		} else {
			f.copyRow(y, 0, cut, f.b, 0, y)
			f.copyRow(y, cut, f.w, f.a, cut, y)
		}
	}
}

// wipeVertical reveals b from the bottom edge (fromBottom) or from the top.
func (f *frames) wipeVertical(p float64, fromBottom bool) {
	cut := int(math.Round(p * float64(f.h)))
	for y := 0; y < f.h; y++ {
		src := f.a
		if fromBottom && y >= f.h-cut || !fromBottom && y < cut {
			src = f.b
		}
		f.copyRow(y, 0, f.w, src, 0, y)
	}
}

// zoomIn grows b from the center over a, fading it in as it grows.
func (f *frames) zoomIn(p float64) {
	cx, cy := float64(f.w)/2, float64(f.h)/2
	for y := 0; y < f.h; y++ {
		fy := (float64(y)+0.5-cy)/p + cy
		for x := 0; x < f.w; x++ {
			fx := (float64(x)+0.5-cx)/p + cx
			if fx < 0 || fy < 0 || fx >= float64(f.w) || fy >= float64(f.h) {
				f.copyPixel(x, y, f.a, x, y)
				continue
			}
			f.mixPixel(x, y, f.b, int(fx), int(fy), f.a, p)
		}
	}
}

// zoomOutScale is how large a grows by the end of zoom_out.
const zoomOutScale = 3.0

// zoomOut enlarges a about the center while it fades out over b.
func (f *frames) zoomOut(p float64) {
	s := 1 + p*(zoomOutScale-1)
	cx, cy := float64(f.w)/2, float64(f.h)/2
	for y := 0; y < f.h; y++ {
		sy := clampInt(int((float64(y)+0.5-cy)/s+cy), 0, f.h-1)
		for x := 0; x < f.w; x++ {
			sx := clampInt(int((float64(x)+0.5-cx)/s+cx), 0, f.w-1)
			f.mixPixel(x, y, f.a, sx, sy, f.b, 1-p)
		}
	}
}

// slide moves both frames along x by p*width; toLeft pushes a out to the left.
func (f *frames) slide(p float64, toLeft bool) {
	shift := int(math.Round(p * float64(f.w)))
	for y := 0; y < f.h; y++ {
		if toLeft {
			f.copyRow(y, 0, f.w-shift, f.a, shift, y)
			f.copyRow(y, f.w-shift, f.w, f.b, 0, y)
		} else {
			f.copyRow(y, 0, shift, f.b, f.w-shift, y)
			f.copyRow(y, shift, f.w, f.a, 0, y)
		}
	}
}

// cube approximates two faces of a cube turning about the vertical axis by
// p*90 degrees. The face turning away is compressed horizontally, shortened
// toward its far edge and darkened.
func (f *frames) cube(p float64) {
	theta := p * math.Pi / 2
	sin, cos := math.Sin(theta), math.Cos(theta)
	w, h := float64(f.w), float64(f.h)
	widthA := w * cos
	cy := h / 2

	for x := 0; x < f.w; x++ {
		fx := float64(x) + 0.5
		src := f.a
		var u, scale, shade float64
		if fx < widthA {
			u = fx / widthA
			scale = 1 - 0.2*sin*(1-u)
			shade = 1 - 0.4*sin
		} else {
			src = f.b
			u = (fx - widthA) / (w - widthA)
			scale = 1 - 0.2*cos*u
			shade = 1 - 0.4*cos
		}
		sx := clampInt(int(u*w), 0, f.w-1)
		for y := 0; y < f.h; y++ {
			fy := (float64(y)+0.5-cy)/scale + cy
			if fy < 0 || fy >= h {
				f.blackPixel(x, y)
				continue
			}
			f.shadePixel(x, y, src, sx, int(fy), shade)
		}
	}
}

// doorOpen slides the two halves of a outward, uncovering b.
func (f *frames) doorOpen(p float64) {
	mid := f.w / 2
	half := max(mid, f.w-mid)
	shift := int(math.Round(p * float64(half)))
	for y := 0; y < f.h; y++ {
		left := max(mid-shift, 0)
		right := min(mid+shift, f.w)
		f.copyRow(y, 0, left, f.a, shift, y)
		f.copyRow(y, left, right, f.b, left, y)
		if right < f.w {
			f.copyRow(y, right, f.w, f.a, right-shift, y)
		}
	}
}

// splitVertical opens a vertical seam at the center; a stays in place and b
// shows through the widening gap.
func (f *frames) splitVertical(p float64) {
	mid := f.w / 2
	half := max(mid, f.w-mid)
	gap := int(math.Round(p * float64(half)))
	left := max(mid-gap, 0)
	right := min(mid+gap, f.w)
	for y := 0; y < f.h; y++ {
		f.copyRow(y, 0, left, f.a, 0, y)
		f.copyRow(y, left, right, f.b, left, y)
		f.copyRow(y, right, f.w, f.a, right, y)
	}
}

// pixelate mosaics a with a growing block size during the first half and
// resolves b from a shrinking mosaic during the second.
func (f *frames) pixelate(p float64) {
	maxBlock := clampInt(min(f.w, f.h)/4, 2, 64)
	src, q := f.a, p*2
	if p >= 0.5 {
		src, q = f.b, (1-p)*2
	}
	block := 1 + int(q*float64(maxBlock-1)+0.5)
	if block <= 1 {
		f.copyAll(src)
		return
	}

	for by := 0; by < f.h; by += block {
		ey := min(by+block, f.h)
		for bx := 0; bx < f.w; bx += block {
			ex := min(bx+block, f.w)
			var sum [4]int
			for y := by; y < ey; y++ {
				s := off(src, bx, y)
				for x := bx; x < ex; x++ {
					for c := 0; c < 4; c++ {
						sum[c] += int(src.Pix[s+c])
					}
					s += 4
				}
			}
			n := (ey - by) * (ex - bx)
			var avg [4]uint8
			for c := range avg {
				avg[c] = uint8((sum[c] + n/2) / n)
			}
			for y := by; y < ey; y++ {
				d := off(f.dst, bx, y)
				for x := bx; x < ex; x++ {
					copy(f.dst.Pix[d:d+4], avg[:])
					d += 4
				}
			}
		}
	}
}

// radialWipe sweeps clockwise from twelve o'clock around the center; the
// swept sector of 2*pi*p shows b.
func (f *frames) radialWipe(p float64) {
	limit := 2 * math.Pi * p
	cx, cy := float64(f.w)/2, float64(f.h)/2
	for y := 0; y < f.h; y++ {
		dy := float64(y) + 0.5 - cy
		for x := 0; x < f.w; x++ {
			dx := float64(x) + 0.5 - cx
			angle := math.Atan2(dx, -dy)
			if angle < 0 {
				angle += 2 * math.Pi
			}
			if angle < limit {
				f.copyPixel(x, y, f.b, x, y)
			} else {
				f.copyPixel(x, y, f.a, x, y)
			}
		}
	}
}

// pageCurl moves a slanted curl edge from the right border to the left. Left
// of the edge a is sheared toward the curl; right of it b is revealed under a
// shadow that is strongest mid-transition.
func (f *frames) pageCurl(p float64) {
	w, h := float64(f.w), float64(f.h)
	slant := 0.2 * h
	band := math.Max(1, 0.1*w)
	shadow := 0.6 * math.Sin(math.Pi*p)

	for y := 0; y < f.h; y++ {
		ry := 1 - (float64(y)+0.5)/h
		edge := (1-p)*(w+slant) - slant*ry
		shear := int(math.Round(0.5 * slant * p * ry))
		for x := 0; x < f.w; x++ {
			fx := float64(x) + 0.5
			if fx < edge {
				f.copyPixel(x, y, f.a, min(x+shear, f.w-1), y)
				continue
			}
			k := 1.0
			if dist := fx - edge; dist < band {
				k = 1 - shadow*(1-dist/band)
			}
			f.shadePixel(x, y, f.b, x, y, k)
		}
	}
}
