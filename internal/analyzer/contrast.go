package analyzer

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// analysisWidth is the width images are reduced to before edge detection.
const analysisWidth = 320

// ContrastDetector implements edge-based region detection using the Sobel operator.
type ContrastDetector struct {
	MinBlockArea  int     // minimum area in analysis pixels²
	EdgeThreshold float64 // gradient magnitude threshold
}

func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  500,
		EdgeThreshold: 30.0,
	}
}

// Detect finds regions of interest using edge detection and morphology.
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	src := img.Bounds()
	if src.Empty() {
		return nil, nil
	}
	gray, scale := thumbnail(img)

	edges := sobel(gray, d.EdgeThreshold)
	dilated := dilate(edges, 5, 2)

	var blocks []Block
	for _, rect := range findContours(dilated) {
		if rect.Dx()*rect.Dy() < d.MinBlockArea {
			continue
		}
		blocks = append(blocks, Block{
			Rect:  scaleRect(rect, scale).Add(src.Min).Intersect(src),
			Edges: countSet(edges, rect),
		})
	}
	return blocks, nil
}

// thumbnail converts img to grayscale at most analysisWidth wide and returns
// the factor back to source pixels.
func thumbnail(img image.Image) (*image.Gray, float64) {
	b := img.Bounds()
	scale := 1.0
	w, h := b.Dx(), b.Dy()
	if w > analysisWidth {
		scale = float64(w) / analysisWidth
		w, h = analysisWidth, max(1, int(math.Round(float64(h)/scale)))
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	return gray, scale
}

func scaleRect(r image.Rectangle, s float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(float64(r.Min.X)*s)), int(math.Floor(float64(r.Min.Y)*s)),
		int(math.Ceil(float64(r.Max.X)*s)), int(math.Ceil(float64(r.Max.Y)*s)),
	)
}

// sobel marks pixels whose gradient magnitude exceeds threshold with 255.
func sobel(gray *image.Gray, threshold float64) *image.Gray {
	b := gray.Bounds()
	edges := image.NewGray(b)
	at := func(x, y int) float64 { return float64(gray.Pix[y*gray.Stride+x]) }

	for y := 1; y < b.Dy()-1; y++ {
		for x := 1; x < b.Dx()-1; x++ {
			sumX := -at(x-1, y-1) + at(x+1, y-1) -
				2*at(x-1, y) + 2*at(x+1, y) -
				at(x-1, y+1) + at(x+1, y+1)
			sumY := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if math.Hypot(sumX, sumY) > threshold {
				edges.Pix[y*edges.Stride+x] = 255
			}
		}
	}
	return edges
}

// dilate performs morphological dilation to connect nearby edges.
func dilate(img *image.Gray, kernelSize, iterations int) *image.Gray {
	b := img.Bounds()
	result := image.NewGray(b)
	copy(result.Pix, img.Pix)
	half := kernelSize / 2

	for iter := 0; iter < iterations; iter++ {
		temp := image.NewGray(b)
		for y := half; y < b.Dy()-half; y++ {
			for x := half; x < b.Dx()-half; x++ {
				var maxVal uint8
				for ky := -half; ky <= half && maxVal < 255; ky++ {
					row := (y + ky) * result.Stride
					for kx := -half; kx <= half; kx++ {
						maxVal = max(maxVal, result.Pix[row+x+kx])
					}
				}
				temp.Pix[y*temp.Stride+x] = maxVal
			}
		}
		result = temp
	}
	return result
}

// findContours returns bounding rectangles of connected white regions.
func findContours(img *image.Gray) []image.Rectangle {
	b := img.Bounds()
	visited := make([]bool, b.Dx()*b.Dy())
	var contours []image.Rectangle
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if img.Pix[y*img.Stride+x] > 128 && !visited[y*b.Dx()+x] {
				contours = append(contours, floodFill(img, visited, x, y))
			}
		}
	}
	return contours
}

// floodFill marks the component containing (startX, startY) and returns its
// bounding rectangle.
func floodFill(img *image.Gray, visited []bool, startX, startY int) image.Rectangle {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	minX, minY, maxX, maxY := startX, startY, startX, startY

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p.X, p.Y
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		if visited[y*w+x] || img.Pix[y*img.Stride+x] <= 128 {
			continue
		}
		visited[y*w+x] = true

		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

func countSet(img *image.Gray, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.Pix[y*img.Stride+x] > 128 {
				n++
			}
		}
	}
	return n
}
