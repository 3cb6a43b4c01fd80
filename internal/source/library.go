package source

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"

	"github.com/ivlev/autoslideshow/internal/errs"
)

// ImageAsset is one still in display order. Immutable once loaded.
type ImageAsset struct {
	Index   int
	Path    string
	Width   int
	Height  int
	Caption string
}

// LoadAssets probes every page of src. Any unreadable page is an
// *errs.AssetError.
func LoadAssets(src Source) ([]ImageAsset, error) {
	n := src.PageCount()
	if n == 0 {
		return nil, &errs.AssetError{Path: "input", Err: fmt.Errorf("no pages")}
	}
	assets := make([]ImageAsset, n)
	for i := 0; i < n; i++ {
		w, h, err := src.GetPageDimensions(i)
		if err != nil {
			return nil, &errs.AssetError{Path: src.Name(i), Err: err}
		}
		if w < 1 || h < 1 {
			return nil, &errs.AssetError{Path: src.Name(i), Err: fmt.Errorf("empty image %vx%v", w, h)}
		}
		assets[i] = ImageAsset{Index: i, Path: src.Name(i), Width: int(w), Height: int(h)}
	}
	return assets, nil
}

// Library hands out stills decoded and cover-fitted to the output size.
// Concurrent requests for one image share a single decode; a small cache
// keeps recently used stills since neighbouring frames reuse them.
type Library struct {
	src           Source
	assets        []ImageAsset
	width, height int
	capacity      int

	group singleflight.Group
	mu    sync.Mutex
	cache map[int]*image.RGBA
	order []int // oldest first
}

func NewLibrary(src Source, assets []ImageAsset, width, height, capacity int) *Library {
	return &Library{
		src:      src,
		assets:   assets,
		width:    width,
		height:   height,
		capacity: max(capacity, 2),
		cache:    make(map[int]*image.RGBA),
	}
}

// Prepared returns image index at output size. The result is shared and must
// not be modified.
func (l *Library) Prepared(index int) (*image.RGBA, error) {
	if index < 0 || index >= len(l.assets) {
		return nil, fmt.Errorf("image index %d out of range", index)
	}
	l.mu.Lock()
	if img, ok := l.cache[index]; ok {
		l.touch(index)
		l.mu.Unlock()
		return img, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do(strconv.Itoa(index), func() (any, error) {
		l.mu.Lock()
		cached, ok := l.cache[index]
		l.mu.Unlock()
		if ok {
			return cached, nil
		}
		img, err := l.prepare(index)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.store(index, img)
		l.mu.Unlock()
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*image.RGBA), nil
}

func (l *Library) prepare(index int) (*image.RGBA, error) {
	a := l.assets[index]
	img, err := l.src.RenderPage(index, l.dpiFor(a))
	if err != nil {
		return nil, &errs.AssetError{Path: a.Path, Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &errs.AssetError{Path: a.Path, Err: fmt.Errorf("decoded image is empty")}
	}
	return CoverFit(img, l.width, l.height), nil
}

// dpiFor renders vector pages just large enough to cover the output.
func (l *Library) dpiFor(a ImageAsset) int {
	scale := max(float64(l.width)/float64(a.Width), float64(l.height)/float64(a.Height))
	return min(max(int(math.Ceil(72*scale)), 72), 600)
}

func (l *Library) touch(index int) {
	for i, v := range l.order {
		if v == index {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.order = append(l.order, index)
}

func (l *Library) store(index int, img *image.RGBA) {
	if _, ok := l.cache[index]; !ok && len(l.cache) >= l.capacity {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.cache, oldest)
	}
	l.cache[index] = img
	l.touch(index)
}

// CoverFit scales img to fill width x height and crops the overflow evenly,
// keeping the aspect ratio. Transparency is flattened onto black.
func CoverFit(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	b := img.Bounds()
	sw, sh := float64(b.Dx()), float64(b.Dy())
	scale := max(float64(width)/sw, float64(height)/sh)
	cw, ch := float64(width)/scale, float64(height)/scale
	x0 := b.Min.X + int(math.Round((sw-cw)/2))
	y0 := b.Min.Y + int(math.Round((sh-ch)/2))
	crop := image.Rect(x0, y0, x0+int(math.Round(cw)), y0+int(math.Round(ch))).Intersect(b)

	if crop.Dx() == width && crop.Dy() == height {
		draw.Draw(dst, dst.Bounds(), img, crop.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Over, nil)
	return dst
}
