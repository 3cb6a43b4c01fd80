package effects

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/autoslideshow/internal/config"
)

type textStyle struct {
	font  string
	size  int
	color string
	bg    string
}

// Named fonts map onto the bundled Go fonts; anything else may be a path to a
// TrueType or OpenType file.
var namedFonts = map[string][]byte{
	"":            goregular.TTF,
	"arial":       goregular.TTF,
	"helvetica":   goregular.TTF,
	"verdana":     goregular.TTF,
	"georgia":     goregular.TTF,
	"impact":      gobold.TTF,
	"bold":        gobold.TTF,
	"courier new": gomono.TTF,
	"courier":     gomono.TTF,
	"mono":        gomono.TTF,
}

func loadFont(name string) (*opentype.Font, error) {
	data, ok := namedFonts[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".ttf", ".otf":
			b, err := os.ReadFile(name)
			if err != nil {
				return nil, fmt.Errorf("font %q: %w", name, err)
			}
			data = b
		default:
			data = goregular.TTF
		}
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("font %q: %w", name, err)
	}
	return f, nil
}

// newTextOverlay renders text centered on a full-width band with the
// background color, placed at the top, center or bottom of the frame.
func newTextOverlay(text string, st textStyle, width, height int, position string) (*overlay, error) {
	fg, err := config.ParseHexColor(st.color)
	if err != nil {
		return nil, err
	}
	bg, err := config.ParseHexColor(st.bg)
	if err != nil {
		return nil, err
	}
	f, err := loadFont(st.font)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(st.size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	defer face.Close()

	m := face.Metrics()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()
	pad := st.size / 2
	bandH := min(ascent+descent+2*pad, height)

	img := image.NewRGBA(image.Rect(0, 0, width, bandH))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	advance := font.MeasureString(face, text).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P((width-advance)/2, pad+ascent),
	}
	d.DrawString(text)

	var y int
	switch position {
	case "top":
		y = 0
	case "center":
		y = (height - bandH) / 2
	default:
		y = height - bandH
	}
	return &overlay{img: img, at: image.Pt(0, y)}, nil
}

// newQROverlay draws a QR code of text in a corner of the frame.
func newQROverlay(text string, width, height int, corner string) (*overlay, error) {
	q, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	side := max(min(width, height)/5, 1)
	code := q.Image(side)
	img := image.NewRGBA(code.Bounds())
	draw.Draw(img, img.Bounds(), code, code.Bounds().Min, draw.Src)

	size := img.Bounds().Size()
	margin := min(width, height) / 40
	at := image.Pt(width-size.X-margin, height-size.Y-margin)
	switch corner {
	case "top-left":
		at = image.Pt(margin, margin)
	case "top-right":
		at.Y = margin
	case "bottom-left":
		at.X = margin
	}
	return &overlay{img: img, at: at}, nil
}
