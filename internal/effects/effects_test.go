package effects

import (
	"bytes"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/ivlev/autoslideshow/internal/config"
)

func testConfig() config.RenderConfig {
	c := config.Defaults()
	c.Width, c.Height = 160, 90
	return c
}

func gray(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

func TestColorAdjustments(t *testing.T) {
	tests := []struct {
		color   string
		r, g, b uint8
	}{
		{config.ColorNone, 100, 100, 100},
		{config.ColorWarm, 120, 100, 80},
		{config.ColorCold, 80, 100, 120},
		{config.ColorBW, 100, 100, 100},
	}
	for _, tt := range tests {
		c := testConfig()
		c.Effects.ColorAdjustment = tt.color
		p, err := New(c, nil)
		if err != nil {
			t.Fatal(err)
		}
		img := gray(c.Width, c.Height, 100)
		if err := p.Apply(img, Frame{Caption: NoCaption}); err != nil {
			t.Fatal(err)
		}
		got := img.RGBAAt(10, 10)
		if got.R != tt.r || got.G != tt.g || got.B != tt.b || got.A != 255 {
			t.Errorf("%s: got %v, want %d,%d,%d", tt.color, got, tt.r, tt.g, tt.b)
		}
	}
}

func TestBWIsNeutral(t *testing.T) {
	c := testConfig()
	c.Effects.ColorAdjustment = config.ColorBW
	p, _ := New(c, nil)
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 30, 90, 255
	}
	p.Apply(img, Frame{Caption: NoCaption})
	px := img.RGBAAt(3, 3)
	if px.R != px.G || px.G != px.B {
		t.Errorf("bw pixel not neutral: %v", px)
	}
}

func TestVintageDarkensCorners(t *testing.T) {
	c := testConfig()
	c.Effects.ColorAdjustment = config.ColorVintage
	p, _ := New(c, nil)
	img := gray(c.Width, c.Height, 120)
	p.Apply(img, Frame{Caption: NoCaption})
	center, corner := img.RGBAAt(80, 45), img.RGBAAt(0, 0)
	if corner.R >= center.R {
		t.Errorf("corner %v should be darker than center %v", corner, center)
	}
	if center.R <= center.B {
		t.Errorf("sepia should be warm, got %v", center)
	}
}

func TestVignette(t *testing.T) {
	c := testConfig()
	c.Effects.Vignette = true
	p, _ := New(c, nil)
	img := gray(c.Width, c.Height, 200)
	p.Apply(img, Frame{Caption: NoCaption})
	if got := img.RGBAAt(80, 45).R; got != 200 {
		t.Errorf("center changed to %d", got)
	}
	corner := img.RGBAAt(0, 0).R
	if corner < 138 || corner > 142 {
		t.Errorf("corner = %d, want about 200*0.7", corner)
	}
}

func changed(a, b *image.RGBA) bool {
	return !bytes.Equal(a.Pix, b.Pix)
}

func TestTitleOnlyBeforeDuration(t *testing.T) {
	c := testConfig()
	c.Text.TitleEnabled = true
	c.Text.TitleText = "Summer"
	c.Text.TitleDuration = 3
	p, err := New(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	base := gray(c.Width, c.Height, 50)
	for _, tc := range []struct {
		t    float64
		want bool
	}{{0, true}, {2.96, true}, {3, false}, {9.96, false}} {
		img := gray(c.Width, c.Height, 50)
		p.Apply(img, Frame{Time: tc.t, Caption: NoCaption})
		if changed(img, base) != tc.want {
			t.Errorf("t=%v: overlay drawn = %v, want %v", tc.t, !tc.want, tc.want)
		}
		if p.TitleActive(tc.t) != tc.want {
			t.Errorf("t=%v: TitleActive = %v", tc.t, !tc.want)
		}
	}
}

func TestCaptionsPerImage(t *testing.T) {
	c := testConfig()
	c.Text.CaptionsEnabled = true
	c.Text.CaptionsPosition = "top"
	c.Text.CaptionsSize = 12
	p, err := New(c, []string{"Beach", ""})
	if err != nil {
		t.Fatal(err)
	}
	base := gray(c.Width, c.Height, 50)

	img := gray(c.Width, c.Height, 50)
	p.Apply(img, Frame{Caption: 0})
	if !changed(img, base) {
		t.Error("caption 0 not drawn")
	}
	if img.RGBAAt(5, c.Height-1) != base.RGBAAt(5, c.Height-1) {
		t.Error("top caption touched the bottom row")
	}

	for _, f := range []Frame{{Caption: 1}, {Caption: NoCaption}, {Caption: 7}} {
		img := gray(c.Width, c.Height, 50)
		p.Apply(img, f)
		if changed(img, base) {
			t.Errorf("caption %d should not draw", f.Caption)
		}
	}
}

func TestQRBadgeInCorner(t *testing.T) {
	c := testConfig()
	c.Width, c.Height = 400, 300
	c.Effects.QRText = "https://example.com"
	c.Effects.QRPosition = "top-left"
	p, err := New(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	img := gray(c.Width, c.Height, 128)
	p.Apply(img, Frame{Caption: NoCaption})
	var dark, light bool
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			switch img.RGBAAt(x+7, y+7).R {
			case 0:
				dark = true
			case 255:
				light = true
			}
		}
	}
	if !dark || !light {
		t.Error("expected QR modules in the top-left corner")
	}
	if img.RGBAAt(399, 299) != (color.RGBA{128, 128, 128, 255}) {
		t.Error("bottom-right corner should be untouched")
	}
}

func TestApplyConcurrentIsDeterministic(t *testing.T) {
	c := testConfig()
	c.Effects.ColorAdjustment = config.ColorWarm
	c.Effects.Vignette = true
	c.Text.TitleEnabled = true
	c.Text.TitleText = "Go"
	c.Text.CaptionsEnabled = true
	p, err := New(c, []string{"one"})
	if err != nil {
		t.Fatal(err)
	}
	want := gray(c.Width, c.Height, 90)
	p.Apply(want, Frame{Time: 1, Caption: 0})

	var wg sync.WaitGroup
	results := make([]*image.RGBA, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img := gray(c.Width, c.Height, 90)
			p.Apply(img, Frame{Time: 1, Caption: 0})
			results[i] = img
		}(i)
	}
	wg.Wait()
	for i, img := range results {
		if changed(img, want) {
			t.Errorf("worker %d produced a different frame", i)
		}
	}
}

func TestApplyRejectsWrongSize(t *testing.T) {
	p, _ := New(testConfig(), nil)
	if err := p.Apply(gray(10, 10, 0), Frame{}); err == nil {
		t.Error("expected size error")
	}
}
