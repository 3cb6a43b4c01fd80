// Package effects applies per-frame color grading, vignette and overlays.
package effects

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/ivlev/autoslideshow/internal/config"
)

// NoCaption disables the caption overlay for a frame.
const NoCaption = -1

// Frame tells the processor what a frame shows.
type Frame struct {
	Time    float64
	Caption int // image whose caption is shown, or NoCaption
}

// Processor is built once per render. All derived state (masks, overlay
// bitmaps) is computed up front and only read afterwards, so Apply may run
// on many frames concurrently.
type Processor struct {
	width, height int

	color    string
	vignette []float32 // per-pixel gain, nil when off
	vintage  []float32

	title      *overlay
	titleUntil float64
	captions   []*overlay
	badge      *overlay
}

// New prepares the effects of cfg. captions[i] is the caption of image i;
// empty strings disable it for that image.
func New(cfg config.RenderConfig, captions []string) (*Processor, error) {
	p := &Processor{
		width:  cfg.Width,
		height: cfg.Height,
		color:  cfg.Effects.ColorAdjustment,
	}
	if cfg.Effects.Vignette {
		p.vignette = radialMask(cfg.Width, cfg.Height, vignetteStrength)
	}
	if p.color == config.ColorVintage {
		p.vintage = radialMask(cfg.Width, cfg.Height, vignetteStrength)
	}

	t := cfg.Text
	if t.TitleEnabled && t.TitleText != "" && t.TitleDuration > 0 {
		ov, err := newTextOverlay(t.TitleText, textStyle{
			font: t.TitleFont, size: t.TitleSize, color: t.TitleColor, bg: t.TitleBGColor,
		}, cfg.Width, cfg.Height, "center")
		if err != nil {
			return nil, fmt.Errorf("title overlay: %w", err)
		}
		p.title, p.titleUntil = ov, t.TitleDuration
	}
	if t.CaptionsEnabled {
		p.captions = make([]*overlay, len(captions))
		style := textStyle{font: t.CaptionsFont, size: t.CaptionsSize, color: t.CaptionsColor, bg: t.CaptionsBGColor}
		for i, text := range captions {
			if text == "" {
				continue
			}
			ov, err := newTextOverlay(text, style, cfg.Width, cfg.Height, t.CaptionsPosition)
			if err != nil {
				return nil, fmt.Errorf("caption %d: %w", i, err)
			}
			p.captions[i] = ov
		}
	}
	if cfg.Effects.QRText != "" {
		ov, err := newQROverlay(cfg.Effects.QRText, cfg.Width, cfg.Height, cfg.Effects.QRPosition)
		if err != nil {
			return nil, fmt.Errorf("qr overlay: %w", err)
		}
		p.badge = ov
	}
	return p, nil
}

// Apply grades img in place, then draws the overlays active for f.
func (p *Processor) Apply(img *image.RGBA, f Frame) error {
	if b := img.Bounds(); b.Dx() != p.width || b.Dy() != p.height {
		return fmt.Errorf("effects: frame %dx%d, want %dx%d", b.Dx(), b.Dy(), p.width, p.height)
	}

	switch p.color {
	case config.ColorWarm:
		channelGain(img, 1.2, 1, 0.8)
	case config.ColorCold:
		channelGain(img, 0.8, 1, 1.2)
	case config.ColorVintage:
		sepia(img)
		applyMask(img, p.vintage)
	case config.ColorBW:
		grayscale(img)
	}
	if p.vignette != nil {
		applyMask(img, p.vignette)
	}

	if p.title != nil && f.Time < p.titleUntil {
		p.title.drawOn(img)
	}
	if f.Caption >= 0 && f.Caption < len(p.captions) && p.captions[f.Caption] != nil {
		p.captions[f.Caption].drawOn(img)
	}
	if p.badge != nil {
		p.badge.drawOn(img)
	}
	return nil
}

// TitleActive reports whether the title overlay covers time t.
func (p *Processor) TitleActive(t float64) bool {
	return p.title != nil && t < p.titleUntil
}

type overlay struct {
	img *image.RGBA
	at  image.Point
}

func (o *overlay) drawOn(dst *image.RGBA) {
	r := o.img.Bounds().Sub(o.img.Bounds().Min).Add(o.at)
	draw.Draw(dst, r, o.img, o.img.Bounds().Min, draw.Over)
}
