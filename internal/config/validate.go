package config

import (
	"errors"
	"math"
	"strings"

	"github.com/ivlev/autoslideshow/internal/errs"
	"github.com/ivlev/autoslideshow/internal/transition"
)

// Validate checks that the resolved settings are consistent. Every problem is
// reported as an *errs.ConfigError; they are joined when there are several.
func (c RenderConfig) Validate() error {
	var problems []error
	add := func(field, format string, args ...any) {
		problems = append(problems, errs.Config(field, format, args...))
	}
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	if c.FrameRate <= 0 || c.FrameRate > 240 {
		add("frame_rate", "%d out of range 1..240", c.FrameRate)
	}
	if !finite(c.Duration) || c.Duration < 0 {
		add("video_duration", "%v must be >= 0", c.Duration)
	}
	if c.Duration == 0 && (!finite(c.ImageDuration) || c.ImageDuration <= 0) {
		add("image_duration", "%v must be > 0 when video_duration is 0", c.ImageDuration)
	}
	if _, _, err := ParseAspectRatio(c.AspectRatio); err != nil {
		add("aspect_ratio", "%v", err)
	}
	if c.Width <= 0 || c.Height <= 0 || c.Width%2 != 0 || c.Height%2 != 0 {
		add("width", "output size %dx%d must be positive and even", c.Width, c.Height)
	}

	if !transition.ValidName(c.TransitionType) {
		add("transition_type", "unknown transition %q", c.TransitionType)
	}
	if !finite(c.TransitionDuration) || c.TransitionDuration < 0 {
		add("transition_duration", "%v must be >= 0", c.TransitionDuration)
	}
	if !finite(c.KenBurnsIntensity) || c.KenBurnsIntensity < 0 || c.KenBurnsIntensity > 1 {
		add("ken_burns_intensity", "%v out of range [0,1]", c.KenBurnsIntensity)
	}

	t := c.Text
	if t.TitleEnabled {
		if t.TitleSize <= 0 {
			add("title_size", "%d must be positive", t.TitleSize)
		}
		if !finite(t.TitleDuration) || t.TitleDuration < 0 {
			add("title_duration", "%v must be >= 0", t.TitleDuration)
		}
		for field, v := range map[string]string{"title_color": t.TitleColor, "title_bg_color": t.TitleBGColor} {
			if _, err := ParseHexColor(v); err != nil {
				add(field, "%v", err)
			}
		}
	}
	if t.CaptionsEnabled {
		if t.CaptionsSize <= 0 {
			add("captions_size", "%d must be positive", t.CaptionsSize)
		}
		if !oneOf(t.CaptionsPosition, CaptionPositions) {
			add("captions_position", "%q not one of %s", t.CaptionsPosition, strings.Join(CaptionPositions, ", "))
		}
		for field, v := range map[string]string{"captions_color": t.CaptionsColor, "captions_bg_color": t.CaptionsBGColor} {
			if _, err := ParseHexColor(v); err != nil {
				add(field, "%v", err)
			}
		}
	}

	a := c.Audio
	if !finite(a.Volume) || a.Volume < 0 {
		add("audio_volume", "%v must be >= 0", a.Volume)
	}
	if !finite(a.FadeIn) || a.FadeIn < 0 || !finite(a.FadeOut) || a.FadeOut < 0 {
		add("audio_fade", "fades %v/%v must be >= 0", a.FadeIn, a.FadeOut)
	}
	if !finite(a.BeatTolerance) || a.BeatTolerance < 0 {
		add("beat_tolerance", "%v must be >= 0", a.BeatTolerance)
	}

	e := c.Effects
	if !oneOf(e.ColorAdjustment, ColorAdjustments) {
		add("color_adjustment", "%q not one of %s", e.ColorAdjustment, strings.Join(ColorAdjustments, ", "))
	}
	if e.QRText != "" && !oneOf(e.QRPosition, CornerPositions) {
		add("qr_position", "%q not one of %s", e.QRPosition, strings.Join(CornerPositions, ", "))
	}

	if c.Encoder.Quality < 0 {
		add("quality", "%d must be >= 0", c.Encoder.Quality)
	}

	return errors.Join(problems...)
}
