package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"

	"gopkg.in/yaml.v3"
)

// RenderConfig is the fully resolved, immutable configuration of one render.
// Components receive it by value or through a read-only pointer and never
// mutate it after Resolve.
type RenderConfig struct {
	InputPath  string `yaml:"input_path"`
	OutputPath string `yaml:"output_path"`

	FrameRate     int     `yaml:"frame_rate"`
	Duration      float64 `yaml:"video_duration"` // <= 0: derived from ImageDuration
	ImageDuration float64 `yaml:"image_duration"`
	AspectRatio   string  `yaml:"aspect_ratio"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`

	TransitionType     string  `yaml:"transition_type"`
	TransitionDuration float64 `yaml:"transition_duration"`

	KenBurns          bool    `yaml:"ken_burns"`
	KenBurnsIntensity float64 `yaml:"ken_burns_intensity"`
	KenBurnsFocus     bool    `yaml:"ken_burns_focus"` // pan toward the most detailed region

	Text    TextConfig    `yaml:"text"`
	Audio   AudioConfig   `yaml:"audio"`
	Effects EffectsConfig `yaml:"effects"`
	Encoder EncoderConfig `yaml:"encoder"`
}

type TextConfig struct {
	TitleEnabled  bool    `yaml:"title_enabled"`
	TitleText     string  `yaml:"title_text"`
	TitleFont     string  `yaml:"title_font"`
	TitleSize     int     `yaml:"title_size"`
	TitleColor    string  `yaml:"title_color"`
	TitleBGColor  string  `yaml:"title_bg_color"`
	TitleDuration float64 `yaml:"title_duration"`

	CaptionsEnabled  bool   `yaml:"captions_enabled"`
	CaptionsPosition string `yaml:"captions_position"`
	CaptionsFont     string `yaml:"captions_font"`
	CaptionsSize     int    `yaml:"captions_size"`
	CaptionsColor    string `yaml:"captions_color"`
	CaptionsBGColor  string `yaml:"captions_bg_color"`
}

type AudioConfig struct {
	Enabled       bool    `yaml:"enabled"`
	File          string  `yaml:"file"`
	Volume        float64 `yaml:"volume"`
	FadeIn        float64 `yaml:"fade_in"`
	FadeOut       float64 `yaml:"fade_out"`
	SyncToBeats   bool    `yaml:"sync_to_beats"`
	BeatTolerance float64 `yaml:"beat_tolerance"`
	Loop          bool    `yaml:"loop"`
}

type EffectsConfig struct {
	ColorAdjustment string `yaml:"color_adjustment"`
	Vignette        bool   `yaml:"vignette"`
	QRText          string `yaml:"qr_text"`
	QRPosition      string `yaml:"qr_position"`
}

// EncoderConfig is forwarded to the encoder sink. It is part of the
// fingerprint because resumed parts must be encoded identically.
type EncoderConfig struct {
	Codec   string `yaml:"codec"`
	Quality int    `yaml:"quality"`
}

// Runtime holds options that change how a render runs but never the pixels
// it produces. They are excluded from the fingerprint.
type Runtime struct {
	Workers            int
	CheckpointInterval int
	CheckpointStore    string // "file" or "sqlite"
	CheckpointPath     string // empty picks a path next to the output
	ShowStats          bool
}

const (
	ColorNone    = "none"
	ColorWarm    = "warm"
	ColorCold    = "cold"
	ColorVintage = "vintage"
	ColorBW      = "bw"
)

var ColorAdjustments = []string{ColorNone, ColorWarm, ColorCold, ColorVintage, ColorBW}

var CaptionPositions = []string{"top", "bottom", "center"}

var CornerPositions = []string{"top-left", "top-right", "bottom-left", "bottom-right"}

// Defaults returns the built-in settings every template is merged over.
func Defaults() RenderConfig {
	return RenderConfig{
		OutputPath:         "slideshow.mp4",
		FrameRate:          25,
		Duration:           59,
		ImageDuration:      3,
		AspectRatio:        "16:9",
		Width:              1280,
		TransitionType:     "random",
		TransitionDuration: 0.5,
		KenBurns:           false,
		KenBurnsIntensity:  0.5,
		Text: TextConfig{
			TitleFont:        "Arial",
			TitleSize:        48,
			TitleColor:       "#FFFFFF",
			TitleBGColor:     "#00000080",
			TitleDuration:    3,
			CaptionsPosition: "bottom",
			CaptionsFont:     "Arial",
			CaptionsSize:     32,
			CaptionsColor:    "#FFFFFF",
			CaptionsBGColor:  "#00000080",
		},
		Audio: AudioConfig{
			Volume:        1.0,
			FadeIn:        2.0,
			FadeOut:       2.0,
			BeatTolerance: 0.15,
			Loop:          true,
		},
		Effects: EffectsConfig{
			ColorAdjustment: ColorNone,
			QRPosition:      "bottom-right",
		},
		Encoder: EncoderConfig{
			Codec:   "libx264",
			Quality: 23,
		},
	}
}

// DefaultRuntime leaves the worker count to the engine.
func DefaultRuntime() Runtime {
	return Runtime{
		CheckpointInterval: 100,
		CheckpointStore:    "file",
	}
}

// Fingerprint is a stable hash over every field of the config.
func (c RenderConfig) Fingerprint() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		// A struct of scalars always marshals; keep the signature simple.
		panic(fmt.Sprintf("config: fingerprint marshal: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Size is the output frame size.
func (c RenderConfig) Size() image.Point {
	return image.Pt(c.Width, c.Height)
}
