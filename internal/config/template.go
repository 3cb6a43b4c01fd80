package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"

	"github.com/ivlev/autoslideshow/internal/errs"
)

// Template is a parsed template file: INI sections TEMPLATE, SETTINGS, TEXT,
// AUDIO and EFFECTS holding scalar options.
type Template struct {
	Name        string
	Description string
	Path        string
	file        *ini.File
}

// Override applies an explicit setting on top of defaults and template.
type Override func(*RenderConfig)

// option binds one template key to a config field.
type option struct {
	set func(c *RenderConfig, k *ini.Key) error
	get func(c *RenderConfig) string
}

func str(dst func(*RenderConfig) *string) option {
	return option{
		set: func(c *RenderConfig, k *ini.Key) error {
			*dst(c) = strings.TrimSpace(k.String())
			return nil
		},
		get: func(c *RenderConfig) string { return *dst(c) },
	}
}

func float(dst func(*RenderConfig) *float64) option {
	return option{
		set: func(c *RenderConfig, k *ini.Key) error {
			v, err := k.Float64()
			if err != nil {
				return err
			}
			*dst(c) = v
			return nil
		},
		get: func(c *RenderConfig) string { return strconv.FormatFloat(*dst(c), 'g', -1, 64) },
	}
}

func integer(dst func(*RenderConfig) *int) option {
	return option{
		set: func(c *RenderConfig, k *ini.Key) error {
			v, err := k.Int()
			if err != nil {
				return err
			}
			*dst(c) = v
			return nil
		},
		get: func(c *RenderConfig) string { return strconv.Itoa(*dst(c)) },
	}
}

func boolean(dst func(*RenderConfig) *bool) option {
	return option{
		set: func(c *RenderConfig, k *ini.Key) error {
			v, err := k.Bool()
			if err != nil {
				return err
			}
			*dst(c) = v
			return nil
		},
		get: func(c *RenderConfig) string { return strconv.FormatBool(*dst(c)) },
	}
}

// templateSections is the order sections are written in.
var templateSections = []string{"SETTINGS", "TEXT", "AUDIO", "EFFECTS"}

var templateKeys = map[string]map[string]option{
	"SETTINGS": {
		"transition_duration": float(func(c *RenderConfig) *float64 { return &c.TransitionDuration }),
		"video_duration":      float(func(c *RenderConfig) *float64 { return &c.Duration }),
		"frame_rate":          integer(func(c *RenderConfig) *int { return &c.FrameRate }),
		"transition_type":     str(func(c *RenderConfig) *string { return &c.TransitionType }),
		"image_duration":      float(func(c *RenderConfig) *float64 { return &c.ImageDuration }),
		"output_file":         str(func(c *RenderConfig) *string { return &c.OutputPath }),
		"output_aspect_ratio": str(func(c *RenderConfig) *string { return &c.AspectRatio }),
		"output_width":        integer(func(c *RenderConfig) *int { return &c.Width }),
		"ken_burns_enabled":   boolean(func(c *RenderConfig) *bool { return &c.KenBurns }),
		"ken_burns_intensity": float(func(c *RenderConfig) *float64 { return &c.KenBurnsIntensity }),
		"ken_burns_focus":     boolean(func(c *RenderConfig) *bool { return &c.KenBurnsFocus }),
		"video_codec":         str(func(c *RenderConfig) *string { return &c.Encoder.Codec }),
		"video_quality":       integer(func(c *RenderConfig) *int { return &c.Encoder.Quality }),
	},
	"TEXT": {
		"title_enabled":     boolean(func(c *RenderConfig) *bool { return &c.Text.TitleEnabled }),
		"title_text":        str(func(c *RenderConfig) *string { return &c.Text.TitleText }),
		"title_font":        str(func(c *RenderConfig) *string { return &c.Text.TitleFont }),
		"title_size":        integer(func(c *RenderConfig) *int { return &c.Text.TitleSize }),
		"title_color":       str(func(c *RenderConfig) *string { return &c.Text.TitleColor }),
		"title_bg_color":    str(func(c *RenderConfig) *string { return &c.Text.TitleBGColor }),
		"title_duration":    float(func(c *RenderConfig) *float64 { return &c.Text.TitleDuration }),
		"captions_enabled":  boolean(func(c *RenderConfig) *bool { return &c.Text.CaptionsEnabled }),
		"captions_position": str(func(c *RenderConfig) *string { return &c.Text.CaptionsPosition }),
		"captions_font":     str(func(c *RenderConfig) *string { return &c.Text.CaptionsFont }),
		"captions_size":     integer(func(c *RenderConfig) *int { return &c.Text.CaptionsSize }),
		"captions_color":    str(func(c *RenderConfig) *string { return &c.Text.CaptionsColor }),
		"captions_bg_color": str(func(c *RenderConfig) *string { return &c.Text.CaptionsBGColor }),
	},
	"AUDIO": {
		"audio_enabled":  boolean(func(c *RenderConfig) *bool { return &c.Audio.Enabled }),
		"audio_file":     str(func(c *RenderConfig) *string { return &c.Audio.File }),
		"audio_volume":   float(func(c *RenderConfig) *float64 { return &c.Audio.Volume }),
		"audio_fade_in":  float(func(c *RenderConfig) *float64 { return &c.Audio.FadeIn }),
		"audio_fade_out": float(func(c *RenderConfig) *float64 { return &c.Audio.FadeOut }),
		"sync_to_beats":  boolean(func(c *RenderConfig) *bool { return &c.Audio.SyncToBeats }),
		"beat_tolerance": float(func(c *RenderConfig) *float64 { return &c.Audio.BeatTolerance }),
		"loop_audio":     boolean(func(c *RenderConfig) *bool { return &c.Audio.Loop }),
	},
	"EFFECTS": {
		"color_adjustment": str(func(c *RenderConfig) *string { return &c.Effects.ColorAdjustment }),
		"vignette":         boolean(func(c *RenderConfig) *bool { return &c.Effects.Vignette }),
		"qr_text":          str(func(c *RenderConfig) *string { return &c.Effects.QRText }),
		"qr_position":      str(func(c *RenderConfig) *string { return &c.Effects.QRPosition }),
	},
}

// Hex colors start with '#', so inline comments are not recognized.
var loadOptions = ini.LoadOptions{IgnoreInlineComment: true}

// LoadTemplate reads and parses a template file.
func LoadTemplate(path string) (*Template, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, errs.Config("template", "load %s: %w", path, err)
	}
	t := newTemplate(f)
	t.Path = path
	return t, nil
}

// ParseTemplate parses template text.
func ParseTemplate(data []byte) (*Template, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, errs.Config("template", "parse: %w", err)
	}
	return newTemplate(f), nil
}

func newTemplate(f *ini.File) *Template {
	meta := f.Section("TEMPLATE")
	return &Template{
		Name:        meta.Key("name").String(),
		Description: meta.Key("description").String(),
		file:        f,
	}
}

// Apply writes every recognized option into c and returns the keys it did
// not recognize as "SECTION.key".
func (t *Template) Apply(c *RenderConfig) (unknown []string, err error) {
	for _, sec := range t.file.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection || name == "TEMPLATE" {
			continue
		}
		keys, known := templateKeys[name]
		for _, k := range sec.Keys() {
			opt, ok := keys[k.Name()]
			if !known || !ok {
				unknown = append(unknown, name+"."+k.Name())
				continue
			}
			if err := opt.set(c, k); err != nil {
				return unknown, errs.Config(k.Name(), "template %s: %w", name, err)
			}
		}
	}
	return unknown, nil
}

// SaveTemplate writes every template option of c to path so that loading
// it back over Defaults reproduces c.
func SaveTemplate(path, name, description string, c RenderConfig) error {
	f := ini.Empty(loadOptions)
	meta := f.Section("TEMPLATE")
	meta.Key("name").SetValue(name)
	meta.Key("description").SetValue(description)
	for _, secName := range templateSections {
		sec := f.Section(secName)
		keys := make([]string, 0, len(templateKeys[secName]))
		for k := range templateKeys[secName] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sec.Key(k).SetValue(templateKeys[secName][k].get(&c))
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return f.SaveTo(path)
}

// ListTemplates loads every *.ini template in dir, sorted by file name.
// Files that fail to parse are skipped and returned in bad.
func ListTemplates(dir string) (templates []*Template, bad []string, err error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.ini"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(paths)
	for _, p := range paths {
		t, err := LoadTemplate(p)
		if err != nil {
			bad = append(bad, p)
			continue
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(filepath.Base(p), ".ini")
		}
		templates = append(templates, t)
	}
	return templates, bad, nil
}

// Resolve merges template and overrides over base, derives the output height
// from width and aspect ratio, and validates the result. Unrecognized
// template keys are logged as warnings.
func Resolve(base RenderConfig, tpl *Template, overrides ...Override) (RenderConfig, error) {
	c := base
	if tpl != nil {
		unknown, err := tpl.Apply(&c)
		if err != nil {
			return RenderConfig{}, err
		}
		if len(unknown) > 0 {
			log.Warn().Str("template", tpl.Path).Strs("keys", unknown).Msg("unknown template options ignored")
		}
	}
	for _, o := range overrides {
		o(&c)
	}

	c.TransitionType = strings.ToLower(strings.TrimSpace(c.TransitionType))
	c.Effects.ColorAdjustment = strings.ToLower(strings.TrimSpace(c.Effects.ColorAdjustment))
	if w, h, err := ParseAspectRatio(c.AspectRatio); err == nil && c.Width > 0 {
		c.Width = even(c.Width)
		c.Height = HeightFor(c.Width, w, h)
	}

	if err := c.Validate(); err != nil {
		return RenderConfig{}, fmt.Errorf("resolve config: %w", err)
	}
	return c, nil
}
