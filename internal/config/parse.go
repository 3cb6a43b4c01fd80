package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseAspectRatio parses "W:H" into positive integers.
func ParseAspectRatio(s string) (w, h int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("aspect ratio %q: want W:H", s)
	}
	w, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("aspect ratio %q: %w", s, err)
	}
	h, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("aspect ratio %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("aspect ratio %q: sides must be positive", s)
	}
	return w, h, nil
}

// HeightFor returns the even output height matching width at ratio w:h.
func HeightFor(width, w, h int) int {
	return even(int(float64(width)*float64(h)/float64(w) + 0.5))
}

// ParseHexColor parses #RRGGBB or #RRGGBBAA. Alpha defaults to opaque.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("color %q: want #RRGGBB or #RRGGBBAA", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func even(n int) int {
	if n%2 == 0 {
		return n
	}
	return n + 1
}

func oneOf(s string, options []string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
