package transition

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a transition algorithm.
type Kind int

// Numeric values double as the legacy transition ids 0..14.
const (
	Fade Kind = iota
	WipeLeft
	WipeRight
	WipeUp
	WipeDown
	ZoomIn
	ZoomOut
	SlideLeft
	SlideRight
	CubeRotation
	DoorOpen
	Pixelate
	RadialWipe
	SplitVertical
	PageCurl

	kindCount
)

// Pseudo kinds accepted in configuration.
const (
	Random = "random"
	None   = "none"
)

var kindNames = [...]string{
	Fade:          "fade",
	WipeLeft:      "wipe_left",
	WipeRight:     "wipe_right",
	WipeUp:        "wipe_up",
	WipeDown:      "wipe_down",
	ZoomIn:        "zoom_in",
	ZoomOut:       "zoom_out",
	SlideLeft:     "slide_left",
	SlideRight:    "slide_right",
	CubeRotation:  "cube_rotation",
	DoorOpen:      "door_open",
	Pixelate:      "pixelate",
	RadialWipe:    "radial_wipe",
	SplitVertical: "split_vertical",
	PageCurl:      "page_curl",
}

var kindDescriptions = [...]string{
	Fade:          "Smooth cross-dissolve between images",
	WipeLeft:      "New image wipes in from right to left",
	WipeRight:     "New image wipes in from left to right",
	WipeUp:        "New image wipes in from bottom to top",
	WipeDown:      "New image wipes in from top to bottom",
	ZoomIn:        "New image zooms in from center",
	ZoomOut:       "Current image zooms out to reveal new image",
	SlideLeft:     "Current image slides left, new image enters from right",
	SlideRight:    "Current image slides right, new image enters from left",
	CubeRotation:  "3D cube rotation effect",
	DoorOpen:      "Current image splits and opens like doors",
	Pixelate:      "Current image pixelates out, then new image forms",
	RadialWipe:    "Clockwise sweep around the center",
	SplitVertical: "A vertical seam opens from the center revealing the new image",
	PageCurl:      "Page curl effect like turning a book page",
}

func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Description is a one-line human description used by listings.
func (k Kind) Description() string {
	if k.Valid() {
		return kindDescriptions[k]
	}
	return ""
}

func (k Kind) Valid() bool {
	return k >= 0 && k < kindCount
}

// All returns every kind in id order. Random selection indexes into it, so
// the order is part of the reproducibility contract.
func All() []Kind {
	kinds := make([]Kind, kindCount)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

// Parse accepts a kind name or its numeric id.
func Parse(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	if id, err := strconv.Atoi(name); err == nil && Kind(id).Valid() {
		return Kind(id), nil
	}
	return 0, fmt.Errorf("unknown transition %q", s)
}

// ValidName reports whether s is a kind, "random" or "none".
func ValidName(s string) bool {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == Random || name == None {
		return true
	}
	_, err := Parse(name)
	return err == nil
}
