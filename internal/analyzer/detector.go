// Package analyzer finds regions of interest in still images. Ken Burns
// focus mode pans toward the strongest one.
package analyzer

import (
	"fmt"
	"image"
)

// Block is a detected region of interest in source image coordinates.
type Block struct {
	Rect  image.Rectangle
	Edges int // edge pixels inside Rect, at analysis resolution
}

// Detector is the interface for image analysis strategies.
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

// NewDetector returns the detector for variant. Only "contrast" exists.
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}

// Focus returns the center of the block with the most edges.
func Focus(d Detector, img image.Image) (image.Point, bool, error) {
	blocks, err := d.Detect(img)
	if err != nil {
		return image.Point{}, false, err
	}
	best := -1
	for i, b := range blocks {
		if best < 0 || b.Edges > blocks[best].Edges {
			best = i
		}
	}
	if best < 0 {
		return image.Point{}, false, nil
	}
	r := blocks[best].Rect
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2), true, nil
}
