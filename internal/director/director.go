// Package director describes the camera and timing plan of a render as a
// YAML scenario, for inspection and for diffing two configurations.
package director

import (
	"fmt"
	"image"
	"math"

	"github.com/ivlev/autoslideshow/internal/motion"
	"github.com/ivlev/autoslideshow/internal/source"
	"github.com/ivlev/autoslideshow/internal/timeline"
)

const Version = "2.0"

// FromPlan builds the scenario of tl with paths[i] the crop path of image i.
func FromPlan(tl *timeline.Timeline, paths []motion.Path, assets []source.ImageAsset, fingerprint string) (*Scenario, error) {
	if len(paths) != tl.Images || len(assets) != tl.Images {
		return nil, fmt.Errorf("director: %d paths and %d assets for %d images", len(paths), len(assets), tl.Images)
	}
	sc := &Scenario{
		Version:     Version,
		Fingerprint: fingerprint,
		FrameRate:   tl.FrameRate,
		Duration:    round(tl.Duration),
		Frames:      tl.FrameCount(),
	}
	for i, p := range paths {
		from, to := tl.Visible(i)
		hold := tl.HoldWindow(i)
		slide := Slide{
			ID:       i + 1,
			Input:    assets[i].Path,
			Caption:  assets[i].Caption,
			Visible:  [2]float64{round(from), round(to)},
			Hold:     [2]float64{round(hold.Start), round(hold.End)},
			Duration: round(to - from),
			Keyframes: []Keyframe{
				keyframe(from, p.Start, p.Size),
				keyframe(to, p.End, p.Size),
			},
		}
		for _, seg := range tl.Segments {
			if seg.IsTransition() && seg.A == i && seg.Duration() > 0 {
				slide.Next = &Transition{Kind: seg.Kind.String(), Start: round(seg.Start), Duration: round(seg.Duration())}
				break
			}
		}
		sc.Slides = append(sc.Slides, slide)
	}
	return sc, nil
}

func keyframe(t float64, r motion.Rect, size image.Point) Keyframe {
	focus := "ken_burns"
	if r == (motion.Rect{W: float64(size.X), H: float64(size.Y)}) {
		focus = "full_view"
	}
	zoom := 1.0
	if r.W > 0 {
		zoom = float64(size.X) / r.W
	}
	return Keyframe{
		Time:  round(t),
		Focus: focus,
		Rect:  Rectangle{X: round(r.X), Y: round(r.Y), W: round(r.W), H: round(r.H)},
		Zoom:  round(zoom),
	}
}

// round keeps the YAML readable; scenarios are descriptive only.
func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
