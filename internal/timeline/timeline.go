// Package timeline turns an ordered image list into contiguous hold and
// transition segments covering the whole video.
package timeline

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/ivlev/autoslideshow/internal/config"
	"github.com/ivlev/autoslideshow/internal/errs"
	"github.com/ivlev/autoslideshow/internal/transition"
)

// NoImage marks the B side of a hold segment.
const NoImage = -1

// randomSeed is mixed with the segment index when drawing random kinds.
const randomSeed = 0x51de5

// Segment is one contiguous time window. A hold shows image A alone; a
// transition blends A into B over [Start, End).
type Segment struct {
	A, B               int
	Start, End         float64
	Kind               transition.Kind
	TransitionDuration float64
}

func (s Segment) IsTransition() bool { return s.B != NoImage }

func (s Segment) Duration() float64 { return s.End - s.Start }

// Progress maps t to [0,1] within the segment.
func (s Segment) Progress(t float64) float64 {
	d := s.End - s.Start
	if d <= 0 {
		return 1
	}
	return min(max((t-s.Start)/d, 0), 1)
}

// Timeline is immutable once built.
type Timeline struct {
	Segments   []Segment
	Duration   float64
	Hold       float64 // base hold per image
	Transition float64 // effective transition duration
	Images     int
	FrameRate  int
	Warnings   []string
}

// Build lays out images over the configured duration.
func Build(images int, cfg config.RenderConfig) (*Timeline, error) {
	if images <= 0 {
		return nil, errs.Config("images", "no images to show")
	}
	if cfg.FrameRate <= 0 {
		return nil, errs.Config("frame_rate", "%d must be positive", cfg.FrameRate)
	}

	name := strings.ToLower(strings.TrimSpace(cfg.TransitionType))
	trDur := cfg.TransitionDuration
	if name == transition.None || images == 1 {
		trDur = 0
	}
	var fixed transition.Kind
	random := name == transition.Random
	if !random && name != transition.None {
		k, err := transition.Parse(name)
		if err != nil {
			return nil, errs.Config("transition_type", "%v", err)
		}
		fixed = k
	}

	gaps := float64(images - 1)
	total := cfg.Duration
	if total <= 0 {
		total = float64(images)*cfg.ImageDuration + gaps*trDur
	}
	hold := (total - gaps*trDur) / float64(images)
	if hold <= 0 || math.IsNaN(hold) {
		return nil, errs.Config("video_duration",
			"%.2fs cannot fit %d images with %.2fs transitions", total, images, trDur)
	}

	tl := &Timeline{Duration: total, Images: images, FrameRate: cfg.FrameRate}
	if trDur > hold/2 {
		clamped := total / float64(3*images-1)
		tl.Warnings = append(tl.Warnings, fmt.Sprintf(
			"transition duration reduced from %.3fs to %.3fs to keep it within half a hold", trDur, clamped))
		trDur = clamped
		hold = (total - gaps*trDur) / float64(images)
	}
	tl.Hold, tl.Transition = hold, trDur

	all := transition.All()
	tl.Segments = make([]Segment, 0, 2*images-1)
	at := 0.0
	for i := 0; i < images; i++ {
		tl.Segments = append(tl.Segments, Segment{A: i, B: NoImage, Start: at, End: at + hold})
		at += hold
		if i == images-1 {
			break
		}
		kind := fixed
		if random {
			rng := rand.New(rand.NewPCG(uint64(i), randomSeed))
			kind = all[rng.IntN(len(all))]
		}
		tl.Segments = append(tl.Segments, Segment{
			A: i, B: i + 1, Start: at, End: at + trDur,
			Kind: kind, TransitionDuration: trDur,
		})
		at += trDur
	}
	tl.Segments[len(tl.Segments)-1].End = total
	return tl, nil
}

// FrameCount is the number of output frames: round(duration * fps).
func (tl *Timeline) FrameCount() int {
	return int(math.Round(tl.Duration * float64(tl.FrameRate)))
}

// Timestamp of frame k.
func (tl *Timeline) Timestamp(k int) float64 {
	return float64(k) / float64(tl.FrameRate)
}

// At returns the segment covering t. Zero-length segments are never returned.
func (tl *Timeline) At(t float64) (Segment, int) {
	i := sort.Search(len(tl.Segments), func(i int) bool { return tl.Segments[i].End > t })
	if i >= len(tl.Segments) {
		i = len(tl.Segments) - 1
	}
	return tl.Segments[i], i
}

// Kinds lists the transition kind of every transition segment in order.
func (tl *Timeline) Kinds() []transition.Kind {
	var kinds []transition.Kind
	for _, s := range tl.Segments {
		if s.IsTransition() {
			kinds = append(kinds, s.Kind)
		}
	}
	return kinds
}

// Visible returns the window in which image i contributes to frames, from the
// start of its incoming transition to the end of its outgoing one.
func (tl *Timeline) Visible(i int) (start, end float64) {
	hold := tl.Segments[2*i]
	start, end = hold.Start, hold.End
	if i > 0 {
		start = tl.Segments[2*i-1].Start
	}
	if 2*i+1 < len(tl.Segments) {
		end = tl.Segments[2*i+1].End
	}
	return start, end
}

// HoldWindow returns the hold segment of image i.
func (tl *Timeline) HoldWindow(i int) Segment {
	return tl.Segments[2*i]
}
