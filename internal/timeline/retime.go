package timeline

import "fmt"

// Cuts returns the playback cut of every transition, the midpoint of its window.
func (tl *Timeline) Cuts() []float64 {
	cuts := make([]float64, 0, tl.Images-1)
	for _, s := range tl.Segments {
		if s.IsTransition() {
			cuts = append(cuts, (s.Start+s.End)/2)
		}
	}
	return cuts
}

// Retime moves each transition so its midpoint lands on cuts[i]. Transition
// length, segment count and order stay the same. A move is refused when a
// neighbouring hold would drop below twice the transition duration (or one
// frame for hard cuts); refused indexes are returned and keep their place.
func (tl *Timeline) Retime(cuts []float64) (*Timeline, []int, error) {
	orig := tl.Cuts()
	if len(cuts) != len(orig) {
		return nil, nil, fmt.Errorf("retime: %d cuts for %d transitions", len(cuts), len(orig))
	}
	half := tl.Transition / 2
	minHold := max(2*tl.Transition, 1/float64(tl.FrameRate))

	out := *tl
	out.Segments = append([]Segment(nil), tl.Segments...)
	out.Warnings = append([]string(nil), tl.Warnings...)

	var refused []int
	prevEnd := 0.0 // end of the previous transition, already final
	for i, want := range cuts {
		nextStart := tl.Duration
		if i+1 < len(orig) {
			nextStart = orig[i+1] - half
		}
		cut := want
		if want-half-prevEnd < minHold || nextStart-(want+half) < minHold {
			cut = orig[i]
			if want != orig[i] {
				refused = append(refused, i)
			}
		}

		tr := &out.Segments[2*i+1]
		tr.Start, tr.End = cut-half, cut+half
		out.Segments[2*i].End = tr.Start
		out.Segments[2*i+2].Start = tr.End
		prevEnd = tr.End
	}
	return &out, refused, nil
}
