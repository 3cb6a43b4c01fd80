package audio

import (
	"math"
	"sort"
)

const (
	onsetWindow   = 1024
	onsetHop      = 512
	onsetContext  = 0.5 // seconds on each side for the adaptive threshold
	onsetGain     = 1.5
	onsetMinGap   = 0.1 // seconds between onsets
	onsetMinLevel = 1e-4
)

// DetectBeats finds onset times from positive jumps in short-time energy. A
// frame counts when its flux is a local maximum above 1.5x the mean flux of
// the surrounding second.
func DetectBeats(t *Track) []float64 {
	if t == nil || t.Rate <= 0 || len(t.Samples) < onsetWindow {
		return nil
	}
	frames := (len(t.Samples)-onsetWindow)/onsetHop + 1
	energy := make([]float64, frames)
	for i := range energy {
		var sum float64
		for _, s := range t.Samples[i*onsetHop : i*onsetHop+onsetWindow] {
			sum += float64(s) * float64(s)
		}
		energy[i] = sum / onsetWindow
	}
	flux := make([]float64, frames)
	for i := 1; i < frames; i++ {
		flux[i] = max(energy[i]-energy[i-1], 0)
	}

	// Prefix sums make the moving mean O(1) per frame.
	prefix := make([]float64, frames+1)
	for i, f := range flux {
		prefix[i+1] = prefix[i] + f
	}
	hopSec := float64(onsetHop) / float64(t.Rate)
	ctx := max(int(onsetContext/hopSec), 1)
	gap := max(int(math.Ceil(onsetMinGap/hopSec)), 1)

	var beats []float64
	last := -gap
	for i := 1; i < frames-1; i++ {
		lo, hi := max(i-ctx, 0), min(i+ctx+1, frames)
		mean := (prefix[hi] - prefix[lo]) / float64(hi-lo)
		f := flux[i]
		if f < onsetMinLevel || f <= onsetGain*mean || f < flux[i-1] || f < flux[i+1] {
			continue
		}
		if i-last < gap {
			continue
		}
		beats = append(beats, float64(i)*hopSec+float64(onsetWindow)/2/float64(t.Rate))
		last = i
	}
	return beats
}

// SnapCuts moves every cut to the nearest beat within tolerance. Cuts with no
// beat in range keep their time and are reported as misses.
func SnapCuts(cuts, beats []float64, tolerance float64) (snapped []float64, misses []int) {
	snapped = make([]float64, len(cuts))
	for i, c := range cuts {
		snapped[i] = c
		b, ok := nearest(beats, c)
		if ok && math.Abs(b-c) <= tolerance {
			snapped[i] = b
		} else {
			misses = append(misses, i)
		}
	}
	return snapped, misses
}

// nearest expects sorted beats.
func nearest(beats []float64, t float64) (float64, bool) {
	if len(beats) == 0 {
		return 0, false
	}
	i := sort.SearchFloat64s(beats, t)
	switch {
	case i == 0:
		return beats[0], true
	case i == len(beats):
		return beats[len(beats)-1], true
	case t-beats[i-1] <= beats[i]-t:
		return beats[i-1], true
	default:
		return beats[i], true
	}
}
