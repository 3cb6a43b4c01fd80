package audio

// Envelope is the gain curve of the soundtrack over the video. Times/Gains sample it at
// frame timestamps plus the final instant; GainAt is the exact curve.
type Envelope struct {
	Duration float64
	Volume   float64
	FadeIn   float64
	FadeOut  float64
	Times    []float64
	Gains    []float64
	Beats    []float64
}

// NewEnvelope builds linear fades at both ends. When the fades together are
// longer than the video they are scaled down proportionally.
func NewEnvelope(duration float64, fps int, volume, fadeIn, fadeOut float64) *Envelope {
	if total := fadeIn + fadeOut; total > duration && total > 0 {
		k := duration / total
		fadeIn, fadeOut = fadeIn*k, fadeOut*k
	}
	e := &Envelope{Duration: duration, Volume: max(volume, 0), FadeIn: fadeIn, FadeOut: fadeOut}
	if fps > 0 && duration > 0 {
		n := int(duration * float64(fps))
		for k := 0; k <= n; k++ {
			t := float64(k) / float64(fps)
			if t >= duration {
				break
			}
			e.Times = append(e.Times, t)
		}
		e.Times = append(e.Times, duration)
		e.Gains = make([]float64, len(e.Times))
		for i, t := range e.Times {
			e.Gains[i] = e.GainAt(t)
		}
	}
	return e
}

// GainAt is volume times the fade factor at t, clamped to [0, volume].
func (e *Envelope) GainAt(t float64) float64 {
	g := 1.0
	if e.FadeIn > 0 && t < e.FadeIn {
		g = min(g, t/e.FadeIn)
	}
	if e.FadeOut > 0 && t > e.Duration-e.FadeOut {
		g = min(g, (e.Duration-t)/e.FadeOut)
	}
	return min(max(g, 0), 1) * e.Volume
}
