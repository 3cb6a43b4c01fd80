package engine

import (
	"image"

	"github.com/ivlev/autoslideshow/internal/effects"
	"github.com/ivlev/autoslideshow/internal/errs"
	"github.com/ivlev/autoslideshow/internal/motion"
	"github.com/ivlev/autoslideshow/internal/source"
	"github.com/ivlev/autoslideshow/internal/system"
	"github.com/ivlev/autoslideshow/internal/timeline"
	"github.com/ivlev/autoslideshow/internal/transition"
)

// Descriptor is everything needed to compute one frame. It is built once by
// the dispatcher and never modified.
type Descriptor struct {
	Index    int
	Time     float64
	A, B     int // B is timeline.NoImage outside transitions
	Progress float64
	Kind     transition.Kind
	RectA    motion.Rect
	RectB    motion.Rect
	Overlay  effects.Frame
}

func (d Descriptor) IsTransition() bool { return d.B != timeline.NoImage }

// plan holds the immutable per-render state shared by every worker.
type plan struct {
	timeline *timeline.Timeline
	paths    []motion.Path
	library  *source.Library
	effects  *effects.Processor
	pool     *system.FramePool
	size     image.Point
}

func (p *plan) describe(k int) Descriptor {
	t := p.timeline.Timestamp(k)
	seg, _ := p.timeline.At(t)
	d := Descriptor{
		Index:    k,
		Time:     t,
		A:        seg.A,
		B:        seg.B,
		Progress: seg.Progress(t),
		Kind:     seg.Kind,
		RectA:    p.paths[seg.A].At(t),
		Overlay:  effects.Frame{Time: t, Caption: seg.A},
	}
	if seg.IsTransition() {
		d.RectB = p.paths[seg.B].At(t)
		d.Overlay.Caption = effects.NoCaption
	}
	return d
}

// safe returns d with full-image crops and a plain fade, the fallback after
// a failed render.
func (p *plan) safe(d Descriptor) Descriptor {
	full := motion.Rect{W: float64(p.size.X), H: float64(p.size.Y)}
	d.RectA, d.RectB = full, full
	d.Kind = transition.Fade
	return d
}

// compose renders d into a pooled frame owned by the caller.
func (p *plan) compose(d Descriptor) (*image.RGBA, error) {
	a, err := p.library.Prepared(d.A)
	if err != nil {
		return nil, err
	}
	frameA := p.pool.Get(p.size)
	if err := motion.Apply(frameA, a, d.RectA); err != nil {
		p.pool.Put(frameA)
		return nil, &errs.RenderError{Frame: d.Index, Err: err}
	}

	out := frameA
	if d.IsTransition() {
		b, err := p.library.Prepared(d.B)
		if err != nil {
			p.pool.Put(frameA)
			return nil, err
		}
		frameB := p.pool.Get(p.size)
		defer p.pool.Put(frameB)
		if err := motion.Apply(frameB, b, d.RectB); err != nil {
			p.pool.Put(frameA)
			return nil, &errs.RenderError{Frame: d.Index, Err: err}
		}
		out = p.pool.Get(p.size)
		err = transition.RenderInto(out, frameA, frameB, d.Progress, d.Kind)
		p.pool.Put(frameA)
		if err != nil {
			p.pool.Put(out)
			return nil, &errs.RenderError{Frame: d.Index, Err: err}
		}
	}

	if err := p.effects.Apply(out, d.Overlay); err != nil {
		p.pool.Put(out)
		return nil, &errs.RenderError{Frame: d.Index, Err: err}
	}
	return out, nil
}
