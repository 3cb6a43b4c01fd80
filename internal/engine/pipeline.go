package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ivlev/autoslideshow/internal/checkpoint"
	"github.com/ivlev/autoslideshow/internal/errs"
	"github.com/ivlev/autoslideshow/internal/video"
)

type rendered struct {
	index int
	img   *image.RGBA
}

// pipeline computes frames [from, total) out of order and releases them in
// order. At most window frames are in flight or waiting for release, which
// bounds the reorder buffer.
type pipeline struct {
	plan     *plan
	sink     video.Sink
	ckpt     *checkpoint.Manager
	workers  int
	interval int
	from     int
	total    int
	logger   zerolog.Logger
	progress func(Progress)

	fallbacks atomic.Int64
}

// run returns the index one past the last frame made durable.
func (p *pipeline) run(ctx context.Context) (int, error) {
	if p.from >= p.total {
		return p.from, p.commit(context.WithoutCancel(ctx), p.from)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	window := semaphore.NewWeighted(int64(2 * p.workers))
	jobs := make(chan Descriptor)
	results := make(chan rendered, p.workers)

	g.Go(func() error {
		defer close(jobs)
		for k := p.from; k < p.total; k++ {
			if err := window.Acquire(gctx, 1); err != nil {
				return nil
			}
			select {
			case jobs <- p.plan.describe(k):
			case <-gctx.Done():
				window.Release(1)
				return nil
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for d := range jobs {
				img, err := p.render(d)
				if err != nil {
					return err
				}
				select {
				case results <- rendered{index: d.Index, img: img}:
				case <-gctx.Done():
					p.plan.pool.Put(img)
					return nil
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	next, released, encodeErr := p.release(ctx, results, window, cancel)
	renderErr := g.Wait()

	// Whatever stopped the run, make the released frames durable first.
	flushCtx := context.WithoutCancel(ctx)
	switch {
	case encodeErr != nil:
		return released, encodeErr
	case renderErr != nil:
		if err := p.commit(flushCtx, next); err != nil {
			return released, err
		}
		return next, renderErr
	case next < p.total:
		if err := p.commit(flushCtx, next); err != nil {
			return released, err
		}
		p.logger.Warn().Int("checkpoint", next-1).Msg("render interrupted")
		if err := ctx.Err(); err != nil {
			return next, fmt.Errorf("interrupted at frame %d: %w", next, err)
		}
		return next, errors.New("pipeline stopped early")
	}
	return next, p.commit(flushCtx, next)
}

// release drains results into the sink in index order. It returns the next
// unreleased index and the index up to which frames are durably committed.
func (p *pipeline) release(ctx context.Context, results <-chan rendered, window *semaphore.Weighted, cancel context.CancelFunc) (next, durable int, err error) {
	// Frames already computed are still written after a cancel.
	ctx = context.WithoutCancel(ctx)
	pending := make(map[int]*image.RGBA)
	next, durable = p.from, p.from
	for r := range results {
		if err != nil {
			p.plan.pool.Put(r.img)
			continue
		}
		pending[r.index] = r.img
		for {
			img, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			werr := p.sink.WriteFrame(ctx, next, img)
			p.plan.pool.Put(img)
			if werr != nil {
				err = &errs.EncodeError{Frame: next, Err: werr}
				cancel()
				break
			}
			window.Release(1)
			next++

			if (next-p.from)%p.interval == 0 {
				if cerr := p.commit(ctx, next); cerr != nil {
					err = cerr
					cancel()
					break
				}
				durable = next
			}
			if p.progress != nil {
				p.progress(Progress{Released: next, Total: p.total, ResumedFrom: p.from})
			}
		}
	}
	for _, img := range pending {
		p.plan.pool.Put(img)
	}
	return next, durable, err
}

// commit seals the sink and advances the checkpoint to next-1.
func (p *pipeline) commit(ctx context.Context, next int) error {
	if err := p.sink.Commit(ctx); err != nil {
		return &errs.EncodeError{Frame: next - 1, Err: err}
	}
	if next > 0 {
		if err := p.ckpt.Advance(ctx, next-1); err != nil {
			return err
		}
	}
	return nil
}

// render computes d, retrying once with the safe crop and kind when the
// first attempt fails with a RenderError.
func (p *pipeline) render(d Descriptor) (*image.RGBA, error) {
	img, err := p.plan.compose(d)
	var renderErr *errs.RenderError
	if !errors.As(err, &renderErr) {
		return img, err
	}
	p.logger.Warn().Err(err).Int("frame", d.Index).Msg("retrying frame with fallback")
	p.fallbacks.Add(1)
	img, err = p.plan.compose(p.plan.safe(d))
	if err != nil {
		return nil, err
	}
	return img, nil
}
