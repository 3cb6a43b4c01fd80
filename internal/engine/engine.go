// Package engine drives a render: it plans the timeline, motion and audio,
// computes frames on a bounded worker pool and releases them to the encoder
// sink in index order with checkpointing.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/autoslideshow/internal/analyzer"
	"github.com/ivlev/autoslideshow/internal/audio"
	"github.com/ivlev/autoslideshow/internal/checkpoint"
	"github.com/ivlev/autoslideshow/internal/config"
	"github.com/ivlev/autoslideshow/internal/director"
	"github.com/ivlev/autoslideshow/internal/effects"
	"github.com/ivlev/autoslideshow/internal/errs"
	"github.com/ivlev/autoslideshow/internal/motion"
	"github.com/ivlev/autoslideshow/internal/source"
	"github.com/ivlev/autoslideshow/internal/system"
	"github.com/ivlev/autoslideshow/internal/timeline"
	"github.com/ivlev/autoslideshow/internal/video"
)

// Progress is reported after every released frame.
type Progress struct {
	Released    int
	Total       int
	ResumedFrom int
}

// Report summarizes a render, finished or not.
type Report struct {
	RunID       string
	Frames      int
	Rendered    int
	ResumedFrom int
	Duration    float64
	Transitions []string
	Audio       bool
	Beats       int
	Fallbacks   int
	Warnings    []string
	Elapsed     time.Duration
}

// VideoProject wires the collaborators of one render. Config must be
// resolved; Captions[i] is the caption of image i.
type VideoProject struct {
	Config   config.RenderConfig
	Runtime  config.Runtime
	Source   source.Source
	Sink     video.Sink
	Decoder  audio.Decoder
	Store    checkpoint.Store // nil opens Runtime.CheckpointStore
	Captions []string
	Logger   zerolog.Logger
	RunID    string

	// ScenarioPath, when set, receives the YAML camera and timing plan
	// before rendering starts.
	ScenarioPath string

	OnProgress func(Progress)
}

func (p *VideoProject) warn(r *Report, err error, msg string) {
	r.Warnings = append(r.Warnings, msg)
	ev := p.Logger.Warn()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}

// Run renders the project. Non-fatal problems end up in Report.Warnings; the
// returned error is one of the errs types (or the context error) and the
// Report is valid either way.
func (p *VideoProject) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	if p.RunID == "" {
		p.RunID = uuid.Must(uuid.NewV7()).String()
	}
	p.Logger = p.Logger.With().Str("component", "engine").Str("run_id", p.RunID).Logger()
	report := &Report{RunID: p.RunID}
	defer func() { report.Elapsed = time.Since(start) }()

	cfg := p.Config
	if err := cfg.Validate(); err != nil {
		return report, err
	}

	assets, err := source.LoadAssets(p.Source)
	if err != nil {
		return report, err
	}
	for i := range assets {
		if i < len(p.Captions) {
			assets[i].Caption = p.Captions[i]
		}
	}

	tl, err := timeline.Build(len(assets), cfg)
	if err != nil {
		return report, err
	}
	for _, w := range tl.Warnings {
		p.warn(report, nil, w)
	}

	st, tl, err := p.prepareAudio(ctx, tl, report)
	if err != nil {
		return report, err
	}
	for _, k := range tl.Kinds() {
		report.Transitions = append(report.Transitions, k.String())
	}

	workers := p.Runtime.Workers
	if workers <= 0 {
		workers = system.RecommendedWorkers(cfg.Width, cfg.Height)
	}
	size := cfg.Size()
	library := source.NewLibrary(p.Source, assets, cfg.Width, cfg.Height, workers+2)
	paths, err := p.motionPaths(ctx, tl, library, report)
	if err != nil {
		return report, err
	}

	if p.ScenarioPath != "" {
		p.writeScenario(tl, paths, assets, report)
	}

	captions := make([]string, len(assets))
	for i, a := range assets {
		captions[i] = a.Caption
	}
	fx, err := effects.New(cfg, captions)
	if err != nil {
		return report, errs.Config("text", "%v", err)
	}

	pl := &plan{
		timeline: tl,
		paths:    paths,
		library:  library,
		effects:  fx,
		pool:     system.NewFramePool(),
		size:     size,
	}

	total := tl.FrameCount()
	report.Frames, report.Duration = total, tl.Duration
	p.Logger.Info().
		Int("images", len(assets)).
		Int("frames", total).
		Float64("duration", tl.Duration).
		Float64("hold", tl.Hold).
		Float64("transition", tl.Transition).
		Int("workers", workers).
		Str("size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)).
		Msg("render planned")

	store := p.Store
	if store == nil {
		store, err = checkpoint.OpenStore(p.Runtime.CheckpointStore, p.Runtime.CheckpointPath, cfg.OutputPath)
		if err != nil {
			return report, err
		}
		defer store.Close()
	}
	mgr := checkpoint.NewManager(store, cfg.Fingerprint(), p.RunID, p.Logger)
	resume, err := mgr.Begin(ctx)
	var mismatch *errs.CheckpointMismatchError
	switch {
	case errors.As(err, &mismatch):
		p.warn(report, err, "checkpoint belongs to another configuration, starting over")
	case err != nil:
		return report, err
	}
	if resume > total {
		resume = total
	}

	from, err := p.Sink.Open(ctx, resume)
	if err != nil {
		return report, &errs.EncodeError{Frame: -1, Err: err}
	}
	defer p.Sink.Close()
	if from < resume {
		p.warn(report, nil, fmt.Sprintf("encoded output only reaches frame %d, resuming there instead of %d", from, resume))
	}
	report.ResumedFrom = from

	interval := p.Runtime.CheckpointInterval
	if interval <= 0 {
		interval = 100
	}
	pipe := &pipeline{
		plan:     pl,
		sink:     p.Sink,
		ckpt:     mgr,
		workers:  workers,
		interval: interval,
		from:     from,
		total:    total,
		logger:   p.Logger,
		progress: p.OnProgress,
	}
	released, runErr := pipe.run(ctx)
	report.Rendered = released - from
	report.Fallbacks = int(pipe.fallbacks.Load())
	if report.Fallbacks > 0 {
		p.warn(report, nil, fmt.Sprintf("%d frames rendered with the safe fallback", report.Fallbacks))
	}
	if p.Runtime.ShowStats {
		allocated, reused := pl.pool.Stats()
		p.Logger.Info().Int64("allocated", allocated).Int64("reused", reused).Msg("frame buffers")
	}
	if runErr != nil {
		p.Logger.Error().Err(runErr).Int("checkpoint", mgr.Last()).Msg("render stopped")
		return report, runErr
	}

	if err := p.Sink.Finish(ctx, st); err != nil {
		return report, &errs.EncodeError{Frame: -1, Err: err}
	}
	if err := mgr.Complete(ctx); err != nil {
		p.warn(report, err, "could not remove checkpoint")
	}
	p.Logger.Info().Int("frames", total).Dur("elapsed", time.Since(start)).Msg("render finished")
	return report, nil
}

// motionPaths builds the crop path of every image over its visibility
// window. In focus mode each prepared image is analyzed first; images without
// a clear region of interest fall back to a random pan.
func (p *VideoProject) motionPaths(ctx context.Context, tl *timeline.Timeline, library *source.Library, r *Report) ([]motion.Path, error) {
	cfg := p.Config
	size := cfg.Size()
	paths := make([]motion.Path, tl.Images)
	var detector analyzer.Detector
	if cfg.KenBurns && cfg.KenBurnsFocus {
		detector = analyzer.NewContrastDetector()
	}
	for i := range paths {
		from, to := tl.Visible(i)
		switch {
		case !cfg.KenBurns:
			paths[i] = motion.Static(size, from, to)
		case detector != nil:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			img, err := library.Prepared(i)
			if err != nil {
				return nil, err
			}
			focus, ok, err := analyzer.Focus(detector, img)
			if err != nil {
				p.warn(r, err, fmt.Sprintf("image %d: focus detection failed, using a random pan", i))
			}
			if ok {
				paths[i] = motion.Focused(i, size, cfg.KenBurnsIntensity, from, to, focus)
				p.Logger.Debug().Int("image", i).Int("x", focus.X).Int("y", focus.Y).Msg("ken burns focus")
				continue
			}
			paths[i] = motion.Generate(i, size, cfg.KenBurnsIntensity, from, to)
		default:
			paths[i] = motion.Generate(i, size, cfg.KenBurnsIntensity, from, to)
		}
	}
	return paths, nil
}

func (p *VideoProject) writeScenario(tl *timeline.Timeline, paths []motion.Path, assets []source.ImageAsset, r *Report) {
	sc, err := director.FromPlan(tl, paths, assets, p.Config.Fingerprint())
	if err == nil {
		err = director.WriteScenario(sc, p.ScenarioPath)
	}
	if err != nil {
		p.warn(r, err, "could not write scenario")
		return
	}
	p.Logger.Info().Str("path", p.ScenarioPath).Msg("scenario written")
}

// prepareAudio decodes the soundtrack and, when asked, snaps transition cuts
// to beats. Audio problems only produce warnings.
func (p *VideoProject) prepareAudio(ctx context.Context, tl *timeline.Timeline, r *Report) (*audio.Soundtrack, *timeline.Timeline, error) {
	a := p.Config.Audio
	if !a.Enabled || a.File == "" || p.Decoder == nil {
		return nil, tl, nil
	}
	st, err := audio.Prepare(ctx, p.Decoder, a, tl.Duration, tl.FrameRate)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		p.warn(r, err, "continuing without audio")
		return nil, tl, nil
	}
	r.Audio = true
	if !a.SyncToBeats || len(tl.Cuts()) == 0 {
		return st, tl, nil
	}

	beats := st.Envelope.Beats
	r.Beats = len(beats)
	snapped, misses := audio.SnapCuts(tl.Cuts(), beats, a.BeatTolerance)
	retimed, refused, err := tl.Retime(snapped)
	if err != nil {
		return nil, nil, err
	}
	for _, i := range misses {
		p.warn(r, nil, fmt.Sprintf("no beat within %.2fs of cut %d", a.BeatTolerance, i))
	}
	for _, i := range refused {
		p.warn(r, nil, fmt.Sprintf("beat snap of cut %d would leave a hold too short, kept original", i))
	}
	p.Logger.Debug().Int("beats", len(beats)).Int("cuts", len(snapped)).Msg("cuts aligned to beats")
	return st, retimed, nil
}
