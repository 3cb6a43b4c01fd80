package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

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
	"github.com/ivlev/autoslideshow/internal/transition"
	"github.com/ivlev/autoslideshow/internal/video"
)

var palette = []color.RGBA{
	{200, 40, 40, 255},
	{40, 200, 40, 255},
	{40, 40, 200, 255},
	{220, 220, 60, 255},
}

// writeImages creates n gradient PNGs with varying sizes so cover-fit,
// crops and transitions all have something to do.
func writeImages(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		w, h := 80+20*i, 60+10*i
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		c := palette[i%len(palette)]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetRGBA(x, y, color.RGBA{c.R, uint8(int(c.G) * x / w), uint8(int(c.B) * y / h), 255})
			}
		}
		writeFile(t, filepath.Join(dir, fmt.Sprintf("img_%02d.png", i)), img)
	}
	return dir
}

func writeFile(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T, mods ...config.Override) config.RenderConfig {
	t.Helper()
	base := config.Defaults()
	base.Width = 64
	base.FrameRate = 10
	base.Duration = 6
	base.TransitionDuration = 0.5
	base.KenBurns = true
	cfg, err := config.Resolve(base, nil, mods...)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

type fixture struct {
	images string
	out    string
	state  string
	cfg    config.RenderConfig
}

func newFixture(t *testing.T, images string, cfg config.RenderConfig) fixture {
	dir := t.TempDir()
	cfg.InputPath = images
	cfg.OutputPath = filepath.Join(dir, "out.raw")
	return fixture{images: images, out: cfg.OutputPath, state: filepath.Join(dir, "state.yaml"), cfg: cfg}
}

func (f fixture) project(t *testing.T, workers int) *VideoProject {
	t.Helper()
	src, err := source.NewImageSource(f.images)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { src.Close() })
	return &VideoProject{
		Config:  f.cfg,
		Runtime: config.Runtime{Workers: workers, CheckpointInterval: 7},
		Source:  src,
		Sink:    video.NewRawSink(f.out, f.cfg.Width, f.cfg.Height),
		Store:   checkpoint.NewFileStore(f.state),
		Logger:  zerolog.Nop(),
	}
}

func (f fixture) output(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(f.out)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func frameBytes(cfg config.RenderConfig) int { return cfg.Width * cfg.Height * 4 }

func TestRunRendersEveryFrame(t *testing.T) {
	f := newFixture(t, writeImages(t, 4), testConfig(t))
	report, err := f.project(t, 3).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Frames != 60 || report.Rendered != 60 || report.ResumedFrom != 0 {
		t.Errorf("report frames=%d rendered=%d resumed=%d, want 60/60/0", report.Frames, report.Rendered, report.ResumedFrom)
	}
	if len(report.Transitions) != 3 {
		t.Errorf("transitions = %v, want 3", report.Transitions)
	}
	if got, want := len(f.output(t)), 60*frameBytes(f.cfg); got != want {
		t.Errorf("output is %d bytes, want %d", got, want)
	}
	if _, err := os.Stat(f.state); !os.IsNotExist(err) {
		t.Errorf("checkpoint left behind after success: %v", err)
	}
	if report.RunID == "" {
		t.Error("missing run id")
	}
}

func TestOutputIndependentOfWorkers(t *testing.T) {
	images := writeImages(t, 4)
	cfg := testConfig(t)

	var outputs [][]byte
	for _, workers := range []int{1, 2, 6} {
		f := newFixture(t, images, cfg)
		if _, err := f.project(t, workers).Run(context.Background()); err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		outputs = append(outputs, f.output(t))
	}
	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Errorf("output %d differs from single-worker render", i)
		}
	}
}

func TestFocusModeRenders(t *testing.T) {
	images := writeImages(t, 3)
	cfg := testConfig(t, func(c *config.RenderConfig) { c.KenBurnsFocus = true })

	var outputs [][]byte
	for _, workers := range []int{1, 4} {
		f := newFixture(t, images, cfg)
		report, err := f.project(t, workers).Run(context.Background())
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if report.Rendered != report.Frames {
			t.Errorf("rendered %d of %d", report.Rendered, report.Frames)
		}
		outputs = append(outputs, f.output(t))
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("focus mode output depends on worker count")
	}
}

func TestScenarioWritten(t *testing.T) {
	f := newFixture(t, writeImages(t, 3), testConfig(t))
	p := f.project(t, 2)
	p.ScenarioPath = filepath.Join(t.TempDir(), "plan.yaml")
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	sc, err := director.ReadScenario(p.ScenarioPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.Slides) != 3 || sc.Frames != 60 || sc.Fingerprint != f.cfg.Fingerprint() {
		t.Errorf("scenario = %+v", sc)
	}
}

func TestResumeIsByteIdentical(t *testing.T) {
	images := writeImages(t, 4)
	cfg := testConfig(t)

	ref := newFixture(t, images, cfg)
	if _, err := ref.project(t, 2).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := ref.output(t)

	f := newFixture(t, images, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := f.project(t, 3)
	p.OnProgress = func(pr Progress) {
		if pr.Released == 23 {
			cancel()
		}
	}
	report, err := p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("interrupted Run error = %v, want context.Canceled", err)
	}

	rec, err := checkpoint.NewFileStore(f.state).Load(context.Background())
	if err != nil || rec == nil {
		t.Fatalf("checkpoint after interrupt: %v, %v", rec, err)
	}
	if rec.LastFrame < 22 || rec.LastFrame >= 59 {
		t.Errorf("checkpoint last frame %d, want in [22, 59)", rec.LastFrame)
	}
	if report.Rendered != rec.LastFrame+1 {
		t.Errorf("report rendered %d, checkpoint says %d", report.Rendered, rec.LastFrame+1)
	}

	report, err = f.project(t, 3).Run(context.Background())
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if report.ResumedFrom != rec.LastFrame+1 {
		t.Errorf("resumed from %d, want %d", report.ResumedFrom, rec.LastFrame+1)
	}
	if !bytes.Equal(f.output(t), want) {
		t.Error("resumed output differs from uninterrupted output")
	}
}

func TestTitleOnlyDuringTitleDuration(t *testing.T) {
	dir := t.TempDir()
	gray := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for i := range gray.Pix {
		gray.Pix[i] = 120
		if i%4 == 3 {
			gray.Pix[i] = 255
		}
	}
	writeFile(t, filepath.Join(dir, "only.png"), gray)

	cfg := testConfig(t, func(c *config.RenderConfig) {
		c.Duration = 10
		c.FrameRate = 5
		c.KenBurns = false
		c.Text.TitleEnabled = true
		c.Text.TitleText = "Hello"
		c.Text.TitleSize = 12
		c.Text.TitleDuration = 3
	})
	f := newFixture(t, dir, cfg)
	report, err := f.project(t, 2).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Frames != 50 || len(report.Transitions) != 0 {
		t.Fatalf("frames=%d transitions=%v, want 50 and none", report.Frames, report.Transitions)
	}

	out := f.output(t)
	n := frameBytes(cfg)
	last := out[(report.Frames-1)*n:]
	for k := 0; k < report.Frames; k++ {
		plain := bytes.Equal(out[k*n:(k+1)*n], last)
		tm := float64(k) / 5
		if tm < 3 && plain {
			t.Errorf("frame %d (t=%.1f) has no title", k, tm)
		}
		if tm >= 3 && !plain {
			t.Errorf("frame %d (t=%.1f) still shows the title", k, tm)
		}
	}
}

type fakeDecoder struct {
	track *audio.Track
	err   error
}

func (d fakeDecoder) Decode(context.Context, string) (*audio.Track, error) { return d.track, d.err }

func TestAudioFailureIsAWarning(t *testing.T) {
	cfg := testConfig(t, func(c *config.RenderConfig) {
		c.Audio.Enabled = true
		c.Audio.File = "missing.mp3"
	})
	f := newFixture(t, writeImages(t, 2), cfg)
	p := f.project(t, 2)
	p.Decoder = fakeDecoder{err: errors.New("no such file")}

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Audio {
		t.Error("report claims audio")
	}
	if !hasWarning(report, "without audio") {
		t.Errorf("warnings = %q", report.Warnings)
	}
	if _, err := os.Stat(f.out + ".pcm"); !os.IsNotExist(err) {
		t.Error("soundtrack written for failed audio")
	}
}

func TestSoundtrackCoversVideo(t *testing.T) {
	cfg := testConfig(t, func(c *config.RenderConfig) {
		c.Audio.Enabled = true
		c.Audio.File = "song.mp3"
		c.Audio.Loop = true
	})
	short := &audio.Track{Samples: make([]float32, audio.SampleRate), Rate: audio.SampleRate}
	for i := range short.Samples {
		short.Samples[i] = float32(0.5 * math.Sin(float64(i)/10))
	}
	f := newFixture(t, writeImages(t, 3), cfg)
	p := f.project(t, 2)
	p.Decoder = fakeDecoder{track: short}

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.Audio {
		t.Error("audio not reported")
	}
	pcm, err := os.ReadFile(f.out + ".pcm")
	if err != nil {
		t.Fatal(err)
	}
	if want := 2 * int(math.Round(report.Duration*audio.SampleRate)); len(pcm) != want {
		t.Errorf("pcm is %d bytes, want %d", len(pcm), want)
	}
}

// clickTrack is silence with short tone bursts starting at the given times.
func clickTrack(duration float64, at ...float64) *audio.Track {
	n := int(duration * audio.SampleRate)
	samples := make([]float32, n)
	for _, c := range at {
		start := int(c * audio.SampleRate)
		for i := start; i < min(start+800, n); i++ {
			samples[i] = float32(0.9 * math.Sin(float64(i)*0.3))
		}
	}
	return &audio.Track{Samples: samples, Rate: audio.SampleRate}
}

func TestBeatSyncMovesCuts(t *testing.T) {
	cfg := testConfig(t, func(c *config.RenderConfig) {
		c.Duration = 8
		c.Audio.Enabled = true
		c.Audio.File = "song.mp3"
		c.Audio.SyncToBeats = true
	})
	// Holds of 1.625s put the cuts at 1.875, 3.875 and 5.875.
	f := newFixture(t, writeImages(t, 4), cfg)
	p := f.project(t, 2)
	p.Decoder = fakeDecoder{track: clickTrack(8, 1.78, 3.97, 7.0)}
	p.ScenarioPath = filepath.Join(t.TempDir(), "plan.yaml")

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Beats != 3 {
		t.Errorf("detected %d beats, want 3", report.Beats)
	}
	if report.Frames != 80 {
		t.Errorf("beat snap changed the frame count to %d", report.Frames)
	}
	if !hasWarning(report, "cut 2") {
		t.Errorf("missing beat-snap miss warning, warnings = %q", report.Warnings)
	}
	if hasWarning(report, "cut 0") || hasWarning(report, "cut 1") {
		t.Errorf("snapped cuts reported as misses: %q", report.Warnings)
	}

	sc, err := director.ReadScenario(p.ScenarioPath)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		beat, orig float64
		snapped    bool
	}{
		{1.78, 1.875, true},
		{3.97, 3.875, true},
		{0, 5.875, false},
	}
	for i, tt := range tests {
		next := sc.Slides[i].Next
		if next == nil {
			t.Fatalf("slide %d has no transition", i)
		}
		if math.Abs(next.Duration-0.5) > 1e-3 {
			t.Errorf("transition %d lasts %v, want 0.5", i, next.Duration)
		}
		cut := next.Start + next.Duration/2
		switch {
		case tt.snapped && (math.Abs(cut-tt.beat) > 0.06 || math.Abs(cut-tt.orig) < 0.03):
			t.Errorf("cut %d at %v, want near beat %v", i, cut, tt.beat)
		case !tt.snapped && math.Abs(cut-tt.orig) > 1e-3:
			t.Errorf("cut %d moved to %v without a beat, want %v", i, cut, tt.orig)
		}
	}
	if got, want := len(f.output(t)), 80*frameBytes(f.cfg); got != want {
		t.Errorf("output is %d bytes, want %d", got, want)
	}
}

func TestMismatchedCheckpointRestarts(t *testing.T) {
	images := writeImages(t, 3)
	cfg := testConfig(t)
	f := newFixture(t, images, cfg)

	stale := checkpoint.Record{Fingerprint: "something else", LastFrame: 30, RunID: "old"}
	if err := checkpoint.NewFileStore(f.state).Save(context.Background(), stale); err != nil {
		t.Fatal(err)
	}
	report, err := f.project(t, 2).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ResumedFrom != 0 || report.Rendered != report.Frames {
		t.Errorf("resumed=%d rendered=%d of %d, want a full render", report.ResumedFrom, report.Rendered, report.Frames)
	}
	if !hasWarning(report, "another configuration") {
		t.Errorf("warnings = %q", report.Warnings)
	}
}

// failingSink fails the write of one frame.
type failingSink struct {
	*video.RawSink
	failAt int
}

func (s *failingSink) WriteFrame(ctx context.Context, index int, img *image.RGBA) error {
	if index == s.failAt {
		return errors.New("disk full")
	}
	return s.RawSink.WriteFrame(ctx, index, img)
}

func TestRuntimeSelectsCheckpointStore(t *testing.T) {
	f := newFixture(t, writeImages(t, 3), testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := f.project(t, 2)
	p.Store = nil
	p.Runtime.CheckpointStore = "sqlite"
	p.Runtime.CheckpointPath = filepath.Join(t.TempDir(), "state.db")
	p.OnProgress = func(pr Progress) {
		if pr.Released == 10 {
			cancel()
		}
	}
	if _, err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}

	store, err := checkpoint.OpenSQLite(p.Runtime.CheckpointPath, f.out)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	rec, err := store.Load(context.Background())
	if err != nil || rec == nil {
		t.Fatalf("sqlite checkpoint: %v, %v", rec, err)
	}
	if rec.LastFrame < 9 || rec.Fingerprint != f.cfg.Fingerprint() {
		t.Errorf("unexpected record %+v", rec)
	}
	if _, err := os.Stat(f.state); !os.IsNotExist(err) {
		t.Error("file store used despite sqlite runtime option")
	}
}

func TestEncodeErrorKeepsCheckpoint(t *testing.T) {
	images := writeImages(t, 4)
	cfg := testConfig(t)

	ref := newFixture(t, images, cfg)
	if _, err := ref.project(t, 2).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	f := newFixture(t, images, cfg)
	p := f.project(t, 3)
	p.Sink = &failingSink{RawSink: video.NewRawSink(f.out, cfg.Width, cfg.Height), failAt: 25}
	_, err := p.Run(context.Background())
	var encErr *errs.EncodeError
	if !errors.As(err, &encErr) || encErr.Frame != 25 {
		t.Fatalf("Run error = %v, want EncodeError at frame 25", err)
	}
	if !errs.IsFatal(err) {
		t.Error("encode error not fatal")
	}

	// Commits happen every 7 frames, so frame 20 is the last durable one.
	rec, err := checkpoint.NewFileStore(f.state).Load(context.Background())
	if err != nil || rec == nil || rec.LastFrame != 20 {
		t.Fatalf("checkpoint = %+v, %v; want last frame 20", rec, err)
	}

	report, err := f.project(t, 3).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.ResumedFrom != 21 {
		t.Errorf("resumed from %d, want 21", report.ResumedFrom)
	}
	if !bytes.Equal(f.output(t), ref.output(t)) {
		t.Error("output after encode failure and resume differs")
	}
}

func TestInvalidConfigIsRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.FrameRate = 0
	f := newFixture(t, writeImages(t, 2), cfg)
	_, err := f.project(t, 1).Run(context.Background())
	var cfgErr *errs.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
	if _, err := os.Stat(f.out); !os.IsNotExist(err) {
		t.Error("output created for invalid config")
	}
}

func TestDescribeAndSafeFallback(t *testing.T) {
	cfg := testConfig(t, func(c *config.RenderConfig) {
		c.TransitionType = "wipe_left"
		c.Text.CaptionsEnabled = true
		c.Text.CaptionsSize = 10
	})
	src, err := source.NewImageSource(writeImages(t, 3))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	assets, err := source.LoadAssets(src)
	if err != nil {
		t.Fatal(err)
	}
	tl, err := timeline.Build(len(assets), cfg)
	if err != nil {
		t.Fatal(err)
	}
	paths := make([]motion.Path, len(assets))
	for i := range paths {
		from, to := tl.Visible(i)
		paths[i] = motion.Generate(i, cfg.Size(), 0.8, from, to)
	}
	fx, err := effects.New(cfg, []string{"one", "two", "three"})
	if err != nil {
		t.Fatal(err)
	}
	pl := &plan{
		timeline: tl,
		paths:    paths,
		library:  source.NewLibrary(src, assets, cfg.Width, cfg.Height, 3),
		effects:  fx,
		pool:     system.NewFramePool(),
		size:     cfg.Size(),
	}

	// Hold is 5/3s, so t=1.9 lies in the first transition.
	d := pl.describe(19)
	if !d.IsTransition() || d.A != 0 || d.B != 1 || d.Kind != transition.WipeLeft {
		t.Fatalf("describe(19) = %+v, want wipe from 0 to 1", d)
	}
	if d.Overlay.Caption != effects.NoCaption {
		t.Errorf("caption %d during transition", d.Overlay.Caption)
	}
	if hold := pl.describe(5); hold.IsTransition() || hold.Overlay.Caption != 0 {
		t.Errorf("describe(5) = %+v, want hold on image 0 with its caption", hold)
	}

	safe := pl.safe(d)
	full := motion.Rect{W: float64(cfg.Width), H: float64(cfg.Height)}
	if safe.Kind != transition.Fade || safe.RectA != full || safe.RectB != full {
		t.Errorf("safe = %+v", safe)
	}
	if safe.Index != d.Index || safe.Progress != d.Progress {
		t.Error("safe changed the frame position")
	}
	for _, desc := range []Descriptor{d, safe} {
		img, err := pl.compose(desc)
		if err != nil {
			t.Fatalf("compose %+v: %v", desc, err)
		}
		if img.Bounds().Size() != cfg.Size() {
			t.Errorf("frame size %v", img.Bounds().Size())
		}
		pl.pool.Put(img)
	}

	bad := d
	bad.RectA = motion.Rect{X: -10, Y: 0, W: 20, H: 20}
	var renderErr *errs.RenderError
	if _, err := pl.compose(bad); !errors.As(err, &renderErr) || renderErr.Frame != 19 {
		t.Errorf("compose out-of-bounds crop: %v, want RenderError for frame 19", err)
	}
}

func hasWarning(r *Report, substr string) bool {
	for _, w := range r.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
