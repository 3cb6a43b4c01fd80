package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ivlev/autoslideshow/internal/config"
	"github.com/ivlev/autoslideshow/internal/errs"
)

func TestEnvelopeBoundedAndMonotone(t *testing.T) {
	for _, tc := range []struct {
		duration, volume, in, out float64
	}{
		{10, 1, 2, 2},
		{10, 0.5, 3, 1},
		{3, 0.8, 2, 2}, // fades overlap and get scaled
		{5, 1.2, 0, 0},
	} {
		e := NewEnvelope(tc.duration, 25, tc.volume, tc.in, tc.out)
		if len(e.Times) != int(tc.duration*25)+1 {
			t.Errorf("%+v: %d samples", tc, len(e.Times))
		}
		if e.Times[len(e.Times)-1] != tc.duration {
			t.Errorf("%+v: last sample at %v", tc, e.Times[len(e.Times)-1])
		}
		prev := -1.0
		for i, g := range e.Gains {
			ts := e.Times[i]
			if g < 0 || g > tc.volume+1e-12 {
				t.Fatalf("%+v: gain %v at %v out of [0, volume]", tc, g, ts)
			}
			if ts <= e.FadeIn && g < prev {
				t.Errorf("%+v: gain falls during fade-in at %v", tc, ts)
			}
			if i > 0 && e.Times[i-1] >= tc.duration-e.FadeOut && g > prev {
				t.Errorf("%+v: gain rises during fade-out at %v", tc, ts)
			}
			prev = g
		}
		if e.FadeIn+e.FadeOut > tc.duration+1e-9 {
			t.Errorf("%+v: fades %v+%v exceed duration", tc, e.FadeIn, e.FadeOut)
		}
	}
}

func TestEnvelopeShape(t *testing.T) {
	e := NewEnvelope(10, 25, 0.5, 2, 2)
	for _, tc := range []struct{ t, want float64 }{
		{0, 0}, {1, 0.25}, {2, 0.5}, {5, 0.5}, {9, 0.25}, {10, 0},
	} {
		if got := e.GainAt(tc.t); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("GainAt(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}
}

func TestFitLoopsAndPads(t *testing.T) {
	src := &Track{Samples: []float32{0.1, 0.2, 0.3}, Rate: 10}
	looped := Fit(src, 0.8, true)
	want := []float32{0.1, 0.2, 0.3, 0.1, 0.2, 0.3, 0.1, 0.2}
	if len(looped.Samples) != len(want) {
		t.Fatalf("looped len %d", len(looped.Samples))
	}
	for i := range want {
		if looped.Samples[i] != want[i] {
			t.Errorf("looped[%d] = %v", i, looped.Samples[i])
		}
	}
	padded := Fit(src, 0.5, false)
	if len(padded.Samples) != 5 || padded.Samples[3] != 0 || padded.Samples[2] != 0.3 {
		t.Errorf("padded = %v", padded.Samples)
	}
	cut := Fit(src, 0.2, true)
	if len(cut.Samples) != 2 {
		t.Errorf("truncated = %v", cut.Samples)
	}
}

func TestReadAndEncodePCM(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []int16{0, 16384, -32768, 32767} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteByte(0x7f) // dangling half sample
	tr, err := ReadPCM(&buf, SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Samples) != 4 || tr.Samples[1] != 0.5 || tr.Samples[2] != -1 {
		t.Fatalf("samples = %v", tr.Samples)
	}
	out := EncodePCM(tr, nil)
	if got := int16(binary.LittleEndian.Uint16(out[2:])); got != 16384 {
		t.Errorf("re-encoded sample = %d", got)
	}
	half := &Envelope{Duration: 1, Volume: 0.5}
	out = EncodePCM(tr, half)
	if got := int16(binary.LittleEndian.Uint16(out[2:])); got != 8192 {
		t.Errorf("half-gain sample = %d", got)
	}
}

// clicks builds a track with short bursts at the given times.
func clicks(duration float64, at []float64) *Track {
	n := int(duration * SampleRate)
	s := make([]float32, n)
	for _, c := range at {
		start := int(c * SampleRate)
		for i := start; i < min(start+800, n); i++ {
			s[i] = float32(0.9 * math.Sin(float64(i)*0.3))
		}
	}
	return &Track{Samples: s, Rate: SampleRate}
}

func TestDetectBeats(t *testing.T) {
	want := []float64{1, 2, 3, 4}
	beats := DetectBeats(clicks(5, want))
	if len(beats) != len(want) {
		t.Fatalf("detected %v, want near %v", beats, want)
	}
	for i, b := range beats {
		if math.Abs(b-want[i]) > 0.06 {
			t.Errorf("beat %d at %v, want about %v", i, b, want[i])
		}
	}
	if got := DetectBeats(&Track{Samples: make([]float32, SampleRate), Rate: SampleRate}); len(got) != 0 {
		t.Errorf("silence produced beats %v", got)
	}
}

func TestSnapCuts(t *testing.T) {
	beats := []float64{1.0, 2.05, 3.5}
	snapped, misses := SnapCuts([]float64{0.9, 2.0, 3.0, 5}, beats, 0.15)
	want := []float64{1.0, 2.05, 3.0, 5}
	for i := range want {
		if snapped[i] != want[i] {
			t.Errorf("cut %d = %v, want %v", i, snapped[i], want[i])
		}
	}
	if len(misses) != 2 || misses[0] != 2 || misses[1] != 3 {
		t.Errorf("misses = %v", misses)
	}
	snapped, misses = SnapCuts([]float64{1}, nil, 0.15)
	if snapped[0] != 1 || len(misses) != 1 {
		t.Errorf("no beats: %v %v", snapped, misses)
	}
}

type fakeDecoder struct {
	track *Track
	err   error
}

func (f fakeDecoder) Decode(context.Context, string) (*Track, error) { return f.track, f.err }

func TestPrepare(t *testing.T) {
	cfg := config.Defaults().Audio
	if st, err := Prepare(context.Background(), fakeDecoder{}, cfg, 10, 25); st != nil || err != nil {
		t.Errorf("disabled audio: %v %v", st, err)
	}

	cfg.Enabled, cfg.File, cfg.SyncToBeats = true, "song.mp3", true
	st, err := Prepare(context.Background(), fakeDecoder{track: clicks(2, []float64{0.5, 1.5})}, cfg, 4, 25)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(st.Track.Duration()-4) > 1e-9 {
		t.Errorf("fitted duration %v", st.Track.Duration())
	}
	if len(st.Envelope.Beats) != 4 {
		t.Errorf("looped track should give 4 beats, got %v", st.Envelope.Beats)
	}
	if len(st.PCM()) != 2*4*SampleRate {
		t.Errorf("pcm length %d", len(st.PCM()))
	}

	_, err = Prepare(context.Background(), fakeDecoder{err: errors.New("bad header")}, cfg, 4, 25)
	var audioErr *errs.AudioError
	if !errors.As(err, &audioErr) || errs.IsFatal(err) {
		t.Errorf("expected non-fatal AudioError, got %v", err)
	}
}

func TestFFmpegDecoderMissingFile(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	d := NewFFmpegDecoder(zerolog.Nop())
	_, err := d.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	var audioErr *errs.AudioError
	if !errors.As(err, &audioErr) {
		t.Errorf("expected AudioError, got %v", err)
	}
}
