// Package audio decodes the soundtrack, shapes its volume envelope and
// aligns transition cuts with detected beats.
package audio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/ivlev/autoslideshow/internal/errs"
)

// SampleRate of every decoded track. Mono.
const SampleRate = 22050

// Track is mono PCM normalized to [-1, 1].
type Track struct {
	Samples []float32
	Rate    int
}

func (t *Track) Duration() float64 {
	if t.Rate == 0 {
		return 0
	}
	return float64(len(t.Samples)) / float64(t.Rate)
}

// Decoder turns an audio file into a Track.
type Decoder interface {
	Decode(ctx context.Context, path string) (*Track, error)
}

// FFmpegDecoder runs ffmpeg and reads signed 16-bit little-endian PCM from
// its stdout.
type FFmpegDecoder struct {
	Binary string
	logger zerolog.Logger
}

func NewFFmpegDecoder(logger zerolog.Logger) *FFmpegDecoder {
	return &FFmpegDecoder{Binary: "ffmpeg", logger: logger.With().Str("component", "audio").Logger()}
}

func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*Track, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", "1",
		"-",
	}
	d.logger.Debug().Str("input", path).Strs("args", args).Msg("decoding audio")

	cmd := exec.CommandContext(ctx, d.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errs.AudioError{Path: path, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &errs.AudioError{Path: path, Err: fmt.Errorf("start ffmpeg: %w", err)}
	}
	track, readErr := ReadPCM(bufio.NewReaderSize(out, 1<<16), SampleRate)
	waitErr := cmd.Wait()
	if waitErr != nil {
		return nil, &errs.AudioError{Path: path, Err: fmt.Errorf("ffmpeg: %w: %s", waitErr, bytes.TrimSpace(stderr.Bytes()))}
	}
	if readErr != nil {
		return nil, &errs.AudioError{Path: path, Err: readErr}
	}
	if len(track.Samples) == 0 {
		return nil, &errs.AudioError{Path: path, Err: errors.New("no audio samples decoded")}
	}
	return track, nil
}

// ReadPCM reads s16le mono samples until EOF. A trailing odd byte is dropped.
func ReadPCM(r io.Reader, rate int) (*Track, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
	}
	return &Track{Samples: samples, Rate: rate}, nil
}

// Fit loops or truncates t to exactly duration seconds. Without loop a short
// track is padded with silence.
func Fit(t *Track, duration float64, loop bool) *Track {
	n := int(math.Round(duration * float64(t.Rate)))
	out := make([]float32, n)
	if len(t.Samples) == 0 {
		return &Track{Samples: out, Rate: t.Rate}
	}
	if !loop {
		copy(out, t.Samples)
		return &Track{Samples: out, Rate: t.Rate}
	}
	for i := 0; i < n; i += len(t.Samples) {
		copy(out[i:], t.Samples)
	}
	return &Track{Samples: out, Rate: t.Rate}
}

// EncodePCM converts t to s16le bytes after applying the envelope gain.
func EncodePCM(t *Track, env *Envelope) []byte {
	out := make([]byte, 2*len(t.Samples))
	for i, s := range t.Samples {
		g := 1.0
		if env != nil {
			g = env.GainAt(float64(i) / float64(t.Rate))
		}
		v := math.Round(float64(s) * g * 32767)
		v = min(max(v, -32768), 32767)
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}
