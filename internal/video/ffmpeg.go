package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ivlev/autoslideshow/internal/audio"
	"github.com/ivlev/autoslideshow/internal/config"
)

// FFmpegSink pipes raw RGBA frames into ffmpeg. Every Commit closes the
// running encoder and turns its output into a part file named after the
// frame range it holds; Finish concatenates the parts and muxes the audio.
// Parts survive interruption, which is what makes resume possible.
type FFmpegSink struct {
	Output  string
	Width   int
	Height  int
	FPS     int
	Encoder config.EncoderConfig
	Binary  string

	logger zerolog.Logger
	dir    string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	first  int // first frame of the running part
	next   int
	done   bool
}

func NewFFmpegSink(cfg config.RenderConfig, logger zerolog.Logger) *FFmpegSink {
	return &FFmpegSink{
		Output:  cfg.OutputPath,
		Width:   cfg.Width,
		Height:  cfg.Height,
		FPS:     cfg.FrameRate,
		Encoder: cfg.Encoder,
		Binary:  "ffmpeg",
		logger:  logger.With().Str("component", "ffmpeg").Logger(),
		dir:     cfg.OutputPath + ".parts",
	}
}

type part struct {
	path        string
	first, last int
}

func (s *FFmpegSink) parts() ([]part, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var parts []part
	for _, e := range entries {
		var p part
		if _, err := fmt.Sscanf(e.Name(), "part_%08d_%08d.mp4", &p.first, &p.last); err != nil {
			continue
		}
		p.path = filepath.Join(s.dir, e.Name())
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].first < parts[j].first })
	return parts, nil
}

// Open keeps the contiguous run of parts starting at frame 0 that ends before
// resumeFrom and removes everything else.
func (s *FFmpegSink) Open(_ context.Context, resumeFrom int) (int, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return 0, err
	}
	parts, err := s.parts()
	if err != nil {
		return 0, err
	}
	from, kept := 0, 0
	for _, p := range parts {
		if p.first == from && p.last < resumeFrom {
			from = p.last + 1
			kept++
			continue
		}
		if err := os.Remove(p.path); err != nil {
			return 0, err
		}
	}
	tmps, _ := filepath.Glob(filepath.Join(s.dir, "*.tmp"))
	for _, t := range tmps {
		os.Remove(t)
	}
	s.first, s.next = from, from
	s.logger.Debug().Int("resume_from", from).Int("kept_parts", kept).Msg("sink opened")
	return from, nil
}

func (s *FFmpegSink) buildFFmpegArgs(path string) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-framerate", fmt.Sprintf("%d", s.FPS),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", s.Encoder.Codec,
	}

	switch s.Encoder.Codec {
	case "h264_videotoolbox":
		args = append(args, "-b:v", fmt.Sprintf("%dk", s.Encoder.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", s.Encoder.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", s.Encoder.Quality), "-preset", "medium")
	}

	return append(args, "-f", "mp4", path)
}

func (s *FFmpegSink) tmpPath() string {
	return filepath.Join(s.dir, "current.mp4.tmp")
}

func (s *FFmpegSink) start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.Binary, s.buildFFmpegArgs(s.tmpPath())...)
	// Ctrl-C must reach only this process: the running part is sealed by
	// Commit after the pipeline stops.
	detach(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	s.stderr = &bytes.Buffer{}
	cmd.Stderr = s.stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}
	s.cmd, s.stdin, s.first = cmd, stdin, s.next
	return nil
}

func (s *FFmpegSink) WriteFrame(ctx context.Context, index int, img *image.RGBA) error {
	if index != s.next {
		return fmt.Errorf("frame %d out of order, want %d", index, s.next)
	}
	if s.cmd == nil {
		// The encoder outlives cancellation of a single render step; Close
		// kills it explicitly.
		if err := s.start(context.WithoutCancel(ctx)); err != nil {
			return err
		}
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		return fmt.Errorf("write frame %d: %w: %s", index, err, s.tail())
	}
	s.next++
	return nil
}

// Commit seals the running part. With nothing written it does nothing.
func (s *FFmpegSink) Commit(_ context.Context) error {
	if s.cmd == nil {
		return nil
	}
	s.stdin.Close()
	err := s.cmd.Wait()
	s.cmd, s.stdin = nil, nil
	if err != nil {
		os.Remove(s.tmpPath())
		s.next = s.first
		return fmt.Errorf("ffmpeg: %w: %s", err, s.tail())
	}
	name := filepath.Join(s.dir, fmt.Sprintf("part_%08d_%08d.mp4", s.first, s.next-1))
	if err := os.Rename(s.tmpPath(), name); err != nil {
		return err
	}
	s.logger.Debug().Int("first", s.first).Int("last", s.next-1).Msg("part committed")
	return nil
}

func (s *FFmpegSink) tail() string {
	if s.stderr == nil {
		return ""
	}
	out := strings.TrimSpace(s.stderr.String())
	if len(out) > 500 {
		out = out[len(out)-500:]
	}
	return out
}

// Finish concatenates the parts and muxes the soundtrack.
func (s *FFmpegSink) Finish(ctx context.Context, st *audio.Soundtrack) error {
	if err := s.Commit(ctx); err != nil {
		return err
	}
	parts, err := s.parts()
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return fmt.Errorf("no frames were encoded")
	}

	listPath := filepath.Join(s.dir, "inputs.txt")
	var list strings.Builder
	for _, p := range parts {
		abs, _ := filepath.Abs(p.path)
		fmt.Fprintf(&list, "file '%s'\n", abs)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0644); err != nil {
		return err
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", listPath}
	if st != nil {
		pcmPath := filepath.Join(s.dir, "audio.pcm")
		if err := os.WriteFile(pcmPath, st.PCM(), 0644); err != nil {
			return err
		}
		args = append(args,
			"-f", "s16le", "-ar", fmt.Sprintf("%d", st.Track.Rate), "-ac", "1", "-i", pcmPath,
			"-map", "0:v", "-map", "1:a", "-c:v", "copy", "-c:a", "aac", "-b:a", "192k", "-shortest")
	} else {
		args = append(args, "-c", "copy")
	}
	args = append(args, s.Output)

	s.logger.Info().Int("parts", len(parts)).Bool("audio", st != nil).Msg("concatenating")
	cmd := exec.CommandContext(ctx, s.Binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg concat: %w: %s", err, strings.TrimSpace(string(out)))
	}
	s.done = true
	return os.RemoveAll(s.dir)
}

// Close kills an unfinished encoder. Committed parts stay for a later resume.
func (s *FFmpegSink) Close() error {
	if s.done || s.cmd == nil {
		return nil
	}
	s.stdin.Close()
	s.cmd.Process.Kill()
	s.cmd.Wait()
	s.cmd = nil
	return os.Remove(s.tmpPath())
}
