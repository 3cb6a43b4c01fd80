package video

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"

	"github.com/ivlev/autoslideshow/internal/audio"
)

// RawSink writes frames as one uncompressed RGBA stream and the soundtrack
// as s16le PCM next to it. Resuming truncates the stream to the committed
// frames, so an interrupted and resumed render is byte-identical to an
// uninterrupted one.
type RawSink struct {
	Path          string
	Width, Height int

	f    *os.File
	w    *bufio.Writer
	next int
	done bool
}

func NewRawSink(path string, width, height int) *RawSink {
	return &RawSink{Path: path, Width: width, Height: height}
}

func (s *RawSink) frameSize() int64 { return int64(s.Width) * int64(s.Height) * 4 }

func (s *RawSink) Open(_ context.Context, resumeFrom int) (int, error) {
	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	have := int(fi.Size() / s.frameSize())
	from := min(max(resumeFrom, 0), have)
	offset := int64(from) * s.frameSize()
	if err := f.Truncate(offset); err != nil {
		f.Close()
		return 0, err
	}
	if _, err := f.Seek(offset, 0); err != nil {
		f.Close()
		return 0, err
	}
	s.f, s.w, s.next = f, bufio.NewWriterSize(f, 1<<20), from
	return from, nil
}

func (s *RawSink) WriteFrame(_ context.Context, index int, img *image.RGBA) error {
	if index != s.next {
		return fmt.Errorf("raw sink: frame %d out of order, want %d", index, s.next)
	}
	if b := img.Bounds(); b.Dx() != s.Width || b.Dy() != s.Height {
		return fmt.Errorf("raw sink: frame %d is %dx%d, want %dx%d", index, b.Dx(), b.Dy(), s.Width, s.Height)
	}
	if err := writeRawRGBA(s.w, img); err != nil {
		return err
	}
	s.next++
	return nil
}

func (s *RawSink) Commit(_ context.Context) error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.f.Sync()
}

func (s *RawSink) Finish(ctx context.Context, st *audio.Soundtrack) error {
	if err := s.Commit(ctx); err != nil {
		return err
	}
	if st != nil {
		if err := os.WriteFile(s.Path+".pcm", st.PCM(), 0644); err != nil {
			return err
		}
	}
	s.done = true
	return s.f.Close()
}

func (s *RawSink) Close() error {
	if s.done || s.f == nil {
		return nil
	}
	s.done = true
	return s.f.Close()
}
