package audio

import (
	"context"
	"errors"

	"github.com/ivlev/autoslideshow/internal/config"
	"github.com/ivlev/autoslideshow/internal/errs"
)

// Soundtrack is the decoded, length-fitted track and its envelope. It is
// computed once before frame dispatch and read-only afterwards.
type Soundtrack struct {
	Path     string
	Track    *Track
	Envelope *Envelope
}

// Prepare decodes cfg.File and shapes it to the video duration. It returns
// nil and no error when audio is disabled. Every failure is an
// *errs.AudioError so the caller can go on without sound.
func Prepare(ctx context.Context, dec Decoder, cfg config.AudioConfig, duration float64, fps int) (*Soundtrack, error) {
	if !cfg.Enabled || cfg.File == "" {
		return nil, nil
	}
	raw, err := dec.Decode(ctx, cfg.File)
	if err != nil {
		var audioErr *errs.AudioError
		if errors.As(err, &audioErr) {
			return nil, err
		}
		return nil, &errs.AudioError{Path: cfg.File, Err: err}
	}

	st := &Soundtrack{
		Path:     cfg.File,
		Track:    Fit(raw, duration, cfg.Loop),
		Envelope: NewEnvelope(duration, fps, cfg.Volume, cfg.FadeIn, cfg.FadeOut),
	}
	if cfg.SyncToBeats {
		st.Envelope.Beats = DetectBeats(st.Track)
	}
	return st, nil
}

// PCM is the final s16le stream handed to the encoder.
func (s *Soundtrack) PCM() []byte {
	return EncodePCM(s.Track, s.Envelope)
}
