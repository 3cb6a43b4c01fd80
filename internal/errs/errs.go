// Package errs holds the error taxonomy of the render core. Every error wraps
// its cause, so callers classify with errors.As and still see the chain.
package errs

import (
	"errors"
	"fmt"
)

// ConfigError reports an inconsistent or out-of-range resolved setting.
// Fatal: raised before any frame work starts.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config builds a ConfigError from a format string.
func Config(field, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// AssetError reports a missing, corrupt or unsupported image. Fatal for the render.
type AssetError struct {
	Path string
	Err  error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %s: %v", e.Path, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// AudioError reports an unsupported or corrupt audio track. The render goes on
// without audio.
type AudioError struct {
	Path string
	Err  error
}

func (e *AudioError) Error() string {
	return fmt.Sprintf("audio %s: %v", e.Path, e.Err)
}

func (e *AudioError) Unwrap() error { return e.Err }

// RenderError reports an invalid frame computation. The engine retries once
// with a safe fallback before treating it as fatal.
type RenderError struct {
	Frame int
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render frame %d: %v", e.Frame, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// CheckpointMismatchError reports a stored checkpoint made for another config.
// Non-fatal: the render restarts from frame 0.
type CheckpointMismatchError struct {
	Stored  string
	Current string
}

func (e *CheckpointMismatchError) Error() string {
	return fmt.Sprintf("checkpoint fingerprint %s does not match config %s", short(e.Stored), short(e.Current))
}

// EncodeError is propagated from the encoder sink. Fatal, but the checkpoint
// up to the last released frame is kept.
type EncodeError struct {
	Frame int
	Err   error
}

func (e *EncodeError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("encode: %v", e.Err)
	}
	return fmt.Sprintf("encode frame %d: %v", e.Frame, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort a render.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var audioErr *AudioError
	var mismatch *CheckpointMismatchError
	if errors.As(err, &audioErr) || errors.As(err, &mismatch) {
		return false
	}
	return true
}

func short(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
