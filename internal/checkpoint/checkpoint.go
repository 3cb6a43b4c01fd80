// Package checkpoint persists render progress keyed by the config
// fingerprint so an interrupted render can resume.
package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/autoslideshow/internal/errs"
)

// NoFrame is the LastFrame of a render that has not encoded anything.
const NoFrame = -1

// Record is one persisted checkpoint.
type Record struct {
	Fingerprint string    `yaml:"fingerprint"`
	LastFrame   int       `yaml:"last_frame"`
	UpdatedAt   time.Time `yaml:"updated_at"`
	RunID       string    `yaml:"run_id"`
}

// Store persists a single checkpoint. Load returns nil, nil when there is none.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context) error
	Close() error
}

// Manager owns the checkpoint of one render. Advance is serialized behind the
// caller's frame release order; the mutex only guards against a concurrent
// cancel path.
type Manager struct {
	store       Store
	fingerprint string
	runID       string
	logger      zerolog.Logger
	now         func() time.Time

	mu   sync.Mutex
	last int
}

func NewManager(store Store, fingerprint, runID string, logger zerolog.Logger) *Manager {
	return &Manager{
		store:       store,
		fingerprint: fingerprint,
		runID:       runID,
		logger:      logger.With().Str("component", "checkpoint").Logger(),
		now:         time.Now,
		last:        NoFrame,
	}
}

// Begin consults the stored checkpoint once and returns the first frame to
// render. A checkpoint for another fingerprint is discarded and reported as
// *errs.CheckpointMismatchError alongside resumeFrom 0.
func (m *Manager) Begin(ctx context.Context) (resumeFrom int, err error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if rec == nil {
		return 0, nil
	}
	if rec.Fingerprint != m.fingerprint {
		if err := m.store.Delete(ctx); err != nil {
			return 0, fmt.Errorf("discard checkpoint: %w", err)
		}
		return 0, &errs.CheckpointMismatchError{Stored: rec.Fingerprint, Current: m.fingerprint}
	}

	m.mu.Lock()
	m.last = rec.LastFrame
	m.mu.Unlock()
	m.logger.Info().
		Int("last_frame", rec.LastFrame).
		Str("previous_run", rec.RunID).
		Time("updated_at", rec.UpdatedAt).
		Msg("resuming from checkpoint")
	return rec.LastFrame + 1, nil
}

// Advance records that every frame up to lastFrame is durably encoded.
// Moving backwards is a no-op.
func (m *Manager) Advance(ctx context.Context, lastFrame int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lastFrame <= m.last {
		return nil
	}
	rec := Record{
		Fingerprint: m.fingerprint,
		LastFrame:   lastFrame,
		UpdatedAt:   m.now().UTC(),
		RunID:       m.runID,
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save checkpoint at frame %d: %w", lastFrame, err)
	}
	m.last = lastFrame
	m.logger.Debug().Int("last_frame", lastFrame).Msg("checkpoint saved")
	return nil
}

// Last is the most recent saved frame index, or NoFrame.
func (m *Manager) Last() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Complete removes the checkpoint after a successful render.
func (m *Manager) Complete(ctx context.Context) error {
	if err := m.store.Delete(ctx); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// DefaultPath returns where the checkpoint of output lives for a store kind.
func DefaultPath(kind, output string) string {
	if kind == "sqlite" {
		return output + ".state.db"
	}
	return output + ".checkpoint.yaml"
}

// OpenStore opens a "file" or "sqlite" store. An empty path picks DefaultPath.
func OpenStore(kind, path, output string) (Store, error) {
	if path == "" {
		path = DefaultPath(kind, output)
	}
	switch kind {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		return OpenSQLite(path, output)
	default:
		return nil, errs.Config("checkpoint_store", "unknown store %q", kind)
	}
}
