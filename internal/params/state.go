// Package params holds the active voice parameter bundle and keeps it in sync
// with the settings store.
package params

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/voiceassist/internal/preset"
	"github.com/rbright/voiceassist/internal/settings"
	"github.com/rbright/voiceassist/internal/voice"
)

// Store is the persistence subset the parameter state needs.
type Store interface {
	Get(key string, out any) (bool, error)
	Set(key string, value any) error
}

// Previewer plays a short sample with the given settings. Implementations record
// their own failures; State never inspects them.
type Previewer interface {
	Preview(context.Context, voice.Settings)
}

// PreviewFunc adapts a function to the Previewer interface.
type PreviewFunc func(context.Context, voice.Settings)

func (f PreviewFunc) Preview(ctx context.Context, s voice.Settings) {
	f(ctx, s)
}

// Snapshot is a point-in-time copy of the parameter state.
type Snapshot struct {
	Settings         voice.Settings
	SelectedPresetID string
}

// State is the process-wide active parameter bundle.
type State struct {
	store     Store
	previewer Previewer
	logger    *slog.Logger

	mu               sync.RWMutex
	settings         voice.Settings
	selectedPresetID string

	previews sync.WaitGroup
}

// Load builds the state from stored values, falling back to defaults for
// anything missing or unreadable.
func Load(store Store, previewer Previewer, logger *slog.Logger) *State {
	s := &State{
		store:     store,
		previewer: previewer,
		logger:    logger,
		settings:  voice.DefaultSettings(),
	}
	s.settings.Stability = s.loadLevel(settings.KeyVoiceStability)
	s.settings.SimilarityBoost = s.loadLevel(settings.KeyVoiceSimilarityBoost)
	return s
}

func (s *State) loadLevel(key string) float64 {
	if s.store == nil {
		return voice.DefaultLevel
	}
	var v float64
	ok, err := s.store.Get(key, &v)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("stored voice parameter unreadable; using default", "key", key, "error", err.Error())
		}
		return voice.DefaultLevel
	}
	if !ok {
		return voice.DefaultLevel
	}
	return voice.Clamp(v)
}

// Snapshot returns the current values.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Settings: s.settings, SelectedPresetID: s.selectedPresetID}
}

// Settings returns the current parameter bundle.
func (s *State) Settings() voice.Settings {
	return s.Snapshot().Settings
}

// ApplyPreset copies the preset's values, remembers its id, and persists.
func (s *State) ApplyPreset(p preset.Preset) error {
	s.mu.Lock()
	s.settings = p.Settings.Clamped()
	s.selectedPresetID = p.ID
	s.mu.Unlock()
	return s.Persist()
}

// SetStability clamps and stores v, detaches from any preset, persists, and
// starts a preview.
func (s *State) SetStability(ctx context.Context, v float64) error {
	return s.set(ctx, func(cur *voice.Settings) { cur.Stability = voice.Clamp(v) })
}

// SetSimilarityBoost clamps and stores v, detaches from any preset, persists,
// and starts a preview.
func (s *State) SetSimilarityBoost(ctx context.Context, v float64) error {
	return s.set(ctx, func(cur *voice.Settings) { cur.SimilarityBoost = voice.Clamp(v) })
}

func (s *State) set(ctx context.Context, mutate func(*voice.Settings)) error {
	s.mu.Lock()
	mutate(&s.settings)
	s.selectedPresetID = ""
	current := s.settings
	s.mu.Unlock()

	if err := s.Persist(); err != nil {
		return err
	}
	s.startPreview(ctx, current)
	return nil
}

// startPreview runs the previewer in the background. The preview outlives
// cancellation of ctx.
func (s *State) startPreview(ctx context.Context, current voice.Settings) {
	if s.previewer == nil {
		return
	}
	previewCtx := context.WithoutCancel(ctx)
	s.previews.Add(1)
	go func() {
		defer s.previews.Done()
		s.previewer.Preview(previewCtx, current)
	}()
}

// Wait blocks until all previews started so far have returned.
func (s *State) Wait() {
	s.previews.Wait()
}

// Persist writes the current values under their fixed keys. Writing the same
// values twice leaves the store unchanged.
func (s *State) Persist() error {
	if s.store == nil {
		return nil
	}
	current := s.Settings()
	if err := s.store.Set(settings.KeyVoiceStability, current.Stability); err != nil {
		return fmt.Errorf("persist stability: %w", err)
	}
	if err := s.store.Set(settings.KeyVoiceSimilarityBoost, current.SimilarityBoost); err != nil {
		return fmt.Errorf("persist similarity boost: %w", err)
	}
	return nil
}
