// Package assistant coordinates grammar correction, speech playback, and the
// observable state both actions share.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voiceassist/internal/ipc"
	"github.com/rbright/voiceassist/internal/provider"
	"github.com/rbright/voiceassist/internal/settings"
	"github.com/rbright/voiceassist/internal/voice"
)

// DefaultPreviewText is spoken when voice parameters change.
const DefaultPreviewText = "This is a preview of the voice settings."

// Validation errors. They are returned to the caller and never recorded.
var (
	ErrEmptyInput      = errors.New("input text is empty")
	ErrNoVoiceSelected = errors.New("no voice selected")
	ErrUnknownVoice    = errors.New("unknown voice")
)

// Activity states reported by State.
const (
	StateIdle               = "idle"
	StateCorrecting         = "correcting"
	StateSpeaking           = "speaking"
	StateCorrectingSpeaking = "correcting+speaking"
)

// Store is the persistence subset the controller needs.
type Store interface {
	Get(key string, out any) (bool, error)
	Set(key string, value any) error
}

// Indicator is the controller-facing subset of indicator behavior.
type Indicator interface {
	ShowCorrecting(context.Context)
	ShowSpeaking(context.Context)
	ShowError(context.Context, string)
	CueComplete(context.Context)
	CueError(context.Context)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowCorrecting(context.Context)    {}
func (noopIndicator) ShowSpeaking(context.Context)      {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueComplete(context.Context)       {}
func (noopIndicator) CueError(context.Context)          {}
func (noopIndicator) Hide(context.Context)              {}

type noopPlayer struct{}

func (noopPlayer) Play(context.Context, []byte) error { return nil }
func (noopPlayer) Stop()                              {}

// Dependencies wires capabilities into a Controller. A nil Grammar or Speech
// means the matching credential is missing.
type Dependencies struct {
	Logger      *slog.Logger
	Grammar     provider.GrammarCorrector
	Speech      provider.SpeechGenerator
	Player      provider.AudioPlayer
	Committer   Committer
	Indicator   Indicator
	Store       Store
	PreviewText string
}

// Status is a point-in-time copy of the observable controller state.
type Status struct {
	State              string
	IsProcessing       bool
	IsGeneratingSpeech bool
	OutputText         string
	LastError          error
	SelectedVoice      *voice.Voice
	Voices             []voice.Voice
}

// Controller owns the assistant state. Each action is one independent attempt.
type Controller struct {
	logger      *slog.Logger
	grammar     provider.GrammarCorrector
	speech      provider.SpeechGenerator
	player      provider.AudioPlayer
	commit      Committer
	indicator   Indicator
	store       Store
	previewText string

	mu            sync.RWMutex
	corrections   int
	speeches      int
	correctionSeq uint64
	speechSeq     uint64
	outputText    string
	lastError     error
	selectedVoice *voice.Voice
	voices        []voice.Voice
}

// NewController constructs a controller with safe fallbacks for optional parts.
func NewController(deps Dependencies) *Controller {
	player := deps.Player
	if player == nil {
		player = noopPlayer{}
	}
	committer := deps.Committer
	if committer == nil {
		committer = CommitFunc(func(context.Context, string) error { return nil })
	}
	indicator := deps.Indicator
	if indicator == nil {
		indicator = noopIndicator{}
	}
	previewText := strings.TrimSpace(deps.PreviewText)
	if previewText == "" {
		previewText = DefaultPreviewText
	}

	return &Controller{
		logger:      deps.Logger,
		grammar:     deps.Grammar,
		speech:      deps.Speech,
		player:      player,
		commit:      committer,
		indicator:   indicator,
		store:       deps.Store,
		previewText: previewText,
	}
}

// CorrectGrammar sends input to the grammar capability once. Capability
// failures land in LastError; only validation errors are returned.
func (c *Controller) CorrectGrammar(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return ErrEmptyInput
	}
	if c.grammar == nil {
		return fmt.Errorf("grammar: %w", provider.ErrMissingCredential)
	}

	c.mu.Lock()
	c.correctionSeq++
	seq := c.correctionSeq
	c.corrections++
	c.mu.Unlock()

	c.indicator.ShowCorrecting(ctx)
	started := time.Now()
	corrected, err := c.grammar.Correct(ctx, input)

	c.mu.Lock()
	c.corrections--
	if seq != c.correctionSeq {
		c.mu.Unlock()
		c.log(slog.LevelInfo, "stale correction discarded", "seq", seq)
		c.hideWhenIdle(0)
		return nil
	}
	if err != nil {
		c.recordLocked(err)
		c.mu.Unlock()
		c.fail(ctx, "correction", err, "Grammar correction failed")
		return nil
	}
	c.outputText = corrected
	c.lastError = nil
	c.mu.Unlock()

	c.log(slog.LevelInfo, "correction complete",
		"duration_ms", time.Since(started).Milliseconds(),
		"input_chars", len(input),
		"output_chars", len(corrected),
	)

	if err := c.commit.Commit(ctx, corrected); err != nil {
		c.log(slog.LevelWarn, "clipboard commit failed", "error", err.Error())
	}
	c.indicator.CueComplete(context.Background())
	c.hide()
	return nil
}

// Speak synthesizes text with v and plays it once fully generated. Capability
// failures land in LastError; only validation errors are returned.
func (c *Controller) Speak(ctx context.Context, text string, v *voice.Voice, s voice.Settings) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	if v == nil {
		return ErrNoVoiceSelected
	}
	if c.speech == nil {
		return fmt.Errorf("speech: %w", provider.ErrMissingCredential)
	}

	c.mu.Lock()
	c.speechSeq++
	seq := c.speechSeq
	c.speeches++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.speeches--
		c.mu.Unlock()
	}()

	c.indicator.ShowSpeaking(ctx)
	started := time.Now()

	audio, err := c.speech.Generate(ctx, text, v.ID, s.Clamped())
	if !c.currentSpeech(seq) {
		c.log(slog.LevelInfo, "superseded speech discarded", "seq", seq)
		c.hideWhenIdle(1)
		return nil
	}
	if err != nil {
		c.record(err)
		c.fail(ctx, "speech generation", err, "Speech generation failed")
		return nil
	}
	generated := time.Since(started)

	if err := c.player.Play(ctx, audio); err != nil {
		if errors.Is(err, context.Canceled) {
			c.hide()
			return nil
		}
		if c.currentSpeech(seq) {
			c.record(err)
			c.fail(ctx, "playback", err, "Playback failed")
			return nil
		}
		c.hideWhenIdle(1)
		return nil
	}

	c.mu.Lock()
	if seq == c.speechSeq {
		c.lastError = nil
	}
	c.mu.Unlock()

	c.log(slog.LevelInfo, "speech complete",
		"voice_id", v.ID,
		"generate_ms", generated.Milliseconds(),
		"total_ms", time.Since(started).Milliseconds(),
		"audio_bytes", len(audio),
	)
	c.hide()
	return nil
}

// SpeakInput speaks the corrected text when there is one, otherwise input.
func (c *Controller) SpeakInput(ctx context.Context, input string, s voice.Settings) error {
	c.mu.RLock()
	text := c.outputText
	selected := cloneVoice(c.selectedVoice)
	c.mu.RUnlock()

	if strings.TrimSpace(text) == "" {
		text = input
	}
	return c.Speak(ctx, text, selected, s)
}

// Preview speaks the preview text with the selected voice. It is skipped
// silently without a voice or speech capability.
func (c *Controller) Preview(ctx context.Context, s voice.Settings) {
	c.mu.RLock()
	selected := cloneVoice(c.selectedVoice)
	c.mu.RUnlock()

	if selected == nil || c.speech == nil {
		c.log(slog.LevelDebug, "preview skipped", "has_voice", selected != nil)
		return
	}
	if err := c.Speak(ctx, c.previewText, selected, s); err != nil {
		c.log(slog.LevelDebug, "preview rejected", "error", err.Error())
	}
}

// Stop halts playback and discards speech still being generated. It always
// succeeds and is safe to call repeatedly.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.speechSeq++
	c.mu.Unlock()
	c.player.Stop()
}

// LoadVoices fetches the voice list and restores the stored selection, falling
// back to the first voice.
func (c *Controller) LoadVoices(ctx context.Context) error {
	if c.speech == nil {
		return fmt.Errorf("speech: %w", provider.ErrMissingCredential)
	}

	voices, err := c.speech.ListVoices(ctx)
	if err != nil {
		c.record(err)
		c.fail(ctx, "voice listing", err, "Unable to load voices")
		return nil
	}

	storedID := c.storedVoiceID()
	var selected *voice.Voice
	for i := range voices {
		if storedID != "" && voices[i].ID == storedID {
			selected = cloneVoice(&voices[i])
			break
		}
	}
	persist := false
	if selected == nil && len(voices) > 0 {
		selected = cloneVoice(&voices[0])
		persist = true
	}

	c.mu.Lock()
	c.voices = append([]voice.Voice(nil), voices...)
	c.selectedVoice = selected
	c.lastError = nil
	c.mu.Unlock()

	if persist {
		if err := c.persistVoice(selected.ID); err != nil {
			c.log(slog.LevelWarn, "persist selected voice failed", "error", err.Error())
		}
	}
	c.log(slog.LevelInfo, "voices loaded", "count", len(voices), "restored", !persist && selected != nil)
	return nil
}

// SelectVoice selects a voice from the loaded list and persists the choice.
func (c *Controller) SelectVoice(id string) error {
	id = strings.TrimSpace(id)

	c.mu.Lock()
	var selected *voice.Voice
	for i := range c.voices {
		if c.voices[i].ID == id {
			selected = cloneVoice(&c.voices[i])
			break
		}
	}
	if selected == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownVoice, id)
	}
	c.selectedVoice = selected
	c.mu.Unlock()

	return c.persistVoice(id)
}

// DismissError clears LastError.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.lastError = nil
	c.mu.Unlock()
}

// State names the actions currently running.
func (c *Controller) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() string {
	switch {
	case c.corrections > 0 && c.speeches > 0:
		return StateCorrectingSpeaking
	case c.corrections > 0:
		return StateCorrecting
	case c.speeches > 0:
		return StateSpeaking
	default:
		return StateIdle
	}
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		State:              c.stateLocked(),
		IsProcessing:       c.corrections > 0,
		IsGeneratingSpeech: c.speeches > 0,
		OutputText:         c.outputText,
		LastError:          c.lastError,
		SelectedVoice:      cloneVoice(c.selectedVoice),
		Voices:             append([]voice.Voice(nil), c.voices...),
	}
}

// Handle serves IPC commands while an owner action runs.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		status := c.Snapshot()
		return ipc.Response{
			OK:         true,
			State:      status.State,
			Processing: status.IsProcessing,
			Speaking:   status.IsGeneratingSpeech,
			Message:    "status",
		}
	case ipc.CommandStop:
		c.Stop()
		return ipc.Response{OK: true, State: c.State(), Message: "stop requested"}
	default:
		return ipc.Response{OK: false, State: c.State(), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) currentSpeech(seq uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return seq == c.speechSeq
}

func (c *Controller) record(err error) {
	c.mu.Lock()
	c.recordLocked(err)
	c.mu.Unlock()
}

func (c *Controller) recordLocked(err error) {
	c.lastError = err
}

// fail reports a recorded capability error through logs and the indicator.
func (c *Controller) fail(ctx context.Context, stage string, err error, message string) {
	c.log(slog.LevelError, stage+" failed", "error", err.Error(), "kind", provider.Kind(err))
	c.indicator.ShowError(context.WithoutCancel(ctx), message)
	c.indicator.CueError(context.Background())
}

// hideWhenIdle dismisses the indicator unless another action still runs.
// ownSpeeches is the number of speeches the caller itself still counts.
func (c *Controller) hideWhenIdle(ownSpeeches int) {
	c.mu.RLock()
	idle := c.corrections == 0 && c.speeches == ownSpeeches
	c.mu.RUnlock()
	if idle {
		c.hide()
	}
}

func (c *Controller) hide() {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	c.indicator.Hide(cleanupCtx)
}

func (c *Controller) storedVoiceID() string {
	if c.store == nil {
		return ""
	}
	var id string
	ok, err := c.store.Get(settings.KeySelectedVoiceID, &id)
	if err != nil {
		c.log(slog.LevelWarn, "stored voice id unreadable", "error", err.Error())
		return ""
	}
	if !ok {
		return ""
	}
	return id
}

func (c *Controller) persistVoice(id string) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Set(settings.KeySelectedVoiceID, id); err != nil {
		return fmt.Errorf("persist selected voice: %w", err)
	}
	return nil
}

func (c *Controller) log(level slog.Level, msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, args...)
}

func cloneVoice(v *voice.Voice) *voice.Voice {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
