package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbright/voiceassist/internal/assistant"
	"github.com/rbright/voiceassist/internal/audio"
	"github.com/rbright/voiceassist/internal/config"
	"github.com/rbright/voiceassist/internal/credentials"
	"github.com/rbright/voiceassist/internal/indicator"
	"github.com/rbright/voiceassist/internal/output"
	"github.com/rbright/voiceassist/internal/params"
	"github.com/rbright/voiceassist/internal/preset"
	"github.com/rbright/voiceassist/internal/provider"
	"github.com/rbright/voiceassist/internal/provider/anthropic"
	"github.com/rbright/voiceassist/internal/provider/elevenlabs"
	"github.com/rbright/voiceassist/internal/provider/openai"
	"github.com/rbright/voiceassist/internal/settings"
)

// environment is the per-process object graph every command works against.
type environment struct {
	loaded   config.Loaded
	logger   *slog.Logger
	settings *settings.Store
	keys     *credentials.Store

	grammarProvider string
	grammar         provider.GrammarCorrector
	speech          provider.SpeechGenerator

	catalog    *preset.Catalog
	params     *params.State
	controller *assistant.Controller
	waiters    []func()
}

// wait blocks until background previews and cues have finished.
func (e *environment) wait() {
	for _, w := range e.waiters {
		w()
	}
}

// buildEnvironment opens the stores and wires capabilities from config and credentials.
// Missing credentials leave the matching capability nil. Without withAudio no
// Pulse connection is made and playback is a no-op.
func (r Runner) buildEnvironment(ctx context.Context, loaded config.Loaded, logger *slog.Logger, withAudio bool) (*environment, error) {
	store, err := r.openSettings(logger)
	if err != nil {
		return nil, err
	}
	keys, err := r.openCredentials(logger)
	if err != nil {
		return nil, err
	}

	cfg := loaded.Config
	e := &environment{
		loaded:          loaded,
		logger:          logger,
		settings:        store,
		keys:            keys,
		grammarProvider: effectiveGrammarProvider(cfg, store, logger),
	}

	e.grammar = r.Grammar
	if e.grammar == nil {
		e.grammar = buildGrammar(cfg, e.grammarProvider, keys, logger)
	}
	e.speech = r.Speech
	if e.speech == nil {
		e.speech = buildSpeech(cfg, keys, logger)
	}

	var notifier assistant.Indicator = r.Indicator
	if notifier == nil {
		n := indicator.New(cfg.Indicator, logger)
		notifier = n
		e.waiters = append(e.waiters, n.Wait)
	}

	var player provider.AudioPlayer = r.Player
	if player == nil && withAudio {
		player = r.buildPlayer(ctx, cfg, logger)
	}

	e.controller = assistant.NewController(assistant.Dependencies{
		Logger:      logger,
		Grammar:     e.grammar,
		Speech:      e.speech,
		Player:      player,
		Committer:   output.NewClipboard(cfg, logger),
		Indicator:   notifier,
		Store:       store,
		PreviewText: cfg.Speech.PreviewText,
	})
	e.catalog = preset.NewCatalog(store, logger)
	e.params = params.Load(store, params.PreviewFunc(e.controller.Preview), logger)
	// Previews must finish before cues are awaited.
	e.waiters = append([]func(){e.params.Wait}, e.waiters...)

	return e, nil
}

func (r Runner) openSettings(logger *slog.Logger) (*settings.Store, error) {
	path, err := settings.ResolvePath()
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}
	store, warnings, err := settings.Open(path)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w)
		logger.Warn("settings warning", "message", w)
	}
	return store, nil
}

func (r Runner) openCredentials(logger *slog.Logger) (*credentials.Store, error) {
	path, err := credentials.ResolvePath()
	if err != nil {
		return nil, fmt.Errorf("resolve credentials path: %w", err)
	}
	store, warnings, err := credentials.Open(path)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w)
		logger.Warn("credentials warning", "message", w)
	}
	return store, nil
}

// effectiveGrammarProvider prefers the provider stored by `voiceassist provider NAME`.
func effectiveGrammarProvider(cfg config.Config, store *settings.Store, logger *slog.Logger) string {
	var stored string
	ok, err := store.Get(settings.KeyGrammarProvider, &stored)
	if err != nil {
		logger.Warn("stored grammar provider unreadable", "error", err.Error())
	}
	stored = strings.ToLower(strings.TrimSpace(stored))
	if ok && validGrammarProvider(stored) {
		return stored
	}
	return cfg.Grammar.Provider
}

func validGrammarProvider(name string) bool {
	return name == config.ProviderOpenAI || name == config.ProviderAnthropic
}

func buildGrammar(cfg config.Config, name string, keys *credentials.Store, logger *slog.Logger) provider.GrammarCorrector {
	switch name {
	case config.ProviderAnthropic:
		key, ok := keys.Get(credentials.NameAnthropic)
		if !ok {
			return nil
		}
		corrector, err := anthropic.New(key,
			anthropic.WithModel(cfg.Anthropic.Model),
			anthropic.WithBaseURL(cfg.Anthropic.BaseURL),
			anthropic.WithTemperature(cfg.Grammar.Temperature),
			anthropic.WithMaxTokens(cfg.Grammar.MaxTokens),
		)
		if err != nil {
			logger.Error("anthropic client setup failed", "error", err.Error())
			return nil
		}
		return corrector
	default:
		key, ok := keys.Get(credentials.NameOpenAI)
		if !ok {
			return nil
		}
		corrector, err := openai.New(key,
			openai.WithModel(cfg.OpenAI.Model),
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
			openai.WithTemperature(cfg.Grammar.Temperature),
			openai.WithMaxTokens(cfg.Grammar.MaxTokens),
		)
		if err != nil {
			logger.Error("openai client setup failed", "error", err.Error())
			return nil
		}
		return corrector
	}
}

func buildSpeech(cfg config.Config, keys *credentials.Store, logger *slog.Logger) provider.SpeechGenerator {
	key, ok := keys.Get(credentials.NameElevenLabs)
	if !ok {
		return nil
	}
	synth, err := elevenlabs.New(key,
		elevenlabs.WithModel(cfg.Speech.Model),
		elevenlabs.WithBaseURL(cfg.Speech.BaseURL),
		elevenlabs.WithSampleRate(cfg.Speech.SampleRate),
	)
	if err != nil {
		logger.Error("elevenlabs client setup failed", "error", err.Error())
		return nil
	}
	return synth
}

// buildPlayer resolves audio.sink once. A failed lookup keeps the configured
// name so playback reports the real error.
func (r Runner) buildPlayer(ctx context.Context, cfg config.Config, logger *slog.Logger) *audio.Player {
	sink := strings.TrimSpace(cfg.Audio.Sink)
	if sink != "" && sink != "default" {
		selection, err := audio.SelectDevice(ctx, sink)
		switch {
		case err != nil:
			logger.Warn("audio sink selection failed", "sink", sink, "error", err.Error())
		case selection.Warning != "":
			fmt.Fprintf(r.Stderr, "warning: %s\n", selection.Warning)
			logger.Warn("audio sink fallback", "warning", selection.Warning)
			sink = selection.Device.ID
		default:
			sink = selection.Device.ID
		}
	}
	return audio.NewPlayer(cfg.Speech.SampleRate, sink, logger)
}
