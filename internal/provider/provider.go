// Package provider defines the capability interfaces the assistant depends on
// and the error kinds their implementations report.
package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/rbright/voiceassist/internal/voice"
)

// Error kinds. Implementations wrap one of these so callers can match with errors.Is.
var (
	ErrTransport    = errors.New("transport error")
	ErrAuth         = errors.New("authentication rejected")
	ErrInvalidVoice = errors.New("invalid voice")
	ErrPlayback     = errors.New("playback failed")

	// ErrMissingCredential is a validation error: no API key is configured.
	ErrMissingCredential = errors.New("missing API key")
)

// GrammarCorrector returns a corrected version of text.
type GrammarCorrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

// SpeechGenerator synthesizes speech and lists the voices it offers.
type SpeechGenerator interface {
	Generate(ctx context.Context, text string, voiceID string, settings voice.Settings) ([]byte, error)
	ListVoices(ctx context.Context) ([]voice.Voice, error)
}

// AudioPlayer plays fully generated audio. Stop must be safe to call at any time.
type AudioPlayer interface {
	Play(ctx context.Context, audio []byte) error
	Stop()
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) error {
	switch status {
	case 401, 403:
		return ErrAuth
	default:
		return ErrTransport
	}
}

// Kind names the error kind of err for logs and status output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrInvalidVoice):
		return "invalid_voice"
	case errors.Is(err, ErrPlayback):
		return "playback"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

// Grammar prompts shared by the LLM-backed correctors.
const (
	GrammarSystemPrompt = "You are a helpful assistant that corrects grammar and spelling. " +
		"Reply with the corrected text only, without commentary or formatting."
	grammarUserPrefix = "Please correct any grammar or spelling mistakes in the following text, " +
		"while maintaining its original meaning and tone. Here's the text:\n\n"
)

// GrammarUserPrompt wraps text in the correction instruction.
func GrammarUserPrompt(text string) string {
	return grammarUserPrefix + text
}

// CleanCorrection strips wrapping code fences and quotes that models sometimes
// add around a reply. An empty reply falls back to original.
func CleanCorrection(reply string, original string) string {
	out := strings.TrimSpace(reply)
	if strings.HasPrefix(out, "```") {
		out = strings.TrimPrefix(out, "```")
		if idx := strings.IndexByte(out, '\n'); idx >= 0 {
			out = out[idx+1:]
		}
		out = strings.TrimSuffix(strings.TrimSpace(out), "```")
		out = strings.TrimSpace(out)
	}
	if len(out) >= 2 && out[0] == '"' && out[len(out)-1] == '"' && !strings.HasPrefix(strings.TrimSpace(original), `"`) {
		out = strings.TrimSpace(out[1 : len(out)-1])
	}
	if out == "" {
		return original
	}
	return out
}
