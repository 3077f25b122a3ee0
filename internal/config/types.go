// Package config resolves, parses, validates, and defaults voiceassist configuration.
package config

// Config is the fully materialized runtime configuration used by voiceassist.
type Config struct {
	Grammar      GrammarConfig
	OpenAI       ProviderConfig
	Anthropic    ProviderConfig
	Speech       SpeechConfig
	Audio        AudioConfig
	Clipboard    ClipboardConfig
	ClipboardCmd CommandConfig
	Indicator    IndicatorConfig
}

// GrammarConfig selects the grammar provider and its request parameters.
type GrammarConfig struct {
	Provider    string
	Temperature float64
	MaxTokens   int
}

// ProviderConfig is the per-vendor model and endpoint override.
type ProviderConfig struct {
	Model   string
	BaseURL string
}

// SpeechConfig controls ElevenLabs synthesis.
type SpeechConfig struct {
	Model       string
	BaseURL     string
	SampleRate  int
	PreviewText string
}

// AudioConfig controls output-sink selection.
type AudioConfig struct {
	Sink string
}

// ClipboardConfig controls whether corrected text is copied.
type ClipboardConfig struct {
	Enable bool
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable            bool
	Backend           string
	DesktopAppName    string
	SoundEnable       bool
	SoundCompleteFile string
	SoundErrorFile    string
	ErrorTimeoutMS    int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
