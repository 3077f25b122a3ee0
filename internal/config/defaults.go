package config

// Grammar provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Grammar: GrammarConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.3,
			MaxTokens:   1024,
		},
		OpenAI:    ProviderConfig{Model: "gpt-4o-mini"},
		Anthropic: ProviderConfig{Model: "claude-3-5-haiku-latest"},
		Speech: SpeechConfig{
			Model:       "eleven_flash_v2_5",
			SampleRate:  22050,
			PreviewText: "This is a preview of the voice settings.",
		},
		Audio:        AudioConfig{Sink: "default"},
		Clipboard:    ClipboardConfig{Enable: true},
		ClipboardCmd: mustParseCommand(clipboard),
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "voiceassist-indicator",
			SoundEnable:    true,
			ErrorTimeoutMS: 2400,
		},
	}
}
