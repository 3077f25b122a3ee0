package config

import (
	"fmt"
	"net/url"
	"strings"
)

// SupportedSampleRates lists the PCM output rates ElevenLabs can stream.
var SupportedSampleRates = []int{8000, 16000, 22050, 24000, 44100}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Grammar.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	case "":
		return nil, fmt.Errorf("grammar.provider must not be empty")
	default:
		return nil, fmt.Errorf("grammar.provider must be one of: %s, %s", ProviderOpenAI, ProviderAnthropic)
	}
	if cfg.Grammar.Temperature < 0 || cfg.Grammar.Temperature > 2 {
		return nil, fmt.Errorf("grammar.temperature must be within [0, 2]")
	}
	if cfg.Grammar.MaxTokens <= 0 {
		return nil, fmt.Errorf("grammar.max_tokens must be > 0")
	}

	if strings.TrimSpace(cfg.OpenAI.Model) == "" {
		return nil, fmt.Errorf("openai.model must not be empty")
	}
	if strings.TrimSpace(cfg.Anthropic.Model) == "" {
		return nil, fmt.Errorf("anthropic.model must not be empty")
	}
	if strings.TrimSpace(cfg.Speech.Model) == "" {
		return nil, fmt.Errorf("speech.model must not be empty")
	}
	for _, entry := range []struct{ key, raw string }{
		{key: "openai.base_url", raw: cfg.OpenAI.BaseURL},
		{key: "anthropic.base_url", raw: cfg.Anthropic.BaseURL},
		{key: "speech.base_url", raw: cfg.Speech.BaseURL},
	} {
		warning, err := validateBaseURL(entry.key, entry.raw)
		if err != nil {
			return nil, err
		}
		if warning != "" {
			warnings = append(warnings, Warning{Message: warning})
		}
	}

	if !supportedSampleRate(cfg.Speech.SampleRate) {
		return nil, fmt.Errorf("speech.sample_rate must be one of: %s", joinInts(SupportedSampleRates))
	}
	if strings.TrimSpace(cfg.Speech.PreviewText) == "" {
		return nil, fmt.Errorf("speech.preview_text must not be empty")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Clipboard.Enable && len(cfg.ClipboardCmd.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty when clipboard.enable=true")
	}

	return warnings, nil
}

// validateBaseURL accepts an empty override or an absolute http(s) URL.
// Plain http outside loopback yields a warning since API keys travel with it.
func validateBaseURL(key string, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%s must be an absolute URL", key)
	}
	switch u.Scheme {
	case "https":
		return "", nil
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return "", nil
		}
		return fmt.Sprintf("%s uses plain http; API keys are sent unencrypted", key), nil
	default:
		return "", fmt.Errorf("%s must use http or https", key)
	}
}

func supportedSampleRate(rate int) bool {
	for _, r := range SupportedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, ", ")
}
