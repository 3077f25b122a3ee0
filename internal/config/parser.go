package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type yamlConfig struct {
	Grammar   *yamlGrammar   `yaml:"grammar"`
	OpenAI    *yamlProvider  `yaml:"openai"`
	Anthropic *yamlProvider  `yaml:"anthropic"`
	Speech    *yamlSpeech    `yaml:"speech"`
	Audio     *yamlAudio     `yaml:"audio"`
	Clipboard *yamlClipboard `yaml:"clipboard"`
	Indicator *yamlIndicator `yaml:"indicator"`

	ClipboardCmd *string `yaml:"clipboard_cmd"`
}

type yamlGrammar struct {
	Provider    *string  `yaml:"provider"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

type yamlProvider struct {
	Model   *string `yaml:"model"`
	BaseURL *string `yaml:"base_url"`
}

type yamlSpeech struct {
	Model       *string `yaml:"model"`
	BaseURL     *string `yaml:"base_url"`
	SampleRate  *int    `yaml:"sample_rate"`
	PreviewText *string `yaml:"preview_text"`
}

type yamlAudio struct {
	Sink *string `yaml:"sink"`
}

type yamlClipboard struct {
	Enable *bool `yaml:"enable"`
}

type yamlIndicator struct {
	Enable            *bool   `yaml:"enable"`
	Backend           *string `yaml:"backend"`
	DesktopAppName    *string `yaml:"desktop_app_name"`
	SoundEnable       *bool   `yaml:"sound_enable"`
	SoundCompleteFile *string `yaml:"sound_complete_file"`
	SoundErrorFile    *string `yaml:"sound_error_file"`
	ErrorTimeoutMS    *int    `yaml:"error_timeout_ms"`
}

// Parse overlays YAML content onto base and validates the result.
// Unknown keys are rejected.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}

	decoder := yaml.NewDecoder(strings.NewReader(content))
	decoder.KnownFields(true)

	var payload yamlConfig
	if err := decoder.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return Parse("", base)
		}
		return Config{}, nil, err
	}
	if err := ensureSingleDocument(decoder); err != nil {
		return Config{}, nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(content), &root); err != nil {
		return Config{}, nil, err
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg, &root)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload yamlConfig) applyTo(cfg *Config, root *yaml.Node) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Grammar != nil {
		if payload.Grammar.Provider != nil {
			cfg.Grammar.Provider = strings.ToLower(strings.TrimSpace(*payload.Grammar.Provider))
		}
		if payload.Grammar.Temperature != nil {
			cfg.Grammar.Temperature = *payload.Grammar.Temperature
		}
		if payload.Grammar.MaxTokens != nil {
			cfg.Grammar.MaxTokens = *payload.Grammar.MaxTokens
		}
	}

	payload.OpenAI.applyTo(&cfg.OpenAI)
	payload.Anthropic.applyTo(&cfg.Anthropic)

	if payload.Speech != nil {
		if payload.Speech.Model != nil {
			cfg.Speech.Model = strings.TrimSpace(*payload.Speech.Model)
		}
		if payload.Speech.BaseURL != nil {
			cfg.Speech.BaseURL = strings.TrimSpace(*payload.Speech.BaseURL)
		}
		if payload.Speech.SampleRate != nil {
			cfg.Speech.SampleRate = *payload.Speech.SampleRate
		}
		if payload.Speech.PreviewText != nil {
			cfg.Speech.PreviewText = strings.TrimSpace(*payload.Speech.PreviewText)
		}
	}

	if payload.Audio != nil && payload.Audio.Sink != nil {
		cfg.Audio.Sink = strings.TrimSpace(*payload.Audio.Sink)
	}

	if payload.Clipboard != nil && payload.Clipboard.Enable != nil {
		cfg.Clipboard.Enable = *payload.Clipboard.Enable
	}

	if payload.ClipboardCmd != nil {
		cmd, err := ParseCommand(*payload.ClipboardCmd)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid clipboard_cmd: %w", keyLine(root, "clipboard_cmd"), err)
		}
		cfg.ClipboardCmd = cmd
		if !cfg.Clipboard.Enable {
			warnings = append(warnings, Warning{
				Line:    keyLine(root, "clipboard_cmd"),
				Message: "clipboard_cmd is ignored while clipboard.enable=false",
			})
		}
	}

	if payload.Indicator != nil {
		if payload.Indicator.Enable != nil {
			cfg.Indicator.Enable = *payload.Indicator.Enable
		}
		if payload.Indicator.Backend != nil {
			cfg.Indicator.Backend = strings.TrimSpace(*payload.Indicator.Backend)
		}
		if payload.Indicator.DesktopAppName != nil {
			cfg.Indicator.DesktopAppName = strings.TrimSpace(*payload.Indicator.DesktopAppName)
		}
		if payload.Indicator.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *payload.Indicator.SoundEnable
		}
		if payload.Indicator.SoundCompleteFile != nil {
			cfg.Indicator.SoundCompleteFile = strings.TrimSpace(*payload.Indicator.SoundCompleteFile)
		}
		if payload.Indicator.SoundErrorFile != nil {
			cfg.Indicator.SoundErrorFile = strings.TrimSpace(*payload.Indicator.SoundErrorFile)
		}
		if payload.Indicator.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *payload.Indicator.ErrorTimeoutMS
		}
	}

	return warnings, nil
}

func (p *yamlProvider) applyTo(cfg *ProviderConfig) {
	if p == nil {
		return
	}
	if p.Model != nil {
		cfg.Model = strings.TrimSpace(*p.Model)
	}
	if p.BaseURL != nil {
		cfg.BaseURL = strings.TrimSpace(*p.BaseURL)
	}
}

func ensureSingleDocument(decoder *yaml.Decoder) error {
	var extra yaml.Node
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("line %d: multiple YAML documents are not allowed", extra.Line)
	}
	return err
}

// keyLine returns the 1-based line of a dotted key path, or 0 when absent.
func keyLine(root *yaml.Node, path ...string) int {
	node := root
	if node != nil && node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	line := 0
	for _, key := range path {
		if node == nil || node.Kind != yaml.MappingNode {
			return 0
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				line = node.Content[i].Line
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return 0
		}
		node = next
	}
	return line
}
