// Package anthropic implements grammar correction on Anthropic models through
// the any-llm-go unified client.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	anyllmanthropic "github.com/mozilla-ai/any-llm-go/providers/anthropic"

	"github.com/rbright/voiceassist/internal/provider"
)

const (
	defaultModel       = "claude-3-5-haiku-latest"
	defaultTemperature = 0.3
	defaultMaxTokens   = 1024
)

// Option is a functional option for Corrector.
type Option func(*Corrector)

// WithModel overrides the Claude model.
func WithModel(model string) Option {
	return func(c *Corrector) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(c *Corrector) {
		c.baseURL = url
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Corrector) {
		c.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *Corrector) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

type completeFunc func(context.Context, anyllmlib.CompletionParams) (string, bool, error)

// Corrector implements provider.GrammarCorrector.
type Corrector struct {
	model       string
	baseURL     string
	temperature float64
	maxTokens   int

	complete completeFunc
}

// New constructs a Corrector backed by the any-llm-go anthropic provider.
func New(apiKey string, opts ...Option) (*Corrector, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w", provider.ErrMissingCredential)
	}

	c := &Corrector{
		model:       defaultModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}

	libOpts := []anyllmlib.Option{anyllmlib.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		libOpts = append(libOpts, anyllmlib.WithBaseURL(c.baseURL))
	}
	backend, err := anyllmanthropic.New(libOpts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic: create backend: %w", err)
	}

	c.complete = func(ctx context.Context, params anyllmlib.CompletionParams) (string, bool, error) {
		resp, err := backend.Completion(ctx, params)
		if err != nil {
			return "", false, err
		}
		if len(resp.Choices) == 0 {
			return "", false, nil
		}
		return resp.Choices[0].Message.ContentString(), true, nil
	}
	return c, nil
}

// Model returns the configured model.
func (c *Corrector) Model() string {
	return c.model
}

// Correct implements provider.GrammarCorrector.
func (c *Corrector) Correct(ctx context.Context, text string) (string, error) {
	reply, ok, err := c.complete(ctx, c.buildParams(text))
	if err != nil {
		return "", classify(err)
	}
	if !ok {
		return text, nil
	}
	return provider.CleanCorrection(reply, text), nil
}

func (c *Corrector) buildParams(text string) anyllmlib.CompletionParams {
	temperature := c.temperature
	maxTokens := c.maxTokens
	return anyllmlib.CompletionParams{
		Model: c.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: provider.GrammarSystemPrompt},
			{Role: "user", Content: provider.GrammarUserPrompt(text)},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
}

// classify maps backend errors onto provider error kinds. The unified client
// does not expose typed HTTP errors, so the status is read from the message.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "403", "unauthorized", "authentication", "permission", "invalid x-api-key", "api key"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("anthropic: completion: %w: %w", provider.ErrAuth, err)
		}
	}
	return fmt.Errorf("anthropic: completion: %w: %w", provider.ErrTransport, err)
}
