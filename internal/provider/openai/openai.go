// Package openai implements grammar correction on the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/rbright/voiceassist/internal/provider"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.3
	defaultMaxTokens   = 1024
)

// Option is a functional option for Corrector.
type Option func(*Corrector)

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(c *Corrector) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the API base URL (OpenAI-compatible servers, tests).
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

// Corrector implements provider.GrammarCorrector.
type Corrector struct {
	client      oai.Client
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// New constructs a Corrector. The SDK's automatic retries are disabled: every
// correction is a single request.
func New(apiKey string, opts ...Option) (*Corrector, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", provider.ErrMissingCredential)
	}

	c := &Corrector{
		model:       defaultModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	c.client = oai.NewClient(reqOpts...)
	return c, nil
}

// Model returns the configured chat model.
func (c *Corrector) Model() string {
	return c.model
}

// Correct implements provider.GrammarCorrector.
func (c *Corrector) Correct(ctx context.Context, text string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(text))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return text, nil
	}
	return provider.CleanCorrection(resp.Choices[0].Message.Content, text), nil
}

func (c *Corrector) buildParams(text string) oai.ChatCompletionNewParams {
	return oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(provider.GrammarSystemPrompt),
			oai.UserMessage(provider.GrammarUserPrompt(text)),
		},
		Temperature:         param.NewOpt(c.temperature),
		MaxCompletionTokens: param.NewOpt(int64(c.maxTokens)),
	}
}

// classify maps SDK errors onto provider error kinds.
func classify(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai: chat completion: %w: %w", provider.KindForStatus(apiErr.StatusCode), err)
	}
	return fmt.Errorf("openai: chat completion: %w: %w", provider.ErrTransport, err)
}
