// Package llm provides the generation-capability client used by every
// model-backed stage of the workflow.
//
// The client wraps langchaingo's OpenAI-compatible chat client, so it works
// against the OpenAI API as well as any OpenAI-compatible inference server.
// It is constructed once at process start and is safe for concurrent use.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyPrompt indicates an empty prompt.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrMalformedOutput indicates the model returned output that does not
	// match the requested schema.
	ErrMalformedOutput = errors.New("malformed model output")
)

// Generator is the generation capability consumed by the workflow stages.
// Complete returns free-form text; CompleteJSON constrains the model to JSON
// and decodes the result into out.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteJSON(ctx context.Context, prompt string, out interface{}) error
}

// Config holds configuration for the LLM client.
type Config struct {
	// BaseURL is the chat completion API base URL.
	BaseURL string

	// Model is the chat model name.
	Model string

	// APIKey authenticates against the provider. Optional for local
	// OpenAI-compatible servers.
	APIKey string

	// Temperature is the sampling temperature. The pipeline wants
	// deterministic behavior, so the default of 0 is usually right.
	Temperature float64

	// Timeout bounds each completion call. Zero disables the bound.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be in [0, 2]", ErrInvalidConfig)
	}
	return nil
}

// Client implements Generator against an OpenAI-compatible endpoint.
type Client struct {
	model  llms.Model
	config Config
}

// NewClient creates a new LLM client with the given configuration.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// langchaingo requires a token; local servers ignore it.
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	model, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &Client{model: model, config: config}, nil
}

// Complete runs a single-prompt completion and returns the generated text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	text, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(c.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// CompleteJSON runs a completion in JSON mode and decodes the output into out.
// Output that cannot be decoded is reported as ErrMalformedOutput; callers
// decide whether that halts their stage.
func (c *Client) CompleteJSON(ctx context.Context, prompt string, out interface{}) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	text, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(c.config.Temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return fmt.Errorf("generating structured completion: %w", err)
	}

	if err := json.Unmarshal([]byte(StripCodeFence(text)), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

// StripCodeFence removes a surrounding markdown code fence, which some models
// emit around JSON even in JSON mode.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
