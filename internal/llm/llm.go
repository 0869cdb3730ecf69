// Package llm wraps a chat model with the single-shot completion call used
// to answer questions: one system message, one user message, fixed sampling.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/tbrag-go/internal/budget"
	"github.com/54b3r/tbrag-go/internal/logging"
)

const (
	// DefaultTemperature is the sampling temperature for answers.
	DefaultTemperature float32 = 0.7

	// DefaultMaxTokens caps the length of a generated answer.
	DefaultMaxTokens = 1000
)

// ErrEmptyResponse is returned when the model produced no message.
var ErrEmptyResponse = errors.New("llm: model returned no message")

// Config controls how completions are requested.
type Config struct {
	// Temperature is the sampling temperature. Zero means DefaultTemperature.
	Temperature float32
	// MaxTokens caps the generated length. Zero means DefaultMaxTokens.
	MaxTokens int
	// DisableSampling omits temperature and max-token options for models
	// that reject them.
	DisableSampling bool
}

// Client performs single completions against a chat model.
// It is safe for concurrent use when the underlying model is.
type Client struct {
	// model is the chat backend.
	model model.BaseChatModel
	// opts are applied to every Generate call.
	opts []model.Option
}

// New wraps m. A nil cfg uses the defaults.
func New(m model.BaseChatModel, cfg *Config) (*Client, error) {
	if m == nil {
		return nil, fmt.Errorf("llm: chat model must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	var opts []model.Option
	if !cfg.DisableSampling {
		temp := cfg.Temperature
		if temp == 0 {
			temp = DefaultTemperature
		}
		maxTokens := cfg.MaxTokens
		if maxTokens == 0 {
			maxTokens = DefaultMaxTokens
		}
		opts = append(opts, model.WithTemperature(temp), model.WithMaxTokens(maxTokens))
	}

	return &Client{model: m, opts: opts}, nil
}

// Generate sends system and user as a two-message conversation and returns
// the whitespace-trimmed content of the reply.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}

	logging.FromContext(ctx).Debug("llm: generating",
		slog.Int("prompt_tokens_est", budget.EstimateMessages(msgs)),
	)

	resp, err := c.model.Generate(ctx, msgs, c.opts...)
	if err != nil {
		return "", fmt.Errorf("llm: error generating response: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(resp.Content), nil
}
