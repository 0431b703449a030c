// Package grading talks to the external generative grading service:
// it builds batched evaluation prompts, rate-limits the calls, and
// decodes the semi-structured replies.
package grading

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/light-quiz/quiz-service/internal/ratelimit"
	"github.com/light-quiz/quiz-service/internal/utils"
)

// Client sends prompts to an OpenAI-compatible grading model and
// returns the raw reply text. It is agnostic to quiz semantics.
type Client struct {
	api     *openai.Client
	model   string
	limiter *ratelimit.Limiter
	logger  utils.Logger
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

func NewClient(cfg ClientConfig, limiter *ratelimit.Limiter, logger utils.Logger) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiConfig),
		model:   cfg.Model,
		limiter: limiter,
		logger:  logger,
	}
}

// Evaluate acquires a rate-limit permit, sends the prompt, and returns
// the raw response text. The permit is released on every exit path; a
// failed call must not shrink capacity.
func (c *Client) Evaluate(ctx context.Context, prompt string) (string, error) {
	permit, err := c.limiter.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire grading permit: %w", err)
	}
	defer permit.Release()

	c.logger.Debug("Grading permit acquired, calling grading model", "model", c.model)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("grading model call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("grading model returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	c.logger.Debug("Grading model response received", "length", len(raw))

	return raw, nil
}
