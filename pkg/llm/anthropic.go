package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/retry"
)

// anthropicMaxTokens bounds generated program size. Programs are small
// JSON documents; this is far above anything legitimate.
const anthropicMaxTokens = 4096

// AnthropicClient generates code through the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// AnthropicConfig holds configuration for creating an Anthropic client.
type AnthropicConfig struct {
	Model  string // e.g. "claude-sonnet-4-20250514"
	APIKey string
}

// NewAnthropicClient creates a client for the Anthropic API.
func NewAnthropicClient(cfg *AnthropicConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("llm"),
	}, nil
}

func (c *AnthropicClient) GenerateCode(ctx context.Context, systemMessage, prompt string) (string, error) {
	c.logger.Debug("generation request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := retry.DoWithResult(ctx, nil, func() (anthropic.MessagesResponse, error) {
		return c.client.CreateMessages(ctx, anthropic.MessagesRequest{
			Model:  anthropic.Model(c.model),
			System: systemMessage,
			Messages: []anthropic.Message{
				anthropic.NewUserTextMessage(prompt),
			},
			MaxTokens: anthropicMaxTokens,
		})
	})
	if err != nil {
		c.logger.Error("generation request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("anthropic completion: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("anthropic completion returned no content")
	}

	c.logger.Debug("generation response",
		zap.Duration("elapsed", time.Since(start)))
	return resp.Content[0].GetText(), nil
}

func (c *AnthropicClient) Model() string {
	return c.model
}
