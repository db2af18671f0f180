package engine

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/citewatch-agent/internal/config"
	"github.com/citewatch-agent/internal/models"
	"github.com/citewatch-agent/pkg/logger"
	"github.com/citewatch-agent/pkg/ratelimit"
)

const chatGPTBaseConfidence = 0.5

// ChatGPTClient wraps the OpenAI chat completion API
type ChatGPTClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewChatGPTClient creates a new OpenAI-backed engine client
func NewChatGPTClient(cfg config.ProviderConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) (*ChatGPTClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is not set", ErrConfiguration)
	}

	return &ChatGPTClient{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		rateLimiter: limiter,
		log:         log.WithEngine(models.EngineChatGPT),
	}, nil
}

func (c *ChatGPTClient) Name() string            { return models.EngineChatGPT }
func (c *ChatGPTClient) BaseConfidence() float64 { return chatGPTBaseConfidence }
func (c *ChatGPTClient) EmptyResponseOK() bool   { return false }

// Complete sends the prompt to the chat completion endpoint and returns the
// answer text
func (c *ChatGPTClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterOpenAI); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	c.log.Debug().
		Str("model", c.model).
		Int("max_tokens", c.maxTokens).
		Msg("Sending request to OpenAI")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.log.Error().Err(err).Msg("OpenAI API error")
		return "", fmt.Errorf("%w: openai: %v", ErrProvider, err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	c.log.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Received OpenAI response")

	return resp.Choices[0].Message.Content, nil
}
