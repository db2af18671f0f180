package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/citewatch-agent/internal/config"
	"github.com/citewatch-agent/internal/models"
	"github.com/citewatch-agent/pkg/logger"
	"github.com/citewatch-agent/pkg/ratelimit"
)

const geminiBaseConfidence = 0.55

// GeminiClient wraps the Google Generative AI SDK
type GeminiClient struct {
	client      *genai.Client
	model       *genai.GenerativeModel
	modelName   string
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewGeminiClient creates a new Gemini engine client
func NewGeminiClient(ctx context.Context, cfg config.ProviderConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is not set", ErrConfiguration)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(float32(cfg.Temperature))
	model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(answerPrompt)},
	}
	// Tracked queries are ordinary product questions; only block clear-cut
	// harmful content so answers aren't suppressed spuriously.
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockOnlyHigh},
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		modelName:   cfg.Model,
		rateLimiter: limiter,
		log:         log.WithEngine(models.EngineGemini),
	}, nil
}

func (c *GeminiClient) Name() string            { return models.EngineGemini }
func (c *GeminiClient) BaseConfidence() float64 { return geminiBaseConfidence }
func (c *GeminiClient) EmptyResponseOK() bool   { return false }

// Complete sends the prompt to Gemini and returns the answer text
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterGemini); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	c.log.Debug().
		Str("model", c.modelName).
		Msg("Sending request to Gemini")

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.log.Error().Err(err).Msg("Gemini API error")
		return "", fmt.Errorf("%w: gemini: %v", ErrProvider, err)
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}

	return sb.String(), nil
}

// Close releases the underlying genai client
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
