package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/citewatch-agent/internal/config"
	"github.com/citewatch-agent/internal/models"
	"github.com/citewatch-agent/pkg/logger"
	"github.com/citewatch-agent/pkg/ratelimit"
)

const (
	perplexityBaseURL        = "https://api.perplexity.ai"
	perplexityBaseConfidence = 0.6
	perplexityRecencyFilter  = "month"
)

// PerplexityClient talks to the Perplexity chat completions API. The API is
// OpenAI-shaped but carries extra search options, so it gets its own HTTP
// client rather than reusing the OpenAI SDK.
type PerplexityClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewPerplexityClient creates a new Perplexity engine client
func NewPerplexityClient(cfg config.ProviderConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) (*PerplexityClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: perplexity api key is not set", ErrConfiguration)
	}

	return &PerplexityClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:     perplexityBaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		rateLimiter: limiter,
		log:         log.WithEngine(models.EnginePerplexity),
	}, nil
}

func (c *PerplexityClient) Name() string            { return models.EnginePerplexity }
func (c *PerplexityClient) BaseConfidence() float64 { return perplexityBaseConfidence }

// EmptyResponseOK is true for Perplexity: the API may legitimately return an
// empty completion, and the caller decides what to do with it.
func (c *PerplexityClient) EmptyResponseOK() bool { return true }

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityRequest struct {
	Model               string              `json:"model"`
	Messages            []perplexityMessage `json:"messages"`
	Temperature         float64             `json:"temperature"`
	MaxTokens           int                 `json:"max_tokens"`
	SearchRecencyFilter string              `json:"search_recency_filter,omitempty"`
	ReturnCitations     bool                `json:"return_citations"`
}

type perplexityResponse struct {
	Choices []struct {
		Message perplexityMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt to the chat completions endpoint and returns the
// answer text
func (c *PerplexityClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterPerplexity); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	body := perplexityRequest{
		Model: c.model,
		Messages: []perplexityMessage{
			{Role: "system", Content: answerPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:         c.temperature,
		MaxTokens:           c.maxTokens,
		SearchRecencyFilter: perplexityRecencyFilter,
		ReturnCitations:     true,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().
		Str("model", c.model).
		Msg("Making Perplexity API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: perplexity: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(raw)).
			Msg("Perplexity API error")
		return "", fmt.Errorf("%w: perplexity: %s - %s", ErrProvider, resp.Status, string(raw))
	}

	var parsed perplexityResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: perplexity: failed to decode response: %v", ErrProvider, err)
	}

	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
