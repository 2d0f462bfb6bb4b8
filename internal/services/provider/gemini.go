package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/common"
	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiProvider performs web-grounded event searches through the Gemini
// API with the GoogleSearch tool enabled.
type GeminiProvider struct {
	config  *common.GeminiConfig
	client  *genai.Client
	limiter *rate.Limiter
	retry   *RetryConfig
	logger  arbor.ILogger
}

// Compile-time assertion: GeminiProvider implements SearchProvider
var _ interfaces.SearchProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini-backed search provider
func NewGeminiProvider(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	interval := config.RateLimit
	if interval <= 0 {
		interval = time.Second
	}

	return &GeminiProvider{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		retry:   NewDefaultRetryConfig(),
		logger:  logger,
	}, nil
}

// Name returns the provider identifier
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Search sends the prompt through Gemini with GoogleSearch grounding and
// returns the raw response text. Rate limit errors are retried with
// API-suggested backoff; everything else fails fast.
func (p *GeminiProvider) Search(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	timeout := p.config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	searchTool := &genai.Tool{GoogleSearch: &genai.GoogleSearch{}}
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{searchTool},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		resp, apiErr = p.client.Models.GenerateContent(searchCtx, p.config.Model, contents, config)
		if apiErr == nil {
			break
		}
		if !IsRateLimitError(apiErr) || attempt == p.retry.MaxRetries {
			break
		}

		backoff := p.retry.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		p.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini search after rate limit")

		select {
		case <-searchCtx.Done():
			return "", searchCtx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("gemini search failed: %w", apiErr)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty text in Gemini response")
	}

	return text.String(), nil
}
