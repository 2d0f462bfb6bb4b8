package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/eventscout/eventscout/internal/common"
	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const claudeSystemPrompt = "You are an event listing assistant. " +
	"Answer only with verifiable event information in the exact format requested."

// ClaudeProvider performs event searches through the Anthropic Messages API.
type ClaudeProvider struct {
	config  *common.ClaudeConfig
	client  anthropic.Client
	limiter *rate.Limiter
	retry   *RetryConfig
	logger  arbor.ILogger
}

// Compile-time assertion: ClaudeProvider implements SearchProvider
var _ interfaces.SearchProvider = (*ClaudeProvider)(nil)

// NewClaudeProvider creates a new Claude-backed search provider
func NewClaudeProvider(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	interval := config.RateLimit
	if interval <= 0 {
		interval = time.Second
	}

	return &ClaudeProvider{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		retry:   NewDefaultRetryConfig(),
		logger:  logger,
	}, nil
}

// Name returns the provider identifier
func (p *ClaudeProvider) Name() string {
	return "claude"
}

// Search sends the prompt through the Messages API and returns the raw
// response text.
func (p *ClaudeProvider) Search(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	timeout := p.config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxTokens := p.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: claudeSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var resp *anthropic.Message
	var apiErr error

	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		resp, apiErr = p.client.Messages.New(searchCtx, params)
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
			Msg("Retrying Claude search after rate limit")

		select {
		case <-searchCtx.Done():
			return "", searchCtx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("claude search failed: %w", apiErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}

	return text.String(), nil
}
