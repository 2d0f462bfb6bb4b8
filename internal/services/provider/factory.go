package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/eventscout/eventscout/internal/common"
	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// DetectProvider determines the provider type from a name or model string.
// Accepts "gemini", "claude", provider-prefixed models ("claude/...") and
// bare model names ("gemini-2.0-flash"). Empty input falls back to the
// configured default.
func DetectProvider(cfg *common.Config, name string) common.ProviderType {
	if name == "" {
		return cfg.Provider.Default
	}

	name = strings.ToLower(name)

	if name == "claude" || strings.HasPrefix(name, "claude/") ||
		strings.HasPrefix(name, "anthropic/") || strings.HasPrefix(name, "claude-") {
		return common.ProviderClaude
	}
	if name == "gemini" || strings.HasPrefix(name, "gemini/") ||
		strings.HasPrefix(name, "google/") || strings.HasPrefix(name, "gemini-") {
		return common.ProviderGemini
	}

	return cfg.Provider.Default
}

// New creates the configured search provider.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (interfaces.SearchProvider, error) {
	providerType := DetectProvider(cfg, string(cfg.Provider.Default))

	logger.Info().Str("provider", string(providerType)).Msg("Initializing search provider")

	switch providerType {
	case common.ProviderClaude:
		return NewClaudeProvider(&cfg.Claude, logger)
	case common.ProviderGemini:
		return NewGeminiProvider(ctx, &cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", providerType)
	}
}
