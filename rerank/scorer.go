package rerank

import (
	"github.com/searchfuse/searchfuse/common/httpx"
	"github.com/searchfuse/searchfuse/config"
)

// NewScorerFromConfig selects the scorer backend. Returns nil when no backend
// is configured; the reranker degrades to a passthrough in that case.
func NewScorerFromConfig(cfg config.ScorerConfig, client *httpx.Client) PairwiseScorer {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil
		}
		return NewOpenAIScorer(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "http":
		if cfg.Endpoint == "" {
			return nil
		}
		return NewHTTPScorer(cfg.Endpoint, cfg.Model, client)
	}
	return nil
}
