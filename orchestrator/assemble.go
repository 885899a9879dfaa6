package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/searchfuse/searchfuse/cache"
	"github.com/searchfuse/searchfuse/common/httpx"
	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/crag"
	"github.com/searchfuse/searchfuse/embedding"
	"github.com/searchfuse/searchfuse/expand"
	"github.com/searchfuse/searchfuse/post"
	"github.com/searchfuse/searchfuse/rerank"
	"github.com/searchfuse/searchfuse/retriever"
	"github.com/searchfuse/searchfuse/sparse"
)

// Assemble wires a full pipeline from config around an existing sparse index.
// The dense retriever is attached only when configured; a sparse-only
// pipeline is a valid deployment.
func Assemble(ctx context.Context, cfg *config.Config, idx *sparse.Index, log *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	hc := httpx.NewFromConfig(cfg.HTTP, log)

	retrievers := []retriever.Retriever{&retriever.SparseRetriever{Index: idx}}
	if cfg.Dense.Enable {
		dense, err := retriever.NewMilvus(ctx, cfg.Dense, embedding.NewOpenAI(cfg.Embedding), log)
		if err != nil {
			return nil, err
		}
		retrievers = append(retrievers, dense)
	}

	deps := Deps{
		Expander:   expand.New(cfg.Expansion, log),
		Retrievers: retrievers,
		Log:        log,
	}
	if cfg.Rerank.Enable {
		deps.Reranker = rerank.New(rerank.NewScorerFromConfig(cfg.Rerank.Scorer, hc), log)
	}
	if cfg.WebSearch.Enable {
		deps.Web = crag.NewWebSearcher(cfg.WebSearch.Endpoint, hc, log)
	}
	if cfg.Compress.Enable {
		deps.Compressor = post.NewCompressor(cfg.Compress, log)
	}
	if cfg.Cache.Enable {
		deps.Cache = cache.NewResponseCache(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}
	return New(cfg, deps), nil
}
