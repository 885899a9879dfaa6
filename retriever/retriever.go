package retriever

import (
	"context"

	"github.com/searchfuse/searchfuse/schema"
	"github.com/searchfuse/searchfuse/sparse"
)

// Retriever is one retrieval source feeding the fusion stage.
type Retriever interface {
	Type() string
	Search(ctx context.Context, query string, topK int, minScore float64) ([]schema.SearchResult, error)
}

// SparseRetriever adapts the BM25 index to the retriever contract.
type SparseRetriever struct {
	Index *sparse.Index
}

func (r *SparseRetriever) Type() string { return "sparse" }

func (r *SparseRetriever) Search(ctx context.Context, query string, topK int, minScore float64) ([]schema.SearchResult, error) {
	return r.Index.Search(ctx, query, topK, minScore)
}
