package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/embedding"
	"github.com/searchfuse/searchfuse/schema"
)

// MilvusRetriever performs semantic retrieval: it embeds the query and runs a
// cosine similarity search against a Milvus collection.
type MilvusRetriever struct {
	mc          client.Client
	embed       embedding.Provider
	collection  string
	idField     string
	textField   string
	vectorField string
	log         *slog.Logger
}

// NewMilvus connects to Milvus and wires the embedding provider. The
// collection must already exist and be loaded; ingestion is managed outside
// this module.
func NewMilvus(ctx context.Context, cfg config.DenseConfig, embed embedding.Provider, log *slog.Logger) (*MilvusRetriever, error) {
	if log == nil {
		log = logging.Discard()
	}
	mc, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("retriever: connect milvus: %w", err)
	}
	return newMilvusWithClient(mc, cfg, embed, log), nil
}

func newMilvusWithClient(mc client.Client, cfg config.DenseConfig, embed embedding.Provider, log *slog.Logger) *MilvusRetriever {
	r := &MilvusRetriever{
		mc:          mc,
		embed:       embed,
		collection:  cfg.Collection,
		idField:     cfg.IDField,
		textField:   cfg.TextField,
		vectorField: cfg.VectorField,
		log:         log,
	}
	if r.collection == "" {
		r.collection = "documents"
	}
	if r.idField == "" {
		r.idField = "id"
	}
	if r.textField == "" {
		r.textField = "content"
	}
	if r.vectorField == "" {
		r.vectorField = "vector"
	}
	return r
}

func (r *MilvusRetriever) Type() string { return "dense" }

// Close releases the Milvus connection.
func (r *MilvusRetriever) Close() error { return r.mc.Close() }

func (r *MilvusRetriever) Search(ctx context.Context, query string, topK int, minScore float64) ([]schema.SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	vec, err := r.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, fmt.Errorf("retriever: search param: %w", err)
	}
	results, err := r.mc.Search(ctx, r.collection, nil, "",
		[]string{r.idField, r.textField},
		[]entity.Vector{entity.FloatVector(vec)},
		r.vectorField, entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("retriever: milvus search: %w", err)
	}

	var out []schema.SearchResult
	for _, rs := range results {
		idCol := rs.Fields.GetColumn(r.idField)
		textCol := rs.Fields.GetColumn(r.textField)
		if idCol == nil {
			idCol = rs.IDs
		}
		for i := 0; i < rs.ResultCount; i++ {
			id, err := idCol.GetAsString(i)
			if err != nil || id == "" {
				continue
			}
			score := float64(rs.Scores[i])
			if score < minScore {
				continue
			}
			var content string
			if textCol != nil {
				content, _ = textCol.GetAsString(i)
			}
			out = append(out, schema.SearchResult{
				Document: schema.Document{ID: id, Content: content},
				Score:    score,
			})
		}
	}
	r.log.Debug("dense search", "query", query, "hits", len(out))
	return out, nil
}
