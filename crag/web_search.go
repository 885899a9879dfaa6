package crag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/searchfuse/searchfuse/common/httpx"
	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/schema"
)

// Searcher pulls supplementary results from an external source when the
// internal corpus comes up empty.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]schema.SearchResult, error)
}

// WebSearcher queries a DuckDuckGo-compatible instant answer endpoint.
// External hits carry their URL as the record ID and a zero score; they enter
// the ranking by position only, never by score comparison with corpus hits.
type WebSearcher struct {
	endpoint string
	client   *httpx.Client
	log      *slog.Logger
}

func NewWebSearcher(endpoint string, client *httpx.Client, log *slog.Logger) *WebSearcher {
	if endpoint == "" {
		endpoint = "https://api.duckduckgo.com/"
	}
	if client == nil {
		client = httpx.NewFromConfig(nil, nil)
	}
	if log == nil {
		log = logging.Discard()
	}
	return &WebSearcher{endpoint: endpoint, client: client, log: log}
}

type instantAnswer struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Heading       string `json:"Heading"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func (w *WebSearcher) Search(ctx context.Context, query string, topK int) ([]schema.SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}
	u, err := url.Parse(w.endpoint)
	if err != nil {
		return nil, fmt.Errorf("crag: web search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crag: web search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crag: web search status %s", resp.Status)
	}

	var ia instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&ia); err != nil {
		return nil, fmt.Errorf("crag: decode web search response: %w", err)
	}

	out := make([]schema.SearchResult, 0, topK)
	if ia.AbstractText != "" && ia.AbstractURL != "" {
		out = append(out, webResult(ia.AbstractURL, ia.Heading, ia.AbstractText))
	}
	for _, t := range ia.RelatedTopics {
		if len(out) >= topK {
			break
		}
		if t.Text == "" || t.FirstURL == "" {
			continue
		}
		out = append(out, webResult(t.FirstURL, "", t.Text))
	}
	w.log.Debug("web search supplement", "query", query, "results", len(out))
	return out, nil
}

func webResult(id, title, snippet string) schema.SearchResult {
	meta := map[string]any{"source": "web_search", "url": id}
	if title != "" {
		meta["title"] = title
	}
	return schema.SearchResult{
		Document: schema.Document{ID: id, Content: snippet, Metadata: meta},
	}
}
