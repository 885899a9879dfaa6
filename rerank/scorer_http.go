package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/searchfuse/searchfuse/common/httpx"
)

// HTTPScorer posts the batch to an external cross-encoder service.
// Expected request body:
// {"model":"...","pairs":[{"query":"...","text":"..."}]}
// Expected response body:
// {"scores":[0.91,0.12]}
type HTTPScorer struct {
	Endpoint string
	Model    string
	Client   *httpx.Client
}

type scoreReq struct {
	Model string `json:"model,omitempty"`
	Pairs []Pair `json:"pairs"`
}

type scoreResp struct {
	Scores []float64 `json:"scores"`
}

func NewHTTPScorer(endpoint, model string, client *httpx.Client) *HTTPScorer {
	if client == nil {
		client = httpx.NewFromConfig(nil, nil)
	}
	return &HTTPScorer{Endpoint: endpoint, Model: model, Client: client}
}

func (h *HTTPScorer) ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error) {
	if h.Endpoint == "" {
		return nil, fmt.Errorf("rerank: scorer endpoint not configured")
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	bs, err := json.Marshal(scoreReq{Model: h.Model, Pairs: pairs})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank: scorer status %s", resp.Status)
	}
	var sr scoreResp
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("rerank: decode scorer response: %w", err)
	}
	if len(sr.Scores) != len(pairs) {
		return nil, fmt.Errorf("rerank: scorer returned %d scores for %d pairs", len(sr.Scores), len(pairs))
	}
	return sr.Scores, nil
}
