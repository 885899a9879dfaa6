// Mock pairwise scorer for local development. Scores each pair by token
// overlap between query and text so rankings are deterministic and loosely
// plausible.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type pair struct {
	Query string `json:"query"`
	Text  string `json:"text"`
}
type scoreReq struct {
	Model string `json:"model,omitempty"`
	Pairs []pair `json:"pairs"`
}
type scoreResp struct {
	Scores []float64 `json:"scores"`
}

func handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := scoreResp{Scores: make([]float64, len(req.Pairs))}
	for i, p := range req.Pairs {
		out.Scores[i] = overlap(p.Query, p.Text)
	}
	_ = json.NewEncoder(w).Encode(out)
}

func overlap(query, text string) float64 {
	qTokens := strings.Fields(strings.ToLower(query))
	if len(qTokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, t := range qTokens {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(qTokens))
}

func main() {
	addr := ":8082"
	if v := os.Getenv("SCORER_ADDR"); v != "" {
		addr = v
	}
	http.HandleFunc("/score", handleScore)
	log.Printf("scorer mock listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
