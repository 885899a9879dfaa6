package sparse

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/schema"
)

// Index is an in-memory BM25 inverted index. It is immutable after Build;
// Rebuild assembles a fresh snapshot off to the side and swaps it in
// atomically, so in-flight searches never observe a half-built index.
type Index struct {
	k1      float64
	b       float64
	workers int
	log     *slog.Logger

	snap atomic.Pointer[snapshot]
}

type posting struct {
	doc int32
	tf  float64
}

type snapshot struct {
	ids       []string
	texts     []string
	scopes    []string
	docLen    []int
	postings  map[string][]posting
	avgDocLen float64
}

// New creates an empty index with the given BM25 parameters.
func New(cfg config.SparseConfig, log *slog.Logger) *Index {
	if log == nil {
		log = logging.Discard()
	}
	k1 := cfg.K1
	if k1 <= 0 {
		k1 = 1.2
	}
	b := cfg.B
	if b <= 0 || b > 1 {
		b = 0.75
	}
	workers := cfg.BuildWorkers
	if workers <= 0 {
		workers = 4
	}
	idx := &Index{k1: k1, b: b, workers: workers, log: log}
	idx.snap.Store(&snapshot{postings: map[string][]posting{}})
	return idx
}

// Build tokenizes all records and replaces the current snapshot. Records are
// treated as immutable once indexed.
func (x *Index) Build(records []schema.Document) error {
	snap := &snapshot{
		ids:      make([]string, len(records)),
		texts:    make([]string, len(records)),
		scopes:   make([]string, len(records)),
		docLen:   make([]int, len(records)),
		postings: make(map[string][]posting, len(records)*8),
	}

	// Tokenization dominates build time, so it fans out on a worker pool.
	// Each worker writes only its own slot; postings are assembled serially.
	tokens := make([][]string, len(records))
	pool, err := ants.NewPool(x.workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range records {
		i := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			tokens[i] = Tokenize(records[i].Content)
		}); err != nil {
			wg.Done()
			tokens[i] = Tokenize(records[i].Content)
		}
	}
	wg.Wait()

	totalLen := 0
	for i, rec := range records {
		snap.ids[i] = rec.ID
		snap.texts[i] = rec.Content
		snap.scopes[i] = rec.OwnerScope
		snap.docLen[i] = len(tokens[i])
		totalLen += len(tokens[i])

		tf := make(map[string]float64, len(tokens[i]))
		for _, t := range tokens[i] {
			tf[t]++
		}
		for term, freq := range tf {
			snap.postings[term] = append(snap.postings[term], posting{doc: int32(i), tf: freq})
		}
	}
	if len(records) > 0 {
		snap.avgDocLen = float64(totalLen) / float64(len(records))
	}

	x.snap.Store(snap)
	x.log.Info("sparse index built", "records", len(records), "terms", len(snap.postings))
	return nil
}

// Rebuild fully replaces the index. Readers keep using the previous snapshot
// until the new one is stored.
func (x *Index) Rebuild(records []schema.Document) error {
	return x.Build(records)
}

// Len reports the number of indexed records.
func (x *Index) Len() int {
	return len(x.snap.Load().ids)
}

// Search scores every matching record with BM25 and returns the topK results
// with score >= minScore, ties broken by ascending record ID. A query with no
// tokens yields an empty result, not an error.
func (x *Index) Search(ctx context.Context, query string, topK int, minScore float64) ([]schema.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return []schema.SearchResult{}, nil
	}
	snap := x.snap.Load()
	n := len(snap.ids)
	if n == 0 {
		return []schema.SearchResult{}, nil
	}

	scores := make(map[int32]float64)
	for _, term := range terms {
		plist, ok := snap.postings[term]
		if !ok {
			continue
		}
		df := float64(len(plist))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		for _, p := range plist {
			norm := x.k1 * (1 - x.b + x.b*float64(snap.docLen[p.doc])/snap.avgDocLen)
			scores[p.doc] += idf * (p.tf * (x.k1 + 1)) / (p.tf + norm)
		}
	}

	out := make([]schema.SearchResult, 0, len(scores))
	for doc, score := range scores {
		if score < minScore {
			continue
		}
		out = append(out, schema.SearchResult{
			Document: schema.Document{
				ID:         snap.ids[doc],
				Content:    snap.texts[doc],
				OwnerScope: snap.scopes[doc],
			},
			Score: score,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Document.ID < out[j].Document.ID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
