package schema

// Document is one indexable text record. Documents are immutable once handed
// to an index; owner scope is carried through for the caller's filtering.
type Document struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	OwnerScope string         `json:"owner_scope,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SearchResult pairs a document with a raw retriever score.
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Score is an optional stage score. Valid is false until a stage writes it.
type Score struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// ScoreOf returns a valid Score.
func ScoreOf(v float64) Score { return Score{Value: v, Valid: true} }

// Scores accumulates per-stage scores for a candidate.
type Scores struct {
	Sparse Score `json:"sparse,omitempty"`
	Dense  Score `json:"dense,omitempty"`
	Fused  Score `json:"fused,omitempty"`
	Rerank Score `json:"rerank,omitempty"`
}

// ScoreField names one of the per-stage score slots.
type ScoreField string

const (
	FieldSparse ScoreField = "sparse"
	FieldDense  ScoreField = "dense"
	FieldFused  ScoreField = "fused"
	FieldRerank ScoreField = "rerank"
)

// Get reads the named score slot.
func (s Scores) Get(f ScoreField) Score {
	switch f {
	case FieldSparse:
		return s.Sparse
	case FieldDense:
		return s.Dense
	case FieldFused:
		return s.Fused
	case FieldRerank:
		return s.Rerank
	}
	return Score{}
}

// SourceSet records which retrieval sources produced a candidate.
type SourceSet struct {
	Sparse bool `json:"sparse"`
	Dense  bool `json:"dense"`
}

// Tag renders the source set as a single label. A candidate seen by both
// sources is tagged hybrid.
func (s SourceSet) Tag() string {
	switch {
	case s.Sparse && s.Dense:
		return "hybrid"
	case s.Sparse:
		return "sparse"
	case s.Dense:
		return "dense"
	}
	return ""
}

// Candidate is the unit of data flowing through the pipeline: a record plus
// the scores accumulated so far. A pipeline run never holds two candidates
// with the same ID.
type Candidate struct {
	ID      string    `json:"id"`
	Text    string    `json:"text"`
	Scores  Scores    `json:"scores"`
	Sources SourceSet `json:"sources"`
	// OriginalRank is the 0-based position the candidate held before the
	// rerank stage ran. Meaningful only when Scores.Rerank is valid.
	OriginalRank int `json:"original_rank,omitempty"`
}

// FromResult builds a candidate from a raw retriever result.
func FromResult(r SearchResult) Candidate {
	return Candidate{ID: r.Document.ID, Text: r.Document.Content}
}
