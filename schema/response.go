package schema

import "time"

// Stage identifies a pipeline stage for degradation reporting.
type Stage string

const (
	StageExpand   Stage = "expand"
	StageRetrieve Stage = "retrieve"
	StageFuse     Stage = "fuse"
	StageGate     Stage = "gate"
	StageRerank   Stage = "rerank"
	StageEvaluate Stage = "evaluate"
	StageCorrect  Stage = "correct"
	StageCompress Stage = "compress"
	StageExplain  Stage = "explain"
)

// ErrorKind classifies a stage-local failure so the orchestrator can branch
// on it explicitly instead of inspecting error strings.
type ErrorKind string

const (
	KindPartialRetrieval    ErrorKind = "partial_retrieval_failure"
	KindRerankerUnavailable ErrorKind = "reranker_unavailable"
	KindNoResults           ErrorKind = "no_results"
	KindInvalidQuery        ErrorKind = "invalid_query"
	KindWebSearchFailed     ErrorKind = "web_search_failed"
	KindCompressFailed      ErrorKind = "compress_failed"
)

// StageError records one degradation. Stage errors never abort a request;
// they are collected into the response summary.
type StageError struct {
	Stage   Stage     `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e StageError) Error() string {
	return string(e.Stage) + ": " + string(e.Kind) + ": " + e.Message
}

// Explanation decomposes one result's final score into per-stage
// contributions. Attached 1:1 to each output result, never persisted.
type Explanation struct {
	FinalScore      float64  `json:"final_score"`
	ScoreType       string   `json:"score_type"`
	DenseScore      Score    `json:"dense_score,omitempty"`
	SparseScore     Score    `json:"sparse_score,omitempty"`
	DensePercent    float64  `json:"dense_percent,omitempty"`
	SparsePercent   float64  `json:"sparse_percent,omitempty"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	RRFScore        Score    `json:"rrf_score,omitempty"`
	RerankScore     Score    `json:"rerank_score,omitempty"`
	OriginalRank    int      `json:"original_rank,omitempty"`
	RerankDelta     int      `json:"rerank_delta,omitempty"`
	Text            string   `json:"text"`
}

// Result is one ranked entry of the caller-facing response.
type Result struct {
	ID          string      `json:"record_id"`
	Text        string      `json:"text"`
	FinalScore  float64     `json:"final_score"`
	ScoreType   string      `json:"score_type"`
	Rank        int         `json:"rank"`
	Explanation Explanation `json:"explanation"`
}

// StageAverages aggregates per-stage mean scores across the final result set.
type StageAverages struct {
	Dense  Score `json:"dense,omitempty"`
	Sparse Score `json:"sparse,omitempty"`
	Fused  Score `json:"fused,omitempty"`
	Rerank Score `json:"rerank,omitempty"`
}

// PipelineSummary is the observability envelope of one pipeline run.
type PipelineSummary struct {
	RequestID         string        `json:"request_id"`
	TotalResults      int           `json:"total_results"`
	ExecutionTime     time.Duration `json:"execution_time"`
	RerankSkipped     bool          `json:"rerank_skipped"`
	SkipReason        string        `json:"skip_reason,omitempty"`
	QualityLevel      string        `json:"quality_level,omitempty"`
	CorrectiveActions []string      `json:"corrective_actions,omitempty"`
	Degradations      []StageError  `json:"degradations,omitempty"`
	Averages          StageAverages `json:"averages"`
	CacheHit          bool          `json:"cache_hit,omitempty"`
}

// Degraded reports whether any stage degraded during the run.
func (s PipelineSummary) Degraded() bool { return len(s.Degradations) > 0 }

// Response is the caller-facing output of one pipeline run.
type Response struct {
	Results []Result        `json:"results"`
	Summary PipelineSummary `json:"pipeline_summary"`
}
