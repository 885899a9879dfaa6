package config

// Config is the structured configuration for the retrieval pipeline. Every
// recognized option is enumerated here with an explicit default; there is no
// dynamic key/value passthrough.
type Config struct {
	// Logging level: debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" env:"SEARCHFUSE_LOG_LEVEL"`

	// TopK is the default number of results returned by a pipeline run.
	TopK int `json:"top_k,omitempty" yaml:"top_k,omitempty" env:"SEARCHFUSE_TOP_K"`
	// MinScore filters raw retriever results below this score.
	MinScore float64 `json:"min_score,omitempty" yaml:"min_score,omitempty"`

	Sparse    SparseConfig    `json:"sparse" yaml:"sparse"`
	Dense     DenseConfig     `json:"dense" yaml:"dense"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Expansion ExpansionConfig `json:"expansion" yaml:"expansion"`
	Fusion    FusionConfig    `json:"fusion" yaml:"fusion"`
	Gate      GateConfig      `json:"gate" yaml:"gate"`
	Rerank    RerankConfig    `json:"rerank" yaml:"rerank"`
	Quality   QualityConfig   `json:"quality" yaml:"quality"`
	WebSearch WebSearchConfig `json:"web_search" yaml:"web_search"`
	Compress  CompressConfig  `json:"compress" yaml:"compress"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`

	// HTTP holds defaults for all outbound HTTP calls.
	HTTP *HTTPClientConfig `json:"http,omitempty" yaml:"http,omitempty"`
}

// SparseConfig tunes the BM25 keyword index.
type SparseConfig struct {
	K1 float64 `json:"k1,omitempty" yaml:"k1,omitempty"`
	B  float64 `json:"b,omitempty" yaml:"b,omitempty"`
	// BuildWorkers caps the tokenization pool used during index builds.
	BuildWorkers int `json:"build_workers,omitempty" yaml:"build_workers,omitempty"`
}

// DenseConfig points at the vector store backing semantic retrieval.
type DenseConfig struct {
	Enable     bool   `json:"enable,omitempty" yaml:"enable,omitempty"`
	Address    string `json:"address,omitempty" yaml:"address,omitempty" env:"SEARCHFUSE_MILVUS_ADDRESS"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty" env:"SEARCHFUSE_MILVUS_PASSWORD"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	// Field names in the collection schema.
	IDField     string `json:"id_field,omitempty" yaml:"id_field,omitempty"`
	TextField   string `json:"text_field,omitempty" yaml:"text_field,omitempty"`
	VectorField string `json:"vector_field,omitempty" yaml:"vector_field,omitempty"`
}

// EmbeddingConfig selects the query embedding backend.
type EmbeddingConfig struct {
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"SEARCHFUSE_EMBEDDING_API_KEY"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// ExpansionConfig tunes the query expander.
type ExpansionConfig struct {
	// Strategy: conservative, balanced (default), aggressive.
	Strategy             string `json:"strategy,omitempty" yaml:"strategy,omitempty" env:"SEARCHFUSE_EXPANSION_STRATEGY"`
	MaxExpansionsPerTerm int    `json:"max_expansions_per_term,omitempty" yaml:"max_expansions_per_term,omitempty"`
	// Synonyms extends the built-in dictionary; keys and values are lowercase terms.
	Synonyms map[string][]string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
}

// FusionConfig tunes reciprocal rank fusion.
type FusionConfig struct {
	K            int     `json:"k,omitempty" yaml:"k,omitempty"`
	DenseWeight  float64 `json:"dense_weight,omitempty" yaml:"dense_weight,omitempty"`
	SparseWeight float64 `json:"sparse_weight,omitempty" yaml:"sparse_weight,omitempty"`
}

// GateConfig holds the rerank-skip thresholds. These are empirically chosen
// defaults and should be recalibrated per corpus.
type GateConfig struct {
	GapThreshold        float64 `json:"gap_threshold,omitempty" yaml:"gap_threshold,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty" yaml:"confidence_threshold,omitempty"`
	VarianceThreshold   float64 `json:"variance_threshold,omitempty" yaml:"variance_threshold,omitempty"`
}

// RerankConfig controls the pairwise rerank stage.
type RerankConfig struct {
	Enable   bool         `json:"enable,omitempty" yaml:"enable,omitempty"`
	TopK     int          `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	MinScore float64      `json:"min_score,omitempty" yaml:"min_score,omitempty"`
	Scorer   ScorerConfig `json:"scorer" yaml:"scorer"`
}

// ScorerConfig selects the pairwise relevance scorer backend.
type ScorerConfig struct {
	// Provider: "http" or "openai".
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" env:"SEARCHFUSE_SCORER_ENDPOINT"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"SEARCHFUSE_SCORER_API_KEY"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// QualityConfig holds the corrective-loop classification thresholds.
type QualityConfig struct {
	Excellent      float64 `json:"excellent,omitempty" yaml:"excellent,omitempty"`
	Good           float64 `json:"good,omitempty" yaml:"good,omitempty"`
	Moderate       float64 `json:"moderate,omitempty" yaml:"moderate,omitempty"`
	MinResultCount int     `json:"min_result_count,omitempty" yaml:"min_result_count,omitempty"`
}

// WebSearchConfig enables the supplementary external search used when the
// corrective action asks for it.
type WebSearchConfig struct {
	Enable   bool   `json:"enable,omitempty" yaml:"enable,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" env:"SEARCHFUSE_WEB_SEARCH_ENDPOINT"`
	TopK     int    `json:"top_k,omitempty" yaml:"top_k,omitempty"`
}

// CompressConfig enables token-budget compression of result text.
type CompressConfig struct {
	Enable bool `json:"enable,omitempty" yaml:"enable,omitempty"`
	// Method: truncate (default) keeps the head of the text; selective keeps
	// only query-relevant sentences.
	Method    string `json:"method,omitempty" yaml:"method,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Encoding  string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
}

// CacheConfig controls the L1 response cache.
type CacheConfig struct {
	Enable     bool `json:"enable,omitempty" yaml:"enable,omitempty"`
	MaxEntries int  `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	TTLSeconds int  `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
}

// HTTPClientConfig defines common options for outbound HTTP calls.
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry                  int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	BackoffMinMs           int      `json:"backoff_min_ms,omitempty" yaml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `json:"backoff_max_ms,omitempty" yaml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		TopK:     10,
		MinScore: 0,
		Sparse: SparseConfig{
			K1:           1.2,
			B:            0.75,
			BuildWorkers: 4,
		},
		Dense: DenseConfig{
			Collection:  "documents",
			IDField:     "id",
			TextField:   "content",
			VectorField: "vector",
		},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		Expansion: ExpansionConfig{
			Strategy:             "balanced",
			MaxExpansionsPerTerm: 5,
		},
		Fusion: FusionConfig{
			K:            60,
			DenseWeight:  0.6,
			SparseWeight: 0.4,
		},
		Gate: GateConfig{
			GapThreshold:        0.10,
			ConfidenceThreshold: 0.30,
			VarianceThreshold:   0.02,
		},
		Rerank: RerankConfig{
			Enable: true,
			TopK:   10,
		},
		Quality: QualityConfig{
			Excellent:      0.8,
			Good:           0.6,
			Moderate:       0.4,
			MinResultCount: 3,
		},
		Compress: CompressConfig{
			Method:    "truncate",
			MaxTokens: 512,
			Encoding:  "cl100k_base",
		},
		Cache: CacheConfig{
			MaxEntries: 512,
			TTLSeconds: 60,
		},
	}
}
