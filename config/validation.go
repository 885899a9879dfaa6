package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Validate checks the complete configuration at construction time.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.TopK <= 0 {
		errs = append(errs, ValidationError{
			Field:   "top_k",
			Message: fmt.Sprintf("top_k must be positive, got %d", c.TopK),
		})
	}
	if c.MinScore < 0 {
		errs = append(errs, ValidationError{
			Field:   "min_score",
			Message: fmt.Sprintf("min_score must be non-negative, got %.2f", c.MinScore),
		})
	}

	errs = append(errs, c.validateSparse()...)
	errs = append(errs, c.validateExpansion()...)
	errs = append(errs, c.validateFusion()...)
	errs = append(errs, c.validateGate()...)
	errs = append(errs, c.validateRerank()...)
	errs = append(errs, c.validateQuality()...)
	errs = append(errs, c.validateCompress()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateSparse() ValidationErrors {
	var errs ValidationErrors
	if c.Sparse.K1 <= 0 {
		errs = append(errs, ValidationError{
			Field:   "sparse.k1",
			Message: fmt.Sprintf("k1 must be positive, got %.2f", c.Sparse.K1),
		})
	}
	if c.Sparse.B < 0 || c.Sparse.B > 1 {
		errs = append(errs, ValidationError{
			Field:   "sparse.b",
			Message: fmt.Sprintf("b must be in [0, 1], got %.2f", c.Sparse.B),
		})
	}
	return errs
}

func (c *Config) validateExpansion() ValidationErrors {
	var errs ValidationErrors
	switch strings.ToLower(c.Expansion.Strategy) {
	case "conservative", "balanced", "aggressive", "":
	default:
		errs = append(errs, ValidationError{
			Field:   "expansion.strategy",
			Message: fmt.Sprintf("unknown strategy %q (want conservative, balanced or aggressive)", c.Expansion.Strategy),
		})
	}
	if c.Expansion.MaxExpansionsPerTerm < 0 {
		errs = append(errs, ValidationError{
			Field:   "expansion.max_expansions_per_term",
			Message: fmt.Sprintf("must be non-negative, got %d", c.Expansion.MaxExpansionsPerTerm),
		})
	}
	return errs
}

func (c *Config) validateFusion() ValidationErrors {
	var errs ValidationErrors
	if c.Fusion.K < 0 {
		errs = append(errs, ValidationError{
			Field:   "fusion.k",
			Message: fmt.Sprintf("k must be non-negative, got %d", c.Fusion.K),
		})
	}
	if c.Fusion.DenseWeight < 0 || c.Fusion.SparseWeight < 0 {
		errs = append(errs, ValidationError{
			Field:   "fusion",
			Message: "fusion weights must be non-negative",
		})
	}
	if c.Fusion.DenseWeight == 0 && c.Fusion.SparseWeight == 0 {
		errs = append(errs, ValidationError{
			Field:   "fusion",
			Message: "at least one fusion weight must be positive",
		})
	}
	return errs
}

func (c *Config) validateGate() ValidationErrors {
	var errs ValidationErrors
	for _, th := range []struct {
		field string
		value float64
	}{
		{"gate.gap_threshold", c.Gate.GapThreshold},
		{"gate.confidence_threshold", c.Gate.ConfidenceThreshold},
		{"gate.variance_threshold", c.Gate.VarianceThreshold},
	} {
		if th.value < 0 || th.value > 1 {
			errs = append(errs, ValidationError{
				Field:   th.field,
				Message: fmt.Sprintf("must be in [0, 1], got %.4f", th.value),
			})
		}
	}
	return errs
}

func (c *Config) validateRerank() ValidationErrors {
	var errs ValidationErrors
	if !c.Rerank.Enable {
		return errs
	}
	if c.Rerank.TopK < 0 {
		errs = append(errs, ValidationError{
			Field:   "rerank.top_k",
			Message: fmt.Sprintf("must be non-negative, got %d", c.Rerank.TopK),
		})
	}
	switch strings.ToLower(c.Rerank.Scorer.Provider) {
	case "http":
		if c.Rerank.Scorer.Endpoint == "" {
			errs = append(errs, ValidationError{
				Field:   "rerank.scorer.endpoint",
				Message: "endpoint is required for the http scorer",
			})
		}
	case "openai":
		if c.Rerank.Scorer.APIKey == "" {
			errs = append(errs, ValidationError{
				Field:   "rerank.scorer.api_key",
				Message: "api_key is required for the openai scorer",
			})
		}
	case "":
		// Scorer injected programmatically.
	default:
		errs = append(errs, ValidationError{
			Field:   "rerank.scorer.provider",
			Message: fmt.Sprintf("unknown provider %q (want http or openai)", c.Rerank.Scorer.Provider),
		})
	}
	return errs
}

func (c *Config) validateQuality() ValidationErrors {
	var errs ValidationErrors
	q := c.Quality
	for _, th := range []struct {
		field string
		value float64
	}{
		{"quality.excellent", q.Excellent},
		{"quality.good", q.Good},
		{"quality.moderate", q.Moderate},
	} {
		if th.value < 0 || th.value > 1 {
			errs = append(errs, ValidationError{
				Field:   th.field,
				Message: fmt.Sprintf("must be in [0, 1], got %.2f", th.value),
			})
		}
	}
	if q.Excellent <= q.Good || q.Good <= q.Moderate {
		errs = append(errs, ValidationError{
			Field:   "quality",
			Message: fmt.Sprintf("thresholds must be strictly ordered excellent > good > moderate, got %.2f/%.2f/%.2f", q.Excellent, q.Good, q.Moderate),
		})
	}
	if q.MinResultCount <= 0 {
		errs = append(errs, ValidationError{
			Field:   "quality.min_result_count",
			Message: fmt.Sprintf("must be positive, got %d", q.MinResultCount),
		})
	}
	return errs
}

func (c *Config) validateCompress() ValidationErrors {
	var errs ValidationErrors
	if c.Compress.Enable && c.Compress.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "compress.max_tokens",
			Message: fmt.Sprintf("must be positive when compression is enabled, got %d", c.Compress.MaxTokens),
		})
	}
	switch strings.ToLower(c.Compress.Method) {
	case "", "truncate", "selective":
	default:
		errs = append(errs, ValidationError{
			Field:   "compress.method",
			Message: fmt.Sprintf("unknown method %q (want truncate or selective)", c.Compress.Method),
		})
	}
	return errs
}
