package post

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/schema"
	"github.com/searchfuse/searchfuse/sparse"
)

// Compression methods.
const (
	// MethodTruncate keeps the beginning of the text up to the token budget.
	MethodTruncate = "truncate"
	// MethodSelective keeps only the sentences that share terms with the
	// query, in their original order, up to the token budget. Irrelevant
	// sentences are dropped even when the text is within budget.
	MethodSelective = "selective"
)

// Compressor trims result text to a per-result token budget so the combined
// response fits a downstream context window. Truncation keeps the beginning
// of the text; chunked corpora front-load their signal. Selective compression
// additionally filters sentences by query relevance before the budget is
// applied.
type Compressor struct {
	method    string
	maxTokens int
	enc       *tiktoken.Tiktoken
	log       *slog.Logger
}

// NewCompressor builds a compressor for the configured method and encoding
// (defaults truncate, cl100k_base, 512 tokens per result). An unknown
// encoding falls back to a whitespace token approximation rather than failing
// the pipeline.
func NewCompressor(cfg config.CompressConfig, log *slog.Logger) *Compressor {
	if log == nil {
		log = logging.Discard()
	}
	method := strings.ToLower(cfg.Method)
	switch method {
	case MethodTruncate, MethodSelective:
	case "":
		method = MethodTruncate
	default:
		log.Warn("unknown compression method, using truncate", "method", cfg.Method)
		method = MethodTruncate
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		log.Warn("unknown token encoding, using whitespace approximation", "encoding", encoding, "error", err)
		enc = nil
	}
	return &Compressor{method: method, maxTokens: maxTokens, enc: enc, log: log}
}

// Compress reduces one text to the token budget. The returned ratio is the
// kept fraction in [0,1]; 1 means the text came through unchanged. The query
// steers the selective method and is ignored by truncation.
func (c *Compressor) Compress(text, query string) (string, float64) {
	if text == "" {
		return text, 1
	}
	if c.method == MethodSelective {
		if out, ratio, ok := c.selectRelevant(text, query); ok {
			return out, ratio
		}
	}
	return c.truncate(text)
}

// CompressAll reduces every candidate's text in place and reports how many
// were changed.
func (c *Compressor) CompressAll(candidates []schema.Candidate, query string) int {
	cut := 0
	for i := range candidates {
		text, ratio := c.Compress(candidates[i].Text, query)
		if ratio < 1 {
			candidates[i].Text = text
			cut++
		}
	}
	if cut > 0 {
		c.log.Debug("compressed result text", "cut", cut, "total", len(candidates), "budget", c.maxTokens)
	}
	return cut
}

func (c *Compressor) truncate(text string) (string, float64) {
	if c.enc != nil {
		tokens := c.enc.Encode(text, nil, nil)
		if len(tokens) <= c.maxTokens {
			return text, 1
		}
		out := c.enc.Decode(tokens[:c.maxTokens])
		return out, float64(c.maxTokens) / float64(len(tokens))
	}
	fields := strings.Fields(text)
	if len(fields) <= c.maxTokens {
		return text, 1
	}
	return strings.Join(fields[:c.maxTokens], " "), float64(c.maxTokens) / float64(len(fields))
}

// selectRelevant keeps the sentences that share a term with the query,
// preserving their exact wording and original order, until the token budget
// is spent. Reports ok=false when the query yields no usable terms or no
// sentence matches, so the caller can fall back to plain truncation.
func (c *Compressor) selectRelevant(text, query string) (string, float64, bool) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return "", 0, false
	}
	sentences := splitSentences(text)

	kept := make([]string, 0, len(sentences))
	used := 0
	changed := false
	for _, s := range sentences {
		if !sentenceMatches(s, terms) {
			changed = true
			continue
		}
		n := c.countTokens(s)
		if used+n > c.maxTokens {
			if used == 0 {
				// A single relevant sentence over budget still gets its head.
				head, _ := c.truncate(s)
				kept = append(kept, head)
			}
			changed = true
			break
		}
		kept = append(kept, s)
		used += n
	}
	if len(kept) == 0 {
		return "", 0, false
	}
	if !changed {
		return text, 1, true
	}
	out := strings.Join(kept, " ")
	total := c.countTokens(text)
	ratio := 1.0
	if total > 0 {
		ratio = float64(c.countTokens(out)) / float64(total)
		if ratio > 1 {
			ratio = 1
		}
	}
	return out, ratio, true
}

func (c *Compressor) countTokens(text string) int {
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

// queryTerms extracts the distinct query tokens longer than two characters.
func queryTerms(query string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, tok := range sparse.Tokenize(query) {
		if len(tok) <= 2 {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func sentenceMatches(sentence string, terms []string) bool {
	toks := sparse.Tokenize(sentence)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	for _, term := range terms {
		if _, ok := set[term]; ok {
			return true
		}
	}
	return false
}

// splitSentences breaks text on sentence terminators and newlines, keeping
// each sentence's punctuation.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		switch r {
		case '.', '!', '?', '\n':
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
