package expand

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/config"
)

// Strategy controls how many synonym substitutions are materialized into
// full reformulated query strings.
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyBalanced     Strategy = "balanced"
	StrategyAggressive   Strategy = "aggressive"
)

// maxReformulations caps the total reformulations per query regardless of
// strategy.
const maxReformulations = 10

// ExpandedQuery is derived once per request and read-only afterward. The
// original query string is never mutated; expansion is advisory, so callers
// may ignore Reformulations and use ExpandedTerms/Entities as boost terms.
type ExpandedQuery struct {
	OriginalText   string              `json:"original_text"`
	ExpandedTerms  []string            `json:"expanded_terms,omitempty"`
	SynonymMap     map[string][]string `json:"synonym_map,omitempty"`
	Entities       []string            `json:"detected_entities,omitempty"`
	Reformulations []string            `json:"reformulations,omitempty"`
}

var (
	acronymRe   = regexp.MustCompile(`^[A-Z]{2,}[0-9]*$`)
	camelCaseRe = regexp.MustCompile(`^[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]*)+$`)
)

// Expander derives synonym and entity variants of raw queries.
type Expander struct {
	synonyms   map[string][]string
	strategy   Strategy
	maxPerTerm int
	log        *slog.Logger
}

// New builds an expander with the configured strategy and synonym overlay on
// top of the built-in dictionary.
func New(cfg config.ExpansionConfig, log *slog.Logger) *Expander {
	if log == nil {
		log = logging.Discard()
	}
	strategy := Strategy(strings.ToLower(cfg.Strategy))
	switch strategy {
	case StrategyConservative, StrategyBalanced, StrategyAggressive:
	default:
		strategy = StrategyBalanced
	}
	maxPerTerm := cfg.MaxExpansionsPerTerm
	if maxPerTerm <= 0 {
		maxPerTerm = 5
	}
	synonyms := make(map[string][]string, len(defaultSynonyms)+len(cfg.Synonyms))
	for k, v := range defaultSynonyms {
		synonyms[k] = v
	}
	for k, v := range cfg.Synonyms {
		synonyms[strings.ToLower(k)] = v
	}
	return &Expander{synonyms: synonyms, strategy: strategy, maxPerTerm: maxPerTerm, log: log}
}

// Expand derives variants of the query using the configured strategy.
func (e *Expander) Expand(query string) ExpandedQuery {
	return e.ExpandWith(query, e.strategy, e.maxPerTerm)
}

// ExpandWith derives variants with explicit strategy and per-term cap.
func (e *Expander) ExpandWith(query string, strategy Strategy, maxPerTerm int) ExpandedQuery {
	out := ExpandedQuery{
		OriginalText: query,
		SynonymMap:   map[string][]string{},
	}
	rawTokens := tokenizeKeepCase(query)
	if len(rawTokens) == 0 {
		return out
	}

	out.Entities = detectEntities(rawTokens)

	seen := map[string]struct{}{}
	terms := make([]string, 0, len(rawTokens))
	for _, tok := range rawTokens {
		lower := strings.ToLower(tok)
		if _, stop := defaultStopwords[lower]; stop {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		terms = append(terms, lower)
	}

	for _, term := range terms {
		syns := e.lookup(term, maxPerTerm)
		if len(syns) == 0 {
			continue
		}
		out.SynonymMap[term] = syns
		for _, s := range syns {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out.ExpandedTerms = append(out.ExpandedTerms, s)
		}
	}

	out.Reformulations = e.reformulate(query, terms, out.SynonymMap, strategy)
	return out
}

// lookup resolves synonyms with exact match first, then a substring fallback
// against dictionary keys.
func (e *Expander) lookup(term string, maxPerTerm int) []string {
	syns, ok := e.synonyms[term]
	if !ok {
		for _, key := range e.sortedKeys() {
			if key == term {
				continue
			}
			if strings.Contains(term, key) || strings.Contains(key, term) {
				syns = e.synonyms[key]
				break
			}
		}
	}
	if len(syns) == 0 {
		return nil
	}
	out := make([]string, 0, len(syns))
	for _, s := range syns {
		if s == term {
			continue
		}
		out = append(out, s)
		if len(out) >= maxPerTerm {
			break
		}
	}
	return out
}

// sortedKeys keeps the substring fallback deterministic.
func (e *Expander) sortedKeys() []string {
	keys := make([]string, 0, len(e.synonyms))
	for k := range e.synonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *Expander) reformulate(query string, terms []string, synonymMap map[string][]string, strategy Strategy) []string {
	perTerm := 2
	switch strategy {
	case StrategyBalanced:
		perTerm = 3
	case StrategyAggressive:
		perTerm = -1 // all
	}

	var out []string
	lowerQuery := strings.ToLower(query)
	for _, term := range terms {
		syns := synonymMap[term]
		if len(syns) == 0 {
			continue
		}
		limit := len(syns)
		if perTerm > 0 && perTerm < limit {
			limit = perTerm
		}
		for _, syn := range syns[:limit] {
			if len(out) >= maxReformulations {
				return out
			}
			if r, ok := substituteTerm(query, lowerQuery, term, syn); ok {
				out = append(out, r)
			}
		}
	}
	return out
}

// substituteTerm replaces the first whole-word occurrence of term (matched
// case-insensitively) with syn, leaving the original string untouched.
func substituteTerm(query, lowerQuery, term, syn string) (string, bool) {
	from := 0
	for {
		i := strings.Index(lowerQuery[from:], term)
		if i < 0 {
			return "", false
		}
		start := from + i
		end := start + len(term)
		if wordBoundary(lowerQuery, start, end) {
			return query[:start] + syn + query[end:], true
		}
		from = end
	}
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

// detectEntities applies the capitalization, acronym and CamelCase heuristics
// to the case-preserved tokens.
func detectEntities(tokens []string) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(e string) {
		if _, dup := seen[e]; dup {
			return
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	for _, tok := range tokens {
		switch {
		case acronymRe.MatchString(tok):
			add(tok)
		case camelCaseRe.MatchString(tok):
			add(tok)
		case len(tok) > 1 && unicode.IsUpper(rune(tok[0])) && strings.ToLower(tok[1:]) == tok[1:]:
			add(tok)
		}
	}
	return out
}

// tokenizeKeepCase splits on non-word runes without lowercasing, so entity
// heuristics can see the original casing.
func tokenizeKeepCase(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
