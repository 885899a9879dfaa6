package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchfuse/searchfuse/config"
)

func TestExpandSynonyms(t *testing.T) {
	e := New(config.ExpansionConfig{}, nil)

	got := e.Expand("database error")
	require.Contains(t, got.SynonymMap, "database")
	require.Contains(t, got.SynonymMap, "error")
	assert.Contains(t, got.SynonymMap["database"], "db")
	assert.Contains(t, got.ExpandedTerms, "failure")
	assert.Equal(t, "database error", got.OriginalText)
}

func TestExpandSkipsStopwords(t *testing.T) {
	e := New(config.ExpansionConfig{}, nil)
	got := e.Expand("what is the error")
	assert.NotContains(t, got.SynonymMap, "what")
	assert.NotContains(t, got.SynonymMap, "the")
	assert.Contains(t, got.SynonymMap, "error")
}

func TestExpandConfigOverridesDictionary(t *testing.T) {
	e := New(config.ExpansionConfig{
		Synonyms: map[string][]string{"error": {"panic"}},
	}, nil)
	got := e.Expand("error")
	assert.Equal(t, []string{"panic"}, got.SynonymMap["error"])
}

func TestExpandReformulations(t *testing.T) {
	e := New(config.ExpansionConfig{Strategy: "conservative"}, nil)

	got := e.Expand("database error")
	require.NotEmpty(t, got.Reformulations)
	// Conservative takes at most two synonyms per term.
	assert.LessOrEqual(t, len(got.Reformulations), 4)
	assert.Contains(t, got.Reformulations, "db error")
	for _, r := range got.Reformulations {
		assert.NotEqual(t, "database error", r, "reformulation must differ from the original")
	}
}

func TestExpandReformulationCap(t *testing.T) {
	e := New(config.ExpansionConfig{Strategy: "aggressive"}, nil)
	got := e.Expand("find database error search user token config")
	assert.LessOrEqual(t, len(got.Reformulations), maxReformulations)
}

func TestExpandPreservesOriginalCase(t *testing.T) {
	e := New(config.ExpansionConfig{}, nil)
	got := e.Expand("Database Error in PROD")
	for _, r := range got.Reformulations {
		// Substitution must leave the untouched part of the query intact.
		assert.Contains(t, r, "PROD")
	}
	assert.Equal(t, "Database Error in PROD", got.OriginalText)
}

func TestExpandWholeWordSubstitution(t *testing.T) {
	e := New(config.ExpansionConfig{
		Synonyms: map[string][]string{"db": {"database"}},
	}, nil)
	got := e.Expand("dbx db")
	// "db" inside "dbx" must not be replaced.
	assert.Contains(t, got.Reformulations, "dbx database")
}

func TestDetectEntities(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"configure JWT tokens", []string{"JWT"}},
		{"HTTP2 and SAML errors", []string{"SAML", "HTTP2"}},
		{"use the ConnectionPool type", []string{"ConnectionPool"}},
		{"plain lowercase words", nil},
	}
	for _, tt := range tests {
		e := New(config.ExpansionConfig{}, nil)
		got := e.Expand(tt.query)
		if tt.want == nil {
			assert.Empty(t, got.Entities, "query %q", tt.query)
			continue
		}
		for _, w := range tt.want {
			assert.Contains(t, got.Entities, w, "query %q", tt.query)
		}
	}
}

func TestExpandEmptyQuery(t *testing.T) {
	e := New(config.ExpansionConfig{}, nil)
	got := e.Expand("")
	assert.Empty(t, got.ExpandedTerms)
	assert.Empty(t, got.Reformulations)
	assert.Empty(t, got.Entities)
}

func TestExpandWithStrategyWidth(t *testing.T) {
	e := New(config.ExpansionConfig{}, nil)

	conservative := e.ExpandWith("database error", StrategyConservative, 5)
	aggressive := e.ExpandWith("database error", StrategyAggressive, 5)
	assert.GreaterOrEqual(t, len(aggressive.Reformulations), len(conservative.Reformulations))
}
