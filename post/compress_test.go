package post

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/schema"
)

func TestCompressWithinBudget(t *testing.T) {
	c := NewCompressor(config.CompressConfig{MaxTokens: 100}, nil)
	out, ratio := c.Compress("short text stays intact", "anything")
	assert.Equal(t, "short text stays intact", out)
	assert.Equal(t, 1.0, ratio)
}

func TestCompressTruncates(t *testing.T) {
	c := NewCompressor(config.CompressConfig{MaxTokens: 8}, nil)
	long := strings.Repeat("some moderately long sentence about connection pooling. ", 40)

	out, ratio := c.Compress(long, "connection pooling")
	assert.Less(t, len(out), len(long))
	assert.Less(t, ratio, 1.0)
	assert.Greater(t, ratio, 0.0)
	// Truncation keeps the beginning of the text.
	assert.True(t, strings.HasPrefix(long, out[:4]))
}

func TestCompressEmpty(t *testing.T) {
	c := NewCompressor(config.CompressConfig{}, nil)
	out, ratio := c.Compress("", "q")
	assert.Empty(t, out)
	assert.Equal(t, 1.0, ratio)
}

func TestCompressUnknownEncodingFallsBack(t *testing.T) {
	c := NewCompressor(config.CompressConfig{MaxTokens: 3, Encoding: "no_such_encoding"}, nil)
	out, ratio := c.Compress("one two three four five", "")
	assert.Equal(t, "one two three", out)
	assert.InDelta(t, 0.6, ratio, 1e-12)
}

func TestCompressSelectiveDropsIrrelevantSentences(t *testing.T) {
	c := NewCompressor(config.CompressConfig{Method: "selective", MaxTokens: 50, Encoding: "no_such_encoding"}, nil)
	text := "Connection pooling reuses sockets. The weather was pleasant. Pool size should match load."

	out, ratio := c.Compress(text, "connection pool sizing")
	assert.Equal(t, "Connection pooling reuses sockets. Pool size should match load.", out)
	assert.Less(t, ratio, 1.0)
	assert.NotContains(t, out, "weather")
}

func TestCompressSelectiveKeepsFullyRelevantText(t *testing.T) {
	c := NewCompressor(config.CompressConfig{Method: "selective", MaxTokens: 50, Encoding: "no_such_encoding"}, nil)
	text := "Connection pooling reuses sockets. Pool size should match load."

	out, ratio := c.Compress(text, "connection pool")
	assert.Equal(t, text, out, "every sentence matched, text must come through unchanged")
	assert.Equal(t, 1.0, ratio)
}

func TestCompressSelectiveHonorsBudget(t *testing.T) {
	c := NewCompressor(config.CompressConfig{Method: "selective", MaxTokens: 4, Encoding: "no_such_encoding"}, nil)
	text := "Connection pooling reuses sockets. Pool size should match load."

	out, ratio := c.Compress(text, "connection pool")
	assert.Equal(t, "Connection pooling reuses sockets.", out)
	assert.Less(t, ratio, 1.0)
}

func TestCompressSelectiveFallsBackToTruncate(t *testing.T) {
	c := NewCompressor(config.CompressConfig{Method: "selective", MaxTokens: 3, Encoding: "no_such_encoding"}, nil)

	// No sentence shares a term with the query, so the head survives instead.
	out, ratio := c.Compress("one two three four five", "quantum entanglement")
	assert.Equal(t, "one two three", out)
	assert.InDelta(t, 0.6, ratio, 1e-12)
}

func TestCompressAll(t *testing.T) {
	c := NewCompressor(config.CompressConfig{MaxTokens: 2, Encoding: "no_such_encoding"}, nil)
	cands := []schema.Candidate{
		{ID: "a", Text: "fits"},
		{ID: "b", Text: "this one gets cut"},
	}
	cut := c.CompressAll(cands, "anything")
	require.Equal(t, 1, cut)
	assert.Equal(t, "fits", cands[0].Text)
	assert.Equal(t, "this one", cands[1].Text)
}
