package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const scorerSystemPrompt = `You are an expert at evaluating document relevance for search queries.
Rate each document on a scale from 0 to 10 based on how well it answers its query.

Guidelines:
- Score 0-2: Document is completely irrelevant
- Score 3-5: Document has some relevant information but doesn't directly answer the query
- Score 6-8: Document is relevant and partially answers the query
- Score 9-10: Document is highly relevant and directly answers the query

You MUST respond with ONLY a JSON array of numbers, one score per document, in input order. Do not include ANY other text.`

// OpenAIScorer scores the whole batch with a single chat completion against an
// OpenAI-compatible endpoint. Scores are normalized from the 0-10 prompt scale
// to [0,1].
type OpenAIScorer struct {
	client openai.Client
	model  string
}

func NewOpenAIScorer(apiKey, baseURL, model string) *OpenAIScorer {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIScorer{client: openai.NewClient(opts...), model: model}
}

func (s *OpenAIScorer) ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	var b strings.Builder
	for i, p := range pairs {
		fmt.Fprintf(&b, "Document %d\nQuery: %s\nText:\n%s\n\n", i+1, p.Query, p.Text)
	}
	fmt.Fprintf(&b, "Rate all %d documents. Respond with a JSON array of %d scores.", len(pairs), len(pairs))

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(scorerSystemPrompt),
			openai.UserMessage(b.String()),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("rerank: completion returned no choices")
	}
	raw, err := parseScores(resp.Choices[0].Message.Content, len(pairs))
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		if v < 0 {
			v = 0
		}
		if v > 10 {
			v = 10
		}
		out[i] = v / 10
	}
	return out, nil
}

var jsonArrayRe = regexp.MustCompile(`\[[^\[\]]*\]`)

// parseScores extracts a JSON numeric array from the model output, tolerating
// surrounding prose and markdown fences.
func parseScores(content string, want int) ([]float64, error) {
	text := strings.TrimSpace(content)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	candidate := text
	if !strings.HasPrefix(candidate, "[") {
		m := jsonArrayRe.FindString(text)
		if m == "" {
			return nil, fmt.Errorf("rerank: no score array in model output")
		}
		candidate = m
	}
	var scores []float64
	if err := json.Unmarshal([]byte(candidate), &scores); err != nil {
		return nil, fmt.Errorf("rerank: parse score array: %w", err)
	}
	if len(scores) != want {
		return nil, fmt.Errorf("rerank: model returned %d scores for %d documents", len(scores), want)
	}
	return scores, nil
}
