package ranking

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sitequery-ai/search-orchestrator/internal/llm"
	"github.com/sitequery-ai/search-orchestrator/internal/model"
)

// Mode selects the scoring strategy.
type Mode string

const (
	// ModeRelevance scores how well an item answers the query.
	ModeRelevance Mode = "relevance"

	// ModeWho scores how likely the item's site is to be able to answer
	// the query, used for "who can answer this" routing.
	ModeWho Mode = "who"
)

// Cost is the spend of one scoring call.
type Cost struct {
	TokensIn  int
	TokensOut int
}

// Scorer scores one candidate against a query. Scores are in [0, 100].
type Scorer interface {
	Mode() Mode
	Score(ctx context.Context, query string, item model.CandidateItem) (float64, Cost, error)
}

// LLMScorer scores candidates by asking an LLM for a 0-100 judgment.
type LLMScorer struct {
	client llm.Client
	mode   Mode
	model  string
}

// NewLLMScorer creates a scorer for the given mode.
func NewLLMScorer(client llm.Client, mode Mode, modelName string) *LLMScorer {
	return &LLMScorer{client: client, mode: mode, model: modelName}
}

// Mode returns the scoring mode.
func (s *LLMScorer) Mode() Mode { return s.mode }

// Score asks the LLM to judge the candidate.
func (s *LLMScorer) Score(ctx context.Context, query string, item model.CandidateItem) (float64, Cost, error) {
	resp, err := s.client.Complete(ctx, &llm.CompletionRequest{
		Model: s.model,
		Messages: []llm.ChatMessage{
			{Role: "user", Content: s.prompt(query, item)},
		},
		MaxTokens: 8,
	})
	if err != nil {
		return 0, Cost{}, err
	}
	cost := Cost{TokensIn: resp.TokensIn, TokensOut: resp.TokensOut}

	score, err := parseScore(resp.Content)
	if err != nil {
		return 0, cost, fmt.Errorf("unparseable score %q: %w", resp.Content, err)
	}
	return score, cost, nil
}

func (s *LLMScorer) prompt(query string, item model.CandidateItem) string {
	switch s.mode {
	case ModeWho:
		return fmt.Sprintf(
			"A user asked: %q\nA site %q offers an item named %q.\n"+
				"On a scale of 0 to 100, how likely is this site to be able to answer the question? Reply with only the number.",
			query, item.Site, item.Name)
	default:
		return fmt.Sprintf(
			"Query: %q\nItem: %q (%s)\n"+
				"On a scale of 0 to 100, how relevant is this item to the query? Reply with only the number.",
			query, item.Name, item.URL)
	}
}

// RetrievalScorer reuses the backend's retrieval proximity as the score.
// Used when no LLM is configured.
type RetrievalScorer struct{}

// Mode returns the scoring mode.
func (RetrievalScorer) Mode() Mode { return ModeRelevance }

// Score maps the retrieval score, a proximity in (0, 1], onto [0, 100].
func (RetrievalScorer) Score(_ context.Context, _ string, item model.CandidateItem) (float64, Cost, error) {
	score := item.RetrievalScore * 100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, Cost{}, nil
}

// parseScore extracts the leading number from an LLM reply and clamps it
// to [0, 100].
func parseScore(content string) (float64, error) {
	fields := strings.Fields(strings.TrimSpace(content))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty response")
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "."), 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	if n > 100 {
		n = 100
	}
	return n, nil
}
