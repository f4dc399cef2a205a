package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitequery-ai/search-orchestrator/internal/llm"
	"github.com/sitequery-ai/search-orchestrator/internal/model"
)

// Decontextualizer rewrites a follow-up query into a standalone one using
// the prior turns of the conversation.
type Decontextualizer interface {
	Decontextualize(ctx context.Context, q *model.Query) (string, error)
}

// NoopDecontextualizer passes the query text through untouched. Used when
// no language model is configured.
type NoopDecontextualizer struct{}

func (NoopDecontextualizer) Decontextualize(_ context.Context, q *model.Query) (string, error) {
	return q.Text, nil
}

// LLMDecontextualizer resolves pronouns and elliptical references against
// the conversation history with a completion call. Queries without prior
// turns are returned as-is without touching the model.
type LLMDecontextualizer struct {
	client llm.Client
	model  string
}

// NewLLMDecontextualizer creates a decontextualizer over an LLM client.
// An empty model name uses the provider default.
func NewLLMDecontextualizer(client llm.Client, modelName string) *LLMDecontextualizer {
	return &LLMDecontextualizer{client: client, model: modelName}
}

const decontextualizePrompt = `You rewrite search queries so they stand alone.
Given the previous turns of a conversation and the latest query, rewrite the
latest query so it can be understood without the conversation. Resolve
pronouns and references to earlier turns. If the query is already
self-contained, return it unchanged. Respond with only the rewritten query.`

func (d *LLMDecontextualizer) Decontextualize(ctx context.Context, q *model.Query) (string, error) {
	if len(q.PriorTurns) == 0 {
		return q.Text, nil
	}

	var b strings.Builder
	b.WriteString(decontextualizePrompt)
	b.WriteString("\n\nPrevious turns:\n")
	for _, turn := range q.PriorTurns {
		fmt.Fprintf(&b, "- %s\n", turn)
	}
	fmt.Fprintf(&b, "\nLatest query: %s", q.Text)

	resp, err := d.client.Complete(ctx, &llm.CompletionRequest{
		Model: d.model,
		Messages: []llm.ChatMessage{
			{Role: "user", Content: b.String()},
		},
		MaxTokens: 256,
	})
	if err != nil {
		return "", fmt.Errorf("decontextualize: %w", err)
	}
	rewritten := strings.TrimSpace(resp.Content)
	if rewritten == "" {
		return q.Text, nil
	}
	return rewritten, nil
}
