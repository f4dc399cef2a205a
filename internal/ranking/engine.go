// Package ranking scores and orders retrieval candidates.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
	"github.com/sitequery-ai/search-orchestrator/pkg/metrics"
)

// State is the per-invocation ranking state.
type State string

const (
	StatePending State = "pending"
	StateScoring State = "scoring"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// EngineConfig tunes the ranking engine.
type EngineConfig struct {
	// Concurrency bounds simultaneous scoring calls, respecting
	// downstream rate limits. Zero means 4.
	Concurrency int

	// ScoreTimeout bounds each individual scoring call.
	ScoreTimeout time.Duration
}

// Engine ranks candidates with a pluggable scoring strategy. Each Rank
// call runs the state machine PENDING → SCORING → DONE | FAILED.
type Engine struct {
	scorer      Scorer
	concurrency int
	timeout     time.Duration
	recorder    *Recorder // optional
	logger      *zap.Logger
}

// NewEngine creates a ranking engine. The recorder may be nil; when set,
// every scored triple is appended to the audit log as a side channel.
func NewEngine(scorer Scorer, cfg EngineConfig, recorder *Recorder, logger *zap.Logger) *Engine {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	timeout := cfg.ScoreTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		scorer:      scorer,
		concurrency: concurrency,
		timeout:     timeout,
		recorder:    recorder,
		logger:      logger,
	}
}

// Mode returns the engine's scoring mode.
func (e *Engine) Mode() Mode { return e.scorer.Mode() }

// Rank scores all candidates and returns them in final order: descending
// score, ties preserving retrieval order. A candidate whose scoring call
// fails carries the sentinel score and is kept, so callers can tell
// "scored poorly" from "never scored". The call fails (state FAILED)
// only when every candidate failed to score.
func (e *Engine) Rank(ctx context.Context, query string, items []model.CandidateItem) ([]model.RankedResult, State, error) {
	state := StatePending
	if len(items) == 0 {
		return []model.RankedResult{}, StateDone, nil
	}

	state = StateScoring
	e.logger.Debug("scoring candidates",
		zap.String("mode", string(e.scorer.Mode())),
		zap.Int("candidates", len(items)))

	scores := make([]float64, len(items))
	failed := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, e.timeout)
			defer cancel()

			score, cost, err := e.scorer.Score(callCtx, query, item)
			if err != nil {
				scores[i] = model.ScoringFailed
				failed[i] = true
				metrics.RecordScoring(string(e.scorer.Mode()), "error")
				e.logger.Warn("scoring call failed",
					zap.String("url", item.URL),
					zap.Error(err))
				return nil
			}
			scores[i] = score
			metrics.RecordScoring(string(e.scorer.Mode()), "ok")
			metrics.ScoringTokens.Add(float64(cost.TokensIn + cost.TokensOut))
			if e.recorder != nil {
				e.recorder.Record(query, item.URL, e.scorer.Mode(), score)
			}
			return nil
		})
	}
	g.Wait()

	failures := 0
	for _, f := range failed {
		if f {
			failures++
		}
	}
	if failures == len(items) {
		state = StateFailed
		return nil, state, fmt.Errorf("all %d scoring calls failed: %w", failures, model.ErrNoAnswer)
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranked := make([]model.RankedResult, len(order))
	for rank, idx := range order {
		ranked[rank] = model.RankedResult{
			Item:  items[idx],
			Score: scores[idx],
			Rank:  rank + 1,
		}
	}

	state = StateDone
	return ranked, state, nil
}
