package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
	"github.com/sitequery-ai/search-orchestrator/internal/ranking"
	"github.com/sitequery-ai/search-orchestrator/internal/retrieval"
	"github.com/sitequery-ai/search-orchestrator/pkg/logger"
	"github.com/sitequery-ai/search-orchestrator/pkg/metrics"
)

// QueryState tracks a query through its lifecycle.
type QueryState string

const (
	StateReceived          QueryState = "received"
	StateDecontextualizing QueryState = "decontextualizing"
	StateRetrieving        QueryState = "retrieving"
	StateRanking           QueryState = "ranking"
	StateComplete          QueryState = "complete"

	// StateNoAnswer means the pipeline ran but nothing could be offered:
	// every backend failed or every scoring call failed. Distinct from a
	// complete query with zero matches.
	StateNoAnswer QueryState = "no_answer"
)

// Strategy selects per-query behavior on top of the request itself.
type Strategy struct {
	// Mode picks the scoring strategy. Empty means relevance.
	Mode ranking.Mode

	// ForceSite overrides the query's target site when set.
	ForceSite string
}

// Answer is the outcome of one orchestrated query.
type Answer struct {
	Query            string               `json:"query"`
	Decontextualized string               `json:"decontextualized,omitempty"`
	Site             string               `json:"site"`
	Mode             ranking.Mode         `json:"mode"`
	State            QueryState           `json:"state"`
	Results          []model.RankedResult `json:"results"`
	ElapsedMs        int64                `json:"elapsed_ms"`
}

// QueryHandlerConfig tunes the orchestration pipeline.
type QueryHandlerConfig struct {
	// RetrieveLimit is the default per-query candidate cap, overridable
	// by the "limit" request parameter. Zero means 20.
	RetrieveLimit int

	// DecontextualizeTimeout bounds the rewrite call. Zero means 5s.
	DecontextualizeTimeout time.Duration
}

// QueryHandler orchestrates a query through decontextualization,
// retrieval routing, and ranking. One handler serves many concurrent
// queries; all per-query state lives on the stack.
type QueryHandler struct {
	decon         Decontextualizer
	router        *retrieval.Router
	engines       map[ranking.Mode]*ranking.Engine
	conversations *ConversationService
	cfg           QueryHandlerConfig
	logger        *logger.Logger
}

// NewQueryHandler wires the pipeline. The conversation service may be
// nil when persistence is not configured.
func NewQueryHandler(decon Decontextualizer, router *retrieval.Router, engines map[ranking.Mode]*ranking.Engine, conversations *ConversationService, cfg QueryHandlerConfig, log *logger.Logger) *QueryHandler {
	if cfg.RetrieveLimit <= 0 {
		cfg.RetrieveLimit = 20
	}
	if cfg.DecontextualizeTimeout == 0 {
		cfg.DecontextualizeTimeout = 5 * time.Second
	}
	return &QueryHandler{
		decon:         decon,
		router:        router,
		engines:       engines,
		conversations: conversations,
		cfg:           cfg,
		logger:        log,
	}
}

// Handle runs one query through the pipeline. A no-answer outcome is a
// result, not an error: the returned Answer carries StateNoAnswer and
// err is nil. Errors are reserved for bad requests and persistence
// failures; when persistence fails the Answer is still returned
// alongside the error so callers can decide what to surface.
func (h *QueryHandler) Handle(ctx context.Context, q *model.Query, strat Strategy) (*Answer, error) {
	start := time.Now()
	state := StateReceived

	if q.Text == "" {
		return nil, &model.ConfigurationError{Field: "text", Reason: "query text is required"}
	}

	limit, err := q.IntParam("limit", h.cfg.RetrieveLimit)
	if err != nil {
		return nil, err
	}
	conversationID, err := q.StringParam("conversation_id", "")
	if err != nil {
		return nil, err
	}

	site := q.Site
	if strat.ForceSite != "" {
		site = strat.ForceSite
	}
	mode := strat.Mode
	if mode == "" {
		mode = ranking.ModeRelevance
	}
	engine, ok := h.engines[mode]
	if !ok {
		return nil, &model.ConfigurationError{Field: "mode", Reason: "no engine for mode " + string(mode)}
	}

	answer := &Answer{Query: q.Text, Site: site, Mode: mode}

	state = StateDecontextualizing
	q.Decontextualized = h.decontextualize(ctx, q)
	if q.Decontextualized != q.Text {
		answer.Decontextualized = q.Decontextualized
	}

	state = StateRetrieving
	candidates, err := h.router.Route(ctx, q.Effective(), site, limit)
	if err != nil {
		if errors.Is(err, model.ErrNoAnswer) {
			return h.finish(ctx, answer, StateNoAnswer, conversationID, start)
		}
		metrics.RecordQuery(string(mode), "error", time.Since(start).Seconds())
		return nil, err
	}
	if len(candidates) == 0 {
		answer.Results = []model.RankedResult{}
		return h.finish(ctx, answer, StateComplete, conversationID, start)
	}

	state = StateRanking
	ranked, _, err := engine.Rank(ctx, q.Effective(), candidates)
	if err != nil {
		if errors.Is(err, model.ErrNoAnswer) {
			return h.finish(ctx, answer, StateNoAnswer, conversationID, start)
		}
		metrics.RecordQuery(string(mode), "error", time.Since(start).Seconds())
		return nil, err
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	answer.Results = ranked

	h.logger.Debug("query pipeline complete",
		zap.String("state", string(state)),
		zap.Int("candidates", len(candidates)),
		zap.Int("ranked", len(ranked)))
	return h.finish(ctx, answer, StateComplete, conversationID, start)
}

// decontextualize rewrites the query against its prior turns. A rewrite
// failure degrades to the raw text rather than failing the query.
func (h *QueryHandler) decontextualize(ctx context.Context, q *model.Query) string {
	if len(q.PriorTurns) == 0 {
		return q.Text
	}
	dctx, cancel := context.WithTimeout(ctx, h.cfg.DecontextualizeTimeout)
	defer cancel()

	rewritten, err := h.decon.Decontextualize(dctx, q)
	if err != nil {
		h.logger.Warn("decontextualization failed, using raw query", zap.Error(err))
		return q.Text
	}
	return rewritten
}

// finish seals the answer and, when the query names a conversation,
// records the exchange (question plus answer) on the session.
func (h *QueryHandler) finish(ctx context.Context, answer *Answer, state QueryState, conversationID string, start time.Time) (*Answer, error) {
	answer.State = state
	answer.ElapsedMs = time.Since(start).Milliseconds()
	if answer.Results == nil {
		answer.Results = []model.RankedResult{}
	}
	metrics.RecordQuery(string(answer.Mode), string(state), time.Since(start).Seconds())

	if conversationID == "" || h.conversations == nil {
		return answer, nil
	}
	if err := h.conversations.AppendMessages(ctx, conversationID, 2); err != nil {
		h.logger.Warn("failed to record exchange",
			zap.String("session_id", conversationID),
			zap.Error(err))
		return answer, err
	}
	return answer, nil
}
