// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sitequery-ai/search-orchestrator/internal/middleware"
	"github.com/sitequery-ai/search-orchestrator/internal/model"
	"github.com/sitequery-ai/search-orchestrator/internal/ranking"
	"github.com/sitequery-ai/search-orchestrator/internal/service"
	"github.com/sitequery-ai/search-orchestrator/pkg/logger"
)

// AskHandler handles query endpoints.
type AskHandler struct {
	queries *service.QueryHandler
	logger  *logger.Logger
}

// NewAskHandler creates a new query handler.
func NewAskHandler(queries *service.QueryHandler, log *logger.Logger) *AskHandler {
	return &AskHandler{
		queries: queries,
		logger:  log,
	}
}

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	Query      string         `json:"query"`
	Site       string         `json:"site"`
	PriorTurns []string       `json:"prior_turns,omitempty"`
	Mode       string         `json:"mode,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

// Ask handles POST /api/v1/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateQueryText(req.Query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateSite(req.Site); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := &model.Query{
		Text:       req.Query,
		Site:       req.Site,
		PriorTurns: req.PriorTurns,
		Params:     req.Params,
	}
	answer, err := h.queries.Handle(ctx, q, service.Strategy{Mode: ranking.Mode(req.Mode)})
	if err != nil {
		var cfgErr *model.ConfigurationError
		var capErr *model.CapacityError
		switch {
		case errors.As(err, &cfgErr):
			writeError(w, http.StatusBadRequest, cfgErr.Error())
			return
		case errors.As(err, &capErr):
			// The answer was produced; only recording the exchange was
			// rejected. Return the answer alongside the rejection so
			// the completed pipeline work is not thrown away.
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":  capErr.Error(),
				"answer": answer,
			})
			return
		case errors.Is(err, model.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		default:
			h.logger.Error("query failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, answer)
}
