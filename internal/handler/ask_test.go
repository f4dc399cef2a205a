package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
	"github.com/sitequery-ai/search-orchestrator/internal/ranking"
	"github.com/sitequery-ai/search-orchestrator/internal/retrieval"
	"github.com/sitequery-ai/search-orchestrator/internal/service"
	"github.com/sitequery-ai/search-orchestrator/internal/store"
	"github.com/sitequery-ai/search-orchestrator/pkg/logger"
)

type fixedBackend struct {
	items []model.CandidateItem
}

func (fixedBackend) Name() string          { return "fixed" }
func (fixedBackend) CanHandle(string) bool { return true }
func (b fixedBackend) Retrieve(context.Context, string, string, int) ([]model.CandidateItem, error) {
	return b.items, nil
}

type noMapper struct{}

func (noMapper) InferItemType(string) string  { return "" }
func (noMapper) SitesForType(string) []string { return nil }

func askRouter(t *testing.T, items []model.CandidateItem) *chi.Mux {
	t.Helper()
	router := retrieval.NewRouter(noMapper{}, retrieval.RouterConfig{}, nil)
	router.Register(fixedBackend{items: items})
	engines := map[ranking.Mode]*ranking.Engine{
		ranking.ModeRelevance: ranking.NewEngine(ranking.RetrievalScorer{}, ranking.EngineConfig{}, nil, nil),
	}
	conversations := service.NewConversationService(store.NewMemoryStore(), 100, logger.NewNop())
	queries := service.NewQueryHandler(service.NoopDecontextualizer{}, router, engines, conversations, service.QueryHandlerConfig{}, logger.NewNop())

	h := NewAskHandler(queries, logger.NewNop())
	r := chi.NewRouter()
	r.Post("/api/v1/ask", h.Ask)
	return r
}

func sampleItems(n int) []model.CandidateItem {
	items := make([]model.CandidateItem, n)
	for i := range items {
		items[i] = model.CandidateItem{
			URL:            fmt.Sprintf("https://example.com/%d", i),
			Name:           fmt.Sprintf("item %d", i),
			Site:           "example.com",
			RetrievalScore: 0.9,
			Source:         "fixed",
		}
	}
	return items
}

func TestAsk(t *testing.T) {
	r := askRouter(t, sampleItems(2))

	body := bytes.NewBufferString(`{"query": "blue mugs", "site": "example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var answer service.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, service.StateComplete, answer.State)
	assert.Len(t, answer.Results, 2)
}

func TestAskMissingQuery(t *testing.T) {
	r := askRouter(t, nil)

	body := bytes.NewBufferString(`{"site": "example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskMissingSite(t *testing.T) {
	r := askRouter(t, nil)

	body := bytes.NewBufferString(`{"query": "mugs"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskBadParamType(t *testing.T) {
	r := askRouter(t, sampleItems(1))

	body := bytes.NewBufferString(`{"query": "mugs", "site": "example.com", "params": {"limit": "lots"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskUnknownMode(t *testing.T) {
	r := askRouter(t, sampleItems(1))

	body := bytes.NewBufferString(`{"query": "mugs", "site": "example.com", "mode": "sideways"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskZeroMatches(t *testing.T) {
	r := askRouter(t, nil)

	body := bytes.NewBufferString(`{"query": "mugs", "site": "example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var answer service.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, service.StateComplete, answer.State)
	assert.Empty(t, answer.Results)
}

func TestAskCapacityStillReturnsAnswer(t *testing.T) {
	router := retrieval.NewRouter(noMapper{}, retrieval.RouterConfig{}, nil)
	router.Register(fixedBackend{items: sampleItems(2)})
	engines := map[ranking.Mode]*ranking.Engine{
		ranking.ModeRelevance: ranking.NewEngine(ranking.RetrievalScorer{}, ranking.EngineConfig{}, nil, nil),
	}
	conversations := service.NewConversationService(store.NewMemoryStore(), 1, logger.NewNop())
	session, err := conversations.Create(context.Background(), "user-1", "User One", "", nil, false)
	require.NoError(t, err)
	queries := service.NewQueryHandler(service.NoopDecontextualizer{}, router, engines, conversations, service.QueryHandlerConfig{}, logger.NewNop())

	h := NewAskHandler(queries, logger.NewNop())
	r := chi.NewRouter()
	r.Post("/api/v1/ask", h.Ask)

	body := bytes.NewBufferString(fmt.Sprintf(
		`{"query": "blue mugs", "site": "example.com", "params": {"conversation_id": %q}}`, session.ID()))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// The exchange does not fit the session queue, but the answer was
	// already produced and must not be discarded.
	require.Equal(t, http.StatusTooManyRequests, rec.Code, rec.Body.String())

	var resp struct {
		Error  string          `json:"error"`
		Answer *service.Answer `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
	require.NotNil(t, resp.Answer)
	assert.Equal(t, service.StateComplete, resp.Answer.State)
	assert.Len(t, resp.Answer.Results, 2)
}
