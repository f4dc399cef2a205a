package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sitequery-ai/search-orchestrator/internal/middleware"
	"github.com/sitequery-ai/search-orchestrator/internal/model"
	"github.com/sitequery-ai/search-orchestrator/internal/service"
	"github.com/sitequery-ai/search-orchestrator/pkg/logger"
)

// ChatHandler handles conversation endpoints.
type ChatHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewChatHandler creates a new conversation handler.
func NewChatHandler(svc *service.ConversationService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// CreateConversationRequest is the body of POST /chat/create.
type CreateConversationRequest struct {
	Title        string                  `json:"title,omitempty"`
	Participants []model.ParticipantInfo `json:"participants,omitempty"`
	EnableAI     bool                    `json:"enable_ai,omitempty"`
}

// conversationResponse is the wire form of a session.
type conversationResponse struct {
	ConversationID string                  `json:"conversation_id"`
	CreatedAt      time.Time               `json:"created_at"`
	Participants   []model.ParticipantInfo `json:"participants"`
	MessageCount   int                     `json:"message_count"`
	Title          string                  `json:"title,omitempty"`
}

func toConversationResponse(s *model.ConversationSession) conversationResponse {
	return conversationResponse{
		ConversationID: s.ID(),
		CreatedAt:      s.CreatedAt(),
		Participants:   s.Participants(),
		MessageCount:   s.MessageCount(),
		Title:          s.Metadata()["title"],
	}
}

// Create handles POST /chat/create
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	userName := middleware.GetUserName(ctx)

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, p := range req.Participants {
		if err := middleware.ValidateParticipantID(p.ID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	session, err := h.service.Create(ctx, userID, userName, req.Title, req.Participants, req.EnableAI)
	if err != nil {
		var cfgErr *model.ConfigurationError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		h.logger.Error("failed to create conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, toConversationResponse(session))
}

// Get handles GET /chat/conversations/:id
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to load conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	writeJSON(w, http.StatusOK, toConversationResponse(session))
}

// List handles GET /chat/conversations
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	sessions, err := h.service.ListForUser(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	out := make([]conversationResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toConversationResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

// AddParticipantRequest is the body of POST /chat/conversations/:id/participants.
type AddParticipantRequest struct {
	Participant model.ParticipantInfo `json:"participant"`
}

// AddParticipant handles POST /chat/conversations/:id/participants
func (h *ChatHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AddParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateParticipantID(req.Participant.ID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.AddParticipant(ctx, conversationID, req.Participant); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveParticipant handles DELETE /chat/conversations/:id/participants/:participantID
func (h *ChatHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")
	participantID := chi.URLParam(r, "participantID")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.RemoveParticipant(ctx, conversationID, participantID); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to remove participant", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to remove participant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
