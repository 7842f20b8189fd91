package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/draft"
	"github.com/manadraft/league/internal/models"
	"github.com/rs/zerolog/log"
)

// StateProvider supplies reconnect snapshots. The draft app satisfies
// this directly; the gateway never reaches into the database itself.
type StateProvider interface {
	GetSessionState(ctx context.Context, sessionID uuid.UUID) (*draft.SessionState, error)
	ListActiveSessions(ctx context.Context) ([]models.DraftSession, error)
}

// SessionStateResponse is the reconnect snapshot plus derived timer info
type SessionStateResponse struct {
	*draft.SessionState
	TimeRemainingSec *int `json:"time_remaining_sec,omitempty"`
}

// SessionSummary represents one active session in the listing endpoint
type SessionSummary struct {
	SessionID   string     `json:"session_id"`
	LeagueID    string     `json:"league_id"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CurrentSlot int        `json:"current_slot"`
	TotalTeams  int        `json:"total_teams"`
	TotalRounds int        `json:"total_rounds"`
}

// StateHandler handles HTTP requests for session state
type StateHandler struct {
	stateProvider StateProvider
}

func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetSessionState handles GET /api/sessions/{id}/state
func (h *StateHandler) HandleGetSessionState(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid session ID format", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.GetSessionState(r.Context(), sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to get session state")
		http.Error(w, "Failed to get session state", http.StatusInternalServerError)
		return
	}

	response := SessionStateResponse{SessionState: state}
	if state.Session.NextDeadline != nil {
		remaining := int(time.Until(*state.Session.NextDeadline).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		response.TimeRemainingSec = &remaining
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("failed to encode session state response")
	}
}

// HandleGetActiveSessions handles GET /api/sessions/active
func (h *StateHandler) HandleGetActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.stateProvider.ListActiveSessions(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list active sessions")
		http.Error(w, "Failed to list active sessions", http.StatusInternalServerError)
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, SessionSummary{
			SessionID:   s.ID.String(),
			LeagueID:    s.LeagueID.String(),
			Status:      string(s.Status),
			StartedAt:   s.StartedAt,
			CurrentSlot: s.CurrentSlot,
			TotalTeams:  len(s.Settings.SeedOrder),
			TotalRounds: s.Settings.Rounds,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		log.Error().Err(err).Msg("failed to encode active sessions response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions/active", h.HandleGetActiveSessions)
	mux.HandleFunc("GET /api/sessions/{id}/state", h.HandleGetSessionState)
}
