package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/budget"
	"github.com/manadraft/league/internal/cardpool"
	"github.com/manadraft/league/internal/draft"
	"github.com/manadraft/league/internal/draft/recommender"
	"github.com/manadraft/league/internal/models"
	"github.com/rs/zerolog/log"
)

// Handlers exposes the draft engine over JSON. Pick submissions go
// through the orchestrator so every committed pick re-arms the clock.
type Handlers struct {
	app   *draft.App
	orch  *draft.Orchestrator
	pool  *cardpool.Repository
	teams *budget.Repository
}

func NewHandlers(app *draft.App, orch *draft.Orchestrator, pool *cardpool.Repository, teams *budget.Repository) *Handlers {
	return &Handlers{
		app:   app,
		orch:  orch,
		pool:  pool,
		teams: teams,
	}
}

// RegisterRoutes registers the engine's JSON routes
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/start", h.handleStartSession)
	mux.HandleFunc("POST /api/sessions/{id}/pause", h.handlePauseSession)
	mux.HandleFunc("POST /api/sessions/{id}/resume", h.handleResumeSession)
	mux.HandleFunc("POST /api/sessions/{id}/cancel", h.handleCancelSession)
	mux.HandleFunc("POST /api/sessions/{id}/picks", h.handleSubmitPick)
	mux.HandleFunc("GET /api/sessions/{id}/autodraft", h.handlePreviewAutoDraft)
	mux.HandleFunc("DELETE /api/slots/{id}/pick", h.handleUndraftPick)
	mux.HandleFunc("GET /api/slots/{id}", h.handleGetSlot)
	mux.HandleFunc("GET /api/teams/{id}", h.handleGetTeam)
	mux.HandleFunc("PUT /api/teams/{id}/queue", h.handleUpdateQueue)
	mux.HandleFunc("GET /api/entries/{id}", h.handleGetEntry)
	mux.HandleFunc("GET /api/pools/{id}/copies", h.handleAvailableCopies)
}

func (h *Handlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req draft.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.app.CreateSession(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.app.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handlers) handleStartSession(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.orch.StartSession)
}

func (h *Handlers) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	session, err := h.orch.PauseSession(r.Context(), id, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handlers) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.orch.ResumeSession)
}

func (h *Handlers) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.app.CancelSession(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handlers) lifecycle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := fn(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handlers) handleSubmitPick(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		TeamID  uuid.UUID `json:"team_id"`
		EntryID uuid.UUID `json:"entry_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.TeamID == uuid.Nil || body.EntryID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "team_id and entry_id are required")
		return
	}

	pick, err := h.orch.SubmitPick(r.Context(), draft.SubmitPickRequest{
		SessionID: sessionID,
		TeamID:    body.TeamID,
		EntryID:   body.EntryID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pick)
}

func (h *Handlers) handlePreviewAutoDraft(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	teamIDStr := r.URL.Query().Get("team_id")
	teamID, err := uuid.Parse(teamIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid team_id is required")
		return
	}

	rec, err := h.app.PreviewAutoDraft(r.Context(), sessionID, teamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) handleUndraftPick(w http.ResponseWriter, r *http.Request) {
	slotID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	slot, err := h.app.UndraftPick(r.Context(), slotID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (h *Handlers) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	slotID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	slot, err := h.app.GetSlot(r.Context(), slotID)
	if err != nil {
		writeError(w, http.StatusNotFound, "slot not found")
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (h *Handlers) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	team, err := h.teams.GetTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *Handlers) handleUpdateQueue(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var queue []models.QueueEntry
	if err := json.NewDecoder(r.Body).Decode(&queue); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.teams.UpdateManualQueue(r.Context(), teamID, queue); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"entries": len(queue)})
}

func (h *Handlers) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.pool.GetEntry(r.Context(), entryID)
	if err != nil {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleAvailableCopies answers "how many copies of this card are left",
// served through the ledger's duplicate cache.
func (h *Handlers) handleAvailableCopies(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	count, err := h.pool.AvailableCopies(r.Context(), poolID, name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "available": count})
}

func pathUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(key))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+key)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps engine errors onto HTTP statuses. Contention
// and policy failures are client-visible conflicts; everything else is
// a 500 with the detail kept in the server log.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, draft.ErrNotYourTurn):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, draft.ErrCardUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, draft.ErrSlotAlreadyFilled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, draft.ErrInsufficientBudget):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, draft.ErrSessionNotActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, draft.ErrPickNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, recommender.ErrNoEligibleCard):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
