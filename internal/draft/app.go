package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/draft/events"
	"github.com/manadraft/league/internal/draft/recommender"
	"github.com/manadraft/league/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionRepository defines what the app layer needs from the session repository
type SessionRepository interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*models.DraftSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) (*models.DraftSession, error)
	FetchNextDeadline(ctx context.Context) (*NextDeadline, error)
	FetchSessionsDueForPick(ctx context.Context, limit int32) ([]uuid.UUID, error)
	UpdateNextDeadline(ctx context.Context, sessionID uuid.UUID, deadline *time.Time) error
	ClearNextDeadline(ctx context.Context, sessionID uuid.UUID) error
	CreateSlotsBatch(ctx context.Context, slots []models.DraftSlot) error
	ListActiveSessions(ctx context.Context) ([]models.DraftSession, error)
	GetSlotsBySession(ctx context.Context, sessionID uuid.UUID) ([]models.DraftSlot, error)
	GetSlot(ctx context.Context, slotID uuid.UUID) (*models.DraftSlot, error)
	GetSlotByOverallPick(ctx context.Context, sessionID uuid.UUID, overallPick int) (*models.DraftSlot, error)
	CountOpenSlots(ctx context.Context, sessionID uuid.UUID) (int, error)
	InsertOutbox(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) (uuid.UUID, error)
}

// PickCommitter defines what the app layer needs from the commit path
type PickCommitter interface {
	SubmitPick(ctx context.Context, req SubmitPickRequest) (*models.Pick, error)
	UndraftPick(ctx context.Context, slotID uuid.UUID) (*models.DraftSlot, error)
}

// PoolRepository defines what the app layer needs from the card availability ledger
type PoolRepository interface {
	ListAvailableByPool(ctx context.Context, poolID uuid.UUID) ([]models.CardPoolEntry, error)
	ListEntriesByTeamPicks(ctx context.Context, sessionID, teamID uuid.UUID) ([]models.CardPoolEntry, error)
}

// TeamRepository defines what the app layer needs from the budget ledger
type TeamRepository interface {
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	GetBalance(ctx context.Context, teamID uuid.UUID) (int, error)
}

// EventPublisher receives committed session events for in-process fan-out
type EventPublisher interface {
	Publish(event events.SessionEvent)
}

// App handles draft session business logic
type App struct {
	repo      SessionRepository
	committer PickCommitter
	pool      PoolRepository
	teams     TeamRepository
	hub       EventPublisher
}

func NewApp(repo SessionRepository, committer PickCommitter, pool PoolRepository, teams TeamRepository, hub EventPublisher) *App {
	return &App{
		repo:      repo,
		committer: committer,
		pool:      pool,
		teams:     teams,
		hub:       hub,
	}
}

// CreateSession creates a session and prepopulates its full serpentine
// slot order in the same call, so the order is fixed before anyone can
// pick.
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.DraftSession, error) {
	if err := a.validateCreateSessionRequest(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	slots, err := ResolveDraftOrder(req.ID, req.Settings.SeedOrder, req.Settings.Rounds)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve draft order: %w", err)
	}

	session, err := a.repo.CreateSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := a.repo.CreateSlotsBatch(ctx, slots); err != nil {
		return nil, fmt.Errorf("failed to prepopulate slots: %w", err)
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Int("rounds", req.Settings.Rounds).
		Int("teams", len(req.Settings.SeedOrder)).
		Int("slots", len(slots)).
		Msg("created draft session")
	return session, nil
}

func (a *App) GetSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	session, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	return session, nil
}

// StartSession moves a session onto the clock and emits DraftStarted.
func (a *App) StartSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	session, err := a.transitionStatus(ctx, id, models.SessionStatusInProgress)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, session.ID, events.EventTypeDraftStarted, events.DraftStartedPayload{
		SessionID:   session.ID.String(),
		StartedAt:   time.Now().UTC(),
		TotalRounds: session.Settings.Rounds,
		TotalPicks:  session.TotalSlots(),
	})
	return session, nil
}

// PauseSession freezes the clock. The orchestrator stops scheduling
// timeouts for paused sessions because FetchSessionsDueForPick only
// matches IN_PROGRESS rows.
func (a *App) PauseSession(ctx context.Context, id uuid.UUID, reason string) (*models.DraftSession, error) {
	session, err := a.transitionStatus(ctx, id, models.SessionStatusPaused)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, session.ID, events.EventTypeDraftPaused, events.DraftPausedPayload{
		SessionID: session.ID.String(),
		PausedAt:  time.Now().UTC(),
		Reason:    reason,
	})
	return session, nil
}

func (a *App) ResumeSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	current, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if current.Status != models.SessionStatusPaused {
		return nil, fmt.Errorf("can only resume paused sessions, current status is %s", current.Status)
	}

	session, err := a.transitionStatus(ctx, id, models.SessionStatusInProgress)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, session.ID, events.EventTypeDraftResumed, events.DraftResumedPayload{
		SessionID: session.ID.String(),
		ResumedAt: time.Now().UTC(),
	})
	return session, nil
}

func (a *App) CancelSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	return a.transitionStatus(ctx, id, models.SessionStatusCancelled)
}

func (a *App) transitionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) (*models.DraftSession, error) {
	current, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	if err := validateStatusTransition(current.Status, status); err != nil {
		return nil, fmt.Errorf("invalid status transition: %w", err)
	}

	session, err := a.repo.UpdateSessionStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update session status: %w", err)
	}

	log.Info().
		Str("session_id", id.String()).
		Str("from", string(current.Status)).
		Str("to", string(status)).
		Msg("session status changed")
	return session, nil
}

// TODO move to formal FSM
// validateStatusTransition validates if a status transition is allowed
func validateStatusTransition(currentStatus, newStatus models.SessionStatus) error {
	// Allow same status (no-op)
	if currentStatus == newStatus {
		return nil
	}

	allowedTransitions := map[models.SessionStatus][]models.SessionStatus{
		models.SessionStatusNotStarted: {models.SessionStatusInProgress, models.SessionStatusCancelled},
		models.SessionStatusInProgress: {models.SessionStatusPaused, models.SessionStatusCompleted, models.SessionStatusCancelled},
		models.SessionStatusPaused:     {models.SessionStatusInProgress, models.SessionStatusCancelled},
		models.SessionStatusCompleted:  {}, // No transitions allowed from completed
		models.SessionStatusCancelled:  {}, // No transitions allowed from cancelled
	}

	allowedNext, exists := allowedTransitions[currentStatus]
	if !exists {
		return fmt.Errorf("unknown current status: %s", currentStatus)
	}

	for _, allowed := range allowedNext {
		if newStatus == allowed {
			return nil
		}
	}

	return fmt.Errorf("transition from %s to %s is not allowed", currentStatus, newStatus)
}

// SubmitPick commits one pick, fans it out to in-process subscribers,
// and finalizes the session when the last slot fills.
func (a *App) SubmitPick(ctx context.Context, req SubmitPickRequest) (*models.Pick, error) {
	pick, err := a.committer.SubmitPick(ctx, req)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", req.SessionID.String()).
		Str("team_id", req.TeamID.String()).
		Str("entry_id", req.EntryID.String()).
		Int("overall_pick", pick.OverallPick).
		Int("cost", pick.Cost).
		Bool("auto_drafted", req.AutoDrafted).
		Msg("pick committed")

	a.publishToHub(req.SessionID, events.EventTypePickMade, events.PickMadePayload{
		SlotID:      pick.SlotID.String(),
		TeamID:      pick.TeamID.String(),
		EntryID:     pick.EntryID.String(),
		Round:       pick.Round,
		Pick:        pick.Pick,
		OverallPick: pick.OverallPick,
		Cost:        pick.Cost,
		AutoDrafted: req.AutoDrafted,
		MadeAt:      pick.CommittedAt,
	})

	if err := a.finalizeIfComplete(ctx, req.SessionID); err != nil {
		log.Error().Err(err).Str("session_id", req.SessionID.String()).Msg("failed to finalize session")
	}
	return pick, nil
}

// UndraftPick reverses a committed pick. Administrative path.
func (a *App) UndraftPick(ctx context.Context, slotID uuid.UUID) (*models.DraftSlot, error) {
	slot, err := a.committer.UndraftPick(ctx, slotID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", slot.SessionID.String()).
		Str("slot_id", slotID.String()).
		Int("overall_pick", slot.OverallPick).
		Msg("pick undrafted")

	a.publishToHub(slot.SessionID, events.EventTypePickUndrafted, events.PickUndraftedPayload{
		SlotID:      slot.ID.String(),
		TeamID:      slot.TeamID.String(),
		OverallPick: slot.OverallPick,
		UndraftedAt: time.Now().UTC(),
	})
	return slot, nil
}

// finalizeIfComplete marks the session completed once no open slots
// remain.
func (a *App) finalizeIfComplete(ctx context.Context, sessionID uuid.UUID) error {
	remaining, err := a.repo.CountOpenSlots(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to count open slots: %w", err)
	}
	if remaining > 0 {
		return nil
	}

	session, err := a.repo.UpdateSessionStatus(ctx, sessionID, models.SessionStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if err := a.repo.ClearNextDeadline(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear deadline on completion: %w", err)
	}

	log.Info().Str("session_id", sessionID.String()).Msg("draft session completed")

	a.emit(ctx, sessionID, events.EventTypeDraftComplete, events.DraftCompletedPayload{
		SessionID:   sessionID.String(),
		CompletedAt: time.Now().UTC(),
		TotalPicks:  session.TotalSlots(),
	})
	return nil
}

// GetSessionState assembles the reconnect snapshot.
func (a *App) GetSessionState(ctx context.Context, sessionID uuid.UUID) (*SessionState, error) {
	session, err := a.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	slots, err := a.repo.GetSlotsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load slots: %w", err)
	}

	budgets := make(map[uuid.UUID]int, len(session.Settings.SeedOrder))
	for _, teamID := range session.Settings.SeedOrder {
		balance, err := a.teams.GetBalance(ctx, teamID)
		if err != nil {
			return nil, fmt.Errorf("failed to load balance for team %s: %w", teamID, err)
		}
		budgets[teamID] = balance
	}

	state := &SessionState{
		Session: session,
		Slots:   slots,
		Budgets: budgets,
	}
	if session.Status == models.SessionStatusInProgress && session.CurrentSlot <= session.TotalSlots() {
		for i := range slots {
			if slots[i].OverallPick == session.CurrentSlot {
				state.OnTheClock = &slots[i]
				break
			}
		}
	}
	return state, nil
}

// PreviewAutoDraft runs the recommender against live state without
// committing anything.
func (a *App) PreviewAutoDraft(ctx context.Context, sessionID, teamID uuid.UUID) (*recommender.Recommendation, error) {
	session, err := a.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	input, err := a.buildRecommenderInput(ctx, session, teamID)
	if err != nil {
		return nil, err
	}
	return recommender.Recommend(*input)
}

func (a *App) buildRecommenderInput(ctx context.Context, session *models.DraftSession, teamID uuid.UUID) (*recommender.Input, error) {
	team, err := a.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("team not found: %w", err)
	}

	available, err := a.pool.ListAvailableByPool(ctx, session.Settings.PoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list available entries: %w", err)
	}

	picks, err := a.pool.ListEntriesByTeamPicks(ctx, session.ID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team picks: %w", err)
	}

	return &recommender.Input{
		TeamID:      teamID,
		Budget:      team.Budget,
		ManualQueue: team.ManualQueue,
		Available:   available,
		TeamPicks:   picks,
	}, nil
}

// SlotOnClock returns the slot the session cursor points at, or nil when
// the session has no open slot on the clock.
func (a *App) SlotOnClock(ctx context.Context, sessionID uuid.UUID) (*models.DraftSlot, error) {
	session, err := a.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if session.Status != models.SessionStatusInProgress || session.CurrentSlot > session.TotalSlots() {
		return nil, nil
	}
	return a.repo.GetSlotByOverallPick(ctx, sessionID, session.CurrentSlot)
}

func (a *App) ListActiveSessions(ctx context.Context) ([]models.DraftSession, error) {
	return a.repo.ListActiveSessions(ctx)
}

func (a *App) GetSlot(ctx context.Context, slotID uuid.UUID) (*models.DraftSlot, error) {
	return a.repo.GetSlot(ctx, slotID)
}

func (a *App) FetchNextDeadline(ctx context.Context) (*NextDeadline, error) {
	return a.repo.FetchNextDeadline(ctx)
}

func (a *App) FetchSessionsDueForPick(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	return a.repo.FetchSessionsDueForPick(ctx, limit)
}

func (a *App) UpdateNextDeadline(ctx context.Context, sessionID uuid.UUID, deadline *time.Time) error {
	return a.repo.UpdateNextDeadline(ctx, sessionID, deadline)
}

func (a *App) ClearNextDeadline(ctx context.Context, sessionID uuid.UUID) error {
	return a.repo.ClearNextDeadline(ctx, sessionID)
}

// EmitPickStarted stages and fans out the on-the-clock announcement for
// a slot. Called by the orchestrator when it arms a pick timer.
func (a *App) EmitPickStarted(ctx context.Context, session *models.DraftSession, slot *models.DraftSlot, deadline time.Time) {
	payload := events.PickStartedPayload{
		SlotID:         slot.ID.String(),
		TeamID:         slot.TeamID.String(),
		Round:          slot.Round,
		Pick:           slot.Pick,
		OverallPick:    slot.OverallPick,
		StartedAt:      time.Now().UTC(),
		TimeoutAt:      deadline,
		TimePerPickSec: session.Settings.TimePerPickSec,
	}
	a.emit(ctx, session.ID, events.EventTypePickStarted, payload)
}

// emit stages an event in the outbox for websocket delivery and mirrors
// it to the in-process hub. Outbox failures are logged, not fatal: the
// state change already committed.
func (a *App) emit(ctx context.Context, sessionID uuid.UUID, eventType events.EventType, payload any) {
	if _, err := a.repo.InsertOutbox(ctx, sessionID, string(eventType), payload); err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Str("event_type", string(eventType)).
			Msg("failed to stage outbox event")
	}
	a.publishToHub(sessionID, eventType, payload)
}

func (a *App) publishToHub(sessionID uuid.UUID, eventType events.EventType, payload any) {
	if a.hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal hub payload")
		return
	}
	a.hub.Publish(events.SessionEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func (a *App) validateCreateSessionRequest(req CreateSessionRequest) error {
	if req.LeagueID == uuid.Nil {
		return fmt.Errorf("league_id is required")
	}
	if req.Settings.Rounds <= 0 {
		return fmt.Errorf("rounds must be greater than 0")
	}
	if req.Settings.TimePerPickSec <= 0 {
		return fmt.Errorf("time_per_pick_sec must be greater than 0")
	}
	if len(req.Settings.SeedOrder) < 2 {
		return fmt.Errorf("seed order requires at least 2 teams")
	}
	if req.Settings.PoolID == uuid.Nil {
		return fmt.Errorf("pool_id is required")
	}

	seen := make(map[uuid.UUID]struct{}, len(req.Settings.SeedOrder))
	for _, teamID := range req.Settings.SeedOrder {
		if _, dup := seen[teamID]; dup {
			return fmt.Errorf("seed order contains team %s twice", teamID)
		}
		seen[teamID] = struct{}{}
	}
	return nil
}
