package draft

import (
	"time"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/models"
)

// CreateSessionRequest represents a request to create a new draft session
type CreateSessionRequest struct {
	ID       uuid.UUID              `json:"id"`
	LeagueID uuid.UUID              `json:"league_id"`
	Settings models.SessionSettings `json:"settings"`
}

// SubmitPickRequest represents one team's attempt to claim a card for
// the slot currently on the clock.
type SubmitPickRequest struct {
	SessionID   uuid.UUID `json:"session_id"`
	TeamID      uuid.UUID `json:"team_id"`
	EntryID     uuid.UUID `json:"entry_id"`
	AutoDrafted bool      `json:"auto_drafted"`
}

// NextDeadline represents the next pick deadline across all sessions
type NextDeadline struct {
	SessionID uuid.UUID  `json:"session_id"`
	Deadline  *time.Time `json:"deadline"`
}

// SessionState is the full reconnect snapshot: the session, its slot
// sequence, and remaining budgets keyed by team.
type SessionState struct {
	Session    *models.DraftSession `json:"session"`
	Slots      []models.DraftSlot   `json:"slots"`
	Budgets    map[uuid.UUID]int    `json:"budgets"`
	OnTheClock *models.DraftSlot    `json:"on_the_clock,omitempty"`
}
