package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle state of a draft session.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "NOT_STARTED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusPaused     SessionStatus = "PAUSED"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusCancelled  SessionStatus = "CANCELLED"
)

// SessionSettings holds JSONB configuration for a draft session.
type SessionSettings struct {
	Rounds         int         `json:"rounds"`
	TimePerPickSec int         `json:"time_per_pick_sec"`
	SeedOrder      []uuid.UUID `json:"seed_order"` // round-one team order
	PoolID         uuid.UUID   `json:"pool_id"`
}

// DraftSession is one draft event. CurrentSlot is the 1-based overall
// pick number of the slot currently on the clock; it advances
// monotonically except when an administrative undraft reopens an
// earlier slot. When it exceeds rounds*teams the session is complete.
type DraftSession struct {
	ID           uuid.UUID       `json:"id"`
	LeagueID     uuid.UUID       `json:"league_id"`
	Status       SessionStatus   `json:"status"`
	Settings     SessionSettings `json:"settings"`
	CurrentSlot  int             `json:"current_slot"`
	NextDeadline *time.Time      `json:"next_deadline,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (s *DraftSession) TotalSlots() int {
	return s.Settings.Rounds * len(s.Settings.SeedOrder)
}
