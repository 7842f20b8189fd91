package models

import (
	"time"

	"github.com/google/uuid"
)

// Team is a league franchise with a spendable Cubucks balance and an
// optional pre-set queue of preferred picks.
type Team struct {
	ID          uuid.UUID    `json:"id"`
	LeagueID    uuid.UUID    `json:"league_id"`
	Name        string       `json:"name"`
	Budget      int          `json:"budget"` // Cubucks remaining
	ManualQueue []QueueEntry `json:"manual_queue,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// QueueEntry is one position in a team's manual preference queue.
type QueueEntry struct {
	EntryID uuid.UUID `json:"entry_id"`
	Rank    int       `json:"rank"`
}
