package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftSlot is one (team, round, overall-pick) position in the draft
// order. Slots are generated once per session and never reordered.
// A filled slot carries its Pick inline: EntryID and PickedAt are set
// exactly once, and cleared only by an administrative undraft.
type DraftSlot struct {
	ID          uuid.UUID  `json:"id"`
	SessionID   uuid.UUID  `json:"session_id"`
	Round       int        `json:"round"`
	Pick        int        `json:"pick"`         // pick number within the round
	OverallPick int        `json:"overall_pick"` // 1-based across the session
	TeamID      uuid.UUID  `json:"team_id"`
	EntryID     *uuid.UUID `json:"entry_id,omitempty"` // nil until picked
	PickedAt    *time.Time `json:"picked_at,omitempty"`
}

func (s *DraftSlot) Filled() bool {
	return s.EntryID != nil
}

// Pick is the committed result of a slot.
type Pick struct {
	SlotID      uuid.UUID `json:"slot_id"`
	SessionID   uuid.UUID `json:"session_id"`
	Round       int       `json:"round"`
	Pick        int       `json:"pick"`
	OverallPick int       `json:"overall_pick"`
	TeamID      uuid.UUID `json:"team_id"`
	EntryID     uuid.UUID `json:"entry_id"`
	Cost        int       `json:"cost"`
	CommittedAt time.Time `json:"committed_at"`
}
