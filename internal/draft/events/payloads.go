package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a draft session event on the wire.
type EventType string

const (
	EventTypePickStarted   EventType = "PickStarted"
	EventTypePickMade      EventType = "PickMade"
	EventTypePickUndrafted EventType = "PickUndrafted"
	EventTypeDraftStarted  EventType = "DraftStarted"
	EventTypeDraftPaused   EventType = "DraftPaused"
	EventTypeDraftResumed  EventType = "DraftResumed"
	EventTypeDraftComplete EventType = "DraftCompleted"
)

// SessionEvent is the envelope shared by the outbox, the gateway, and
// the in-process hub. Data holds one of the payload types below.
type SessionEvent struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// PickStartedPayload is the payload for a PickStarted event
type PickStartedPayload struct {
	SlotID         string    `json:"slot_id"`
	TeamID         string    `json:"team_id"`
	Round          int       `json:"round"`
	Pick           int       `json:"pick"`
	OverallPick    int       `json:"overall_pick"`
	StartedAt      time.Time `json:"started_at"`
	TimeoutAt      time.Time `json:"timeout_at"`
	TimePerPickSec int       `json:"time_per_pick_sec"`
}

// PickMadePayload is the payload for a PickMade event
type PickMadePayload struct {
	SlotID      string    `json:"slot_id"`
	TeamID      string    `json:"team_id"`
	EntryID     string    `json:"entry_id"`
	CardName    string    `json:"card_name"`
	Round       int       `json:"round"`
	Pick        int       `json:"pick"`
	OverallPick int       `json:"overall_pick"`
	Cost        int       `json:"cost"`
	AutoDrafted bool      `json:"auto_drafted"`
	MadeAt      time.Time `json:"made_at"`
}

// PickUndraftedPayload is the payload for a PickUndrafted event
type PickUndraftedPayload struct {
	SlotID      string    `json:"slot_id"`
	TeamID      string    `json:"team_id"`
	EntryID     string    `json:"entry_id"`
	OverallPick int       `json:"overall_pick"`
	Refund      int       `json:"refund"`
	UndraftedAt time.Time `json:"undrafted_at"`
}

// DraftStartedPayload is the payload for a DraftStarted event
type DraftStartedPayload struct {
	SessionID   string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	TotalRounds int       `json:"total_rounds"`
	TotalPicks  int       `json:"total_picks"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	SessionID   string    `json:"session_id"`
	CompletedAt time.Time `json:"completed_at"`
	TotalPicks  int       `json:"total_picks"`
}

// DraftPausedPayload is the payload for a DraftPaused event
type DraftPausedPayload struct {
	SessionID string    `json:"session_id"`
	PausedAt  time.Time `json:"paused_at"`
	Reason    string    `json:"reason"`
}

// DraftResumedPayload is the payload for a DraftResumed event
type DraftResumedPayload struct {
	SessionID string    `json:"session_id"`
	ResumedAt time.Time `json:"resumed_at"`
}
