package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/draft/recommender"
	"github.com/manadraft/league/internal/models"
	"github.com/rs/zerolog/log"
)

// errNoSlotOnClock signals that a timeout fired for a session with
// nothing left to pick: completed, paused, or already advanced.
var errNoSlotOnClock = errors.New("no slot on the clock")

// AutoPickStrategy selects the claim to submit when a team's pick
// window expires.
type AutoPickStrategy interface {
	SelectClaim(ctx context.Context, sessionID uuid.UUID) (SubmitPickRequest, error)
}

// StrategyApp defines what a strategy needs from the draft app
type StrategyApp interface {
	SlotOnClock(ctx context.Context, sessionID uuid.UUID) (*models.DraftSlot, error)
	PreviewAutoDraft(ctx context.Context, sessionID, teamID uuid.UUID) (*recommender.Recommendation, error)
}

// RecommenderStrategy drives auto-drafting through the color-affinity
// recommender, honoring the team's manual queue first.
type RecommenderStrategy struct {
	app StrategyApp
}

func NewRecommenderStrategy(app StrategyApp) *RecommenderStrategy {
	return &RecommenderStrategy{app: app}
}

// SelectClaim implements AutoPickStrategy.SelectClaim
func (s *RecommenderStrategy) SelectClaim(ctx context.Context, sessionID uuid.UUID) (SubmitPickRequest, error) {
	slot, err := s.app.SlotOnClock(ctx, sessionID)
	if err != nil {
		return SubmitPickRequest{}, fmt.Errorf("slot on clock: %w", err)
	}
	if slot == nil {
		return SubmitPickRequest{}, errNoSlotOnClock
	}

	rec, err := s.app.PreviewAutoDraft(ctx, sessionID, slot.TeamID)
	if err != nil {
		return SubmitPickRequest{}, err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("team_id", slot.TeamID.String()).
		Str("entry_id", rec.Entry.ID.String()).
		Str("source", string(rec.Source)).
		Str("dominant_color", string(rec.DominantColor)).
		Msg("auto-pick selected entry")

	return SubmitPickRequest{
		SessionID:   sessionID,
		TeamID:      slot.TeamID,
		EntryID:     rec.Entry.ID,
		AutoDrafted: true,
	}, nil
}
