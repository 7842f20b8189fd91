package draft

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/models"
)

// ResolveDraftOrder generates the full serpentine slot sequence for a
// session. Round 1 follows the seed order, round 2 reverses it, round 3
// restores it, and so on. The function is pure and deterministic: the
// same seed order and round count always produce the same sequence, so a
// crashed session can regenerate its order instead of guessing.
func ResolveDraftOrder(sessionID uuid.UUID, seedOrder []uuid.UUID, rounds int) ([]models.DraftSlot, error) {
	if len(seedOrder) < 2 {
		return nil, fmt.Errorf("draft order requires at least 2 teams, got %d", len(seedOrder))
	}
	if rounds < 1 {
		return nil, fmt.Errorf("rounds must be at least 1, got %d", rounds)
	}

	numTeams := len(seedOrder)
	slots := make([]models.DraftSlot, 0, rounds*numTeams)

	overallPick := 1
	for round := 1; round <= rounds; round++ {
		// Even rounds reverse the seed order.
		isReversed := round%2 == 0

		var roundOrder []uuid.UUID
		if isReversed {
			roundOrder = make([]uuid.UUID, numTeams)
			for i, teamID := range seedOrder {
				roundOrder[numTeams-1-i] = teamID
			}
		} else {
			roundOrder = seedOrder
		}

		for pick, teamID := range roundOrder {
			slots = append(slots, models.DraftSlot{
				ID:          deterministicSlotID(sessionID, overallPick),
				SessionID:   sessionID,
				Round:       round,
				Pick:        pick + 1, // 1-indexed within the round
				OverallPick: overallPick,
				TeamID:      teamID,
			})
			overallPick++
		}
	}

	return slots, nil
}

// deterministicSlotID derives a stable slot UUID from the session and
// overall pick number, so regenerating the order after a crash yields
// identical slot identities.
func deterministicSlotID(sessionID uuid.UUID, overallPick int) uuid.UUID {
	return uuid.NewSHA1(sessionID, []byte(fmt.Sprintf("slot-%d", overallPick)))
}
