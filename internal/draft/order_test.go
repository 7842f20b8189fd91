package draft

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTeams(n int) []uuid.UUID {
	teams := make([]uuid.UUID, n)
	for i := range teams {
		teams[i] = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("team-%d", i)))
	}
	return teams
}

func TestResolveDraftOrder_SerpentineReversal(t *testing.T) {
	sessionID := uuid.New()
	teams := seedTeams(8)

	slots, err := ResolveDraftOrder(sessionID, teams, 3)
	require.NoError(t, err)
	require.Len(t, slots, 24)

	// Round 1 follows the seed order.
	for i := 0; i < 8; i++ {
		assert.Equal(t, teams[i], slots[i].TeamID)
		assert.Equal(t, 1, slots[i].Round)
		assert.Equal(t, i+1, slots[i].Pick)
		assert.Equal(t, i+1, slots[i].OverallPick)
	}

	// Round 2 reverses: overall pick 9 belongs to the last seed team.
	assert.Equal(t, teams[7], slots[8].TeamID)
	assert.Equal(t, 2, slots[8].Round)
	assert.Equal(t, 1, slots[8].Pick)
	assert.Equal(t, 9, slots[8].OverallPick)

	// The team picking 8th overall also picks 9th (snake turn-around).
	assert.Equal(t, slots[7].TeamID, slots[8].TeamID)

	// Round 2 runs the seed order backwards end to end.
	for i := 0; i < 8; i++ {
		assert.Equal(t, teams[7-i], slots[8+i].TeamID)
	}

	// Round 3 restores the seed order.
	for i := 0; i < 8; i++ {
		assert.Equal(t, teams[i], slots[16+i].TeamID)
	}
}

func TestResolveDraftOrder_EveryTeamPicksOncePerRound(t *testing.T) {
	sessionID := uuid.New()
	teams := seedTeams(5)

	slots, err := ResolveDraftOrder(sessionID, teams, 4)
	require.NoError(t, err)
	require.Len(t, slots, 20)

	counts := make(map[int]map[uuid.UUID]int)
	for _, s := range slots {
		if counts[s.Round] == nil {
			counts[s.Round] = make(map[uuid.UUID]int)
		}
		counts[s.Round][s.TeamID]++
	}
	for round := 1; round <= 4; round++ {
		require.Len(t, counts[round], 5, "round %d", round)
		for teamID, n := range counts[round] {
			assert.Equal(t, 1, n, "round %d team %s", round, teamID)
		}
	}
}

func TestResolveDraftOrder_Deterministic(t *testing.T) {
	sessionID := uuid.New()
	teams := seedTeams(4)

	first, err := ResolveDraftOrder(sessionID, teams, 6)
	require.NoError(t, err)
	second, err := ResolveDraftOrder(sessionID, teams, 6)
	require.NoError(t, err)

	// Identical inputs regenerate identical slots, IDs included.
	assert.Equal(t, first, second)
}

func TestResolveDraftOrder_SlotIDsScopedToSession(t *testing.T) {
	teams := seedTeams(4)

	a, err := ResolveDraftOrder(uuid.New(), teams, 1)
	require.NoError(t, err)
	b, err := ResolveDraftOrder(uuid.New(), teams, 1)
	require.NoError(t, err)

	for i := range a {
		assert.NotEqual(t, a[i].ID, b[i].ID)
	}
}

func TestResolveDraftOrder_RejectsBadInput(t *testing.T) {
	sessionID := uuid.New()

	_, err := ResolveDraftOrder(sessionID, seedTeams(1), 3)
	assert.Error(t, err)

	_, err = ResolveDraftOrder(sessionID, seedTeams(4), 0)
	assert.Error(t, err)
}
