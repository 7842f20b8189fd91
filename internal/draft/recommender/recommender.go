// Package recommender computes the card a team would draft automatically
// when its turn window expires. It is a pure function of its inputs: no
// clocks, no randomness, no side effects, so previews and audits are
// reproducible.
package recommender

import (
	"errors"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/models"
)

// TopCandidates is how many of the highest-rated available entries feed
// the color affinity totals.
const TopCandidates = 50

// affinityBase is the per-pick multiplier rewarding colors the team has
// already drafted. Kept close to 1 so momentum nudges rather than locks.
const affinityBase = 1.01

// ErrNoEligibleCard means no available entry satisfies budget and
// availability. Terminal for the team's turn; callers must distinguish it
// from infrastructure failures.
var ErrNoEligibleCard = errors.New("no eligible card")

// Source identifies which stage of the algorithm produced a selection.
type Source string

const (
	SourceManualQueue   Source = "manual_queue"
	SourceColorAffinity Source = "color_affinity"
)

// Input carries everything the algorithm consults.
type Input struct {
	TeamID      uuid.UUID
	Budget      int
	ManualQueue []models.QueueEntry
	Available   []models.CardPoolEntry // currently undrafted entries
	TeamPicks   []models.CardPoolEntry // entries the team has already committed
}

// Recommendation is the selection plus the diagnostics that justify it.
// The diagnostics are part of the contract: identical inputs must yield
// an identical Recommendation, including totals and modifiers.
type Recommendation struct {
	Entry          models.CardPoolEntry      `json:"entry"`
	Source         Source                    `json:"source"`
	DominantColor  models.Color              `json:"dominant_color,omitempty"`
	ColorTotals    map[models.Color]float64  `json:"color_totals,omitempty"`
	ColorModifiers map[models.Color]float64  `json:"color_modifiers,omitempty"`
}

// Recommend selects the entry a team would auto-draft.
//
// The manual queue wins when any of its entries is still available and
// affordable. Otherwise the top-rated available entries are scored per
// color, weighted by how often the team has already drafted that color,
// and the best affordable card of the dominant color is compared against
// the best affordable colorless card on raw rating.
func Recommend(in Input) (*Recommendation, error) {
	available := sortedByRating(in.Available)

	if entry, ok := firstEligibleFromQueue(in.ManualQueue, available, in.Budget); ok {
		return &Recommendation{
			Entry:  *entry,
			Source: SourceManualQueue,
		}, nil
	}

	totals := colorTotals(available)
	modifiers := colorModifiers(in.TeamPicks)
	dominant := dominantColor(totals, modifiers)

	bestColored := bestAffordable(available, in.Budget, func(e *models.CardPoolEntry) bool {
		return e.ColorIdentity.Contains(dominant)
	})
	bestColorless := bestAffordable(available, in.Budget, func(e *models.CardPoolEntry) bool {
		return e.ColorIdentity.Colorless()
	})

	// Ties prefer the colored card.
	var chosen *models.CardPoolEntry
	switch {
	case bestColored != nil && bestColorless != nil:
		if bestColorless.Rating > bestColored.Rating {
			chosen = bestColorless
		} else {
			chosen = bestColored
		}
	case bestColored != nil:
		chosen = bestColored
	case bestColorless != nil:
		chosen = bestColorless
	default:
		return nil, ErrNoEligibleCard
	}

	return &Recommendation{
		Entry:          *chosen,
		Source:         SourceColorAffinity,
		DominantColor:  dominant,
		ColorTotals:    totals,
		ColorModifiers: modifiers,
	}, nil
}

// sortedByRating orders entries rating-descending with entry ID as a
// stable deterministic tie-break.
func sortedByRating(entries []models.CardPoolEntry) []models.CardPoolEntry {
	sorted := make([]models.CardPoolEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Rating != sorted[j].Rating {
			return sorted[i].Rating > sorted[j].Rating
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}

func firstEligibleFromQueue(queue []models.QueueEntry, available []models.CardPoolEntry, budget int) (*models.CardPoolEntry, bool) {
	if len(queue) == 0 {
		return nil, false
	}

	ordered := make([]models.QueueEntry, len(queue))
	copy(ordered, queue)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

	byID := make(map[uuid.UUID]*models.CardPoolEntry, len(available))
	for i := range available {
		byID[available[i].ID] = &available[i]
	}

	for _, q := range ordered {
		entry, ok := byID[q.EntryID]
		if !ok {
			continue // drafted or never in this pool
		}
		if entry.Cost > budget {
			continue
		}
		return entry, true
	}
	return nil, false
}

// colorTotals sums rating scores per color over the top candidates.
// Entries must already be sorted rating-descending.
func colorTotals(sorted []models.CardPoolEntry) map[models.Color]float64 {
	top := sorted
	if len(top) > TopCandidates {
		top = top[:TopCandidates]
	}

	totals := make(map[models.Color]float64, len(models.ColorPriority))
	for _, c := range models.ColorPriority {
		totals[c] = 0
	}
	for _, entry := range top {
		for _, c := range models.ColorPriority {
			if entry.ColorIdentity.Contains(c) {
				totals[c] += entry.Rating
			}
		}
	}
	return totals
}

func colorModifiers(picks []models.CardPoolEntry) map[models.Color]float64 {
	modifiers := make(map[models.Color]float64, len(models.ColorPriority))
	for _, c := range models.ColorPriority {
		count := 0
		for _, p := range picks {
			if p.ColorIdentity.Contains(c) {
				count++
			}
		}
		modifiers[c] = math.Pow(affinityBase, float64(count))
	}
	return modifiers
}

// dominantColor is the argmax of total*modifier, ties broken by the fixed
// color priority ordering.
func dominantColor(totals, modifiers map[models.Color]float64) models.Color {
	dominant := models.ColorPriority[0]
	best := totals[dominant] * modifiers[dominant]
	for _, c := range models.ColorPriority[1:] {
		weighted := totals[c] * modifiers[c]
		if weighted > best {
			dominant = c
			best = weighted
		}
	}
	return dominant
}

// bestAffordable returns the highest-rated entry matching the filter that
// fits the budget. Entries must already be sorted rating-descending.
func bestAffordable(sorted []models.CardPoolEntry, budget int, match func(*models.CardPoolEntry) bool) *models.CardPoolEntry {
	for i := range sorted {
		entry := &sorted[i]
		if entry.Cost > budget {
			continue
		}
		if match(entry) {
			return entry
		}
	}
	return nil
}
