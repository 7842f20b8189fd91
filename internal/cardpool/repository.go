package cardpool

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/models"
)

// Repository is the card availability ledger: the single source of truth
// for which pool entries are still undrafted. Availability is a plain
// boolean column claimed with a conditional UPDATE, never a derived set.
type Repository struct {
	db    *sql.DB
	cache *DuplicateCache
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db:    db,
		cache: NewDuplicateCache(),
	}
}

func (r *Repository) GetEntry(ctx context.Context, id uuid.UUID) (*models.CardPoolEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, pool_id, name, color_identity, cost, rating, drafted, created_at
		FROM card_pool_entries
		WHERE id = $1`, id)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get card pool entry: %w", err)
	}
	return entry, nil
}

// ListAvailableByPool returns all undrafted entries in a pool ordered by
// rating descending, entry ID ascending. The secondary ordering keeps the
// auto-draft recommender deterministic across equal ratings.
func (r *Repository) ListAvailableByPool(ctx context.Context, poolID uuid.UUID) ([]models.CardPoolEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pool_id, name, color_identity, cost, rating, drafted, created_at
		FROM card_pool_entries
		WHERE pool_id = $1 AND drafted = FALSE
		ORDER BY rating DESC, id ASC`, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list available entries: %w", err)
	}
	defer rows.Close()

	var entries []models.CardPoolEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}

// ListEntriesByTeamPicks returns the entries already committed by a team
// in a session, used for color-affinity weighting.
func (r *Repository) ListEntriesByTeamPicks(ctx context.Context, sessionID, teamID uuid.UUID) ([]models.CardPoolEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.pool_id, e.name, e.color_identity, e.cost, e.rating, e.drafted, e.created_at
		FROM card_pool_entries e
		JOIN draft_slots s ON s.entry_id = e.id
		WHERE s.session_id = $1 AND s.team_id = $2
		ORDER BY s.overall_pick ASC`, sessionID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team picks: %w", err)
	}
	defer rows.Close()

	var entries []models.CardPoolEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate team picks: %w", err)
	}
	return entries, nil
}

// ClaimTx atomically marks an entry drafted inside an open transaction.
// claimed is false when another commit already took the entry; this is
// the exactly-one-winner check for concurrent submissions.
func (r *Repository) ClaimTx(ctx context.Context, tx *sql.Tx, entryID uuid.UUID) (cost int, claimed bool, err error) {
	err = tx.QueryRowContext(ctx, `
		UPDATE card_pool_entries
		SET drafted = TRUE
		WHERE id = $1 AND drafted = FALSE
		RETURNING cost`, entryID).Scan(&cost)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to claim entry: %w", err)
	}
	return cost, true, nil
}

// ReleaseTx reverses a claim inside an open transaction (undraft path).
func (r *Repository) ReleaseTx(ctx context.Context, tx *sql.Tx, entryID uuid.UUID) (cost int, released bool, err error) {
	err = tx.QueryRowContext(ctx, `
		UPDATE card_pool_entries
		SET drafted = FALSE
		WHERE id = $1 AND drafted = TRUE
		RETURNING cost`, entryID).Scan(&cost)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to release entry: %w", err)
	}
	return cost, true, nil
}

// AvailableCopies reports how many undrafted copies of a card name remain
// in a pool, serving duplicate lookups through the ledger's cache.
func (r *Repository) AvailableCopies(ctx context.Context, poolID uuid.UUID, name string) (int, error) {
	if count, ok := r.cache.Get(poolID, name); ok {
		return count, nil
	}

	counts, err := r.countAvailableByName(ctx, poolID)
	if err != nil {
		return 0, err
	}
	r.cache.Set(poolID, counts)
	return counts[name], nil
}

// InvalidatePool drops the cached duplicate counts for a pool. Every
// writer that changes availability must call this after its transaction
// commits; reads in between may serve pre-write counts.
func (r *Repository) InvalidatePool(poolID uuid.UUID) {
	r.cache.Invalidate(poolID)
}

func (r *Repository) countAvailableByName(ctx context.Context, poolID uuid.UUID) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, COUNT(*)
		FROM card_pool_entries
		WHERE pool_id = $1 AND drafted = FALSE
		GROUP BY name`, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to count available copies: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan copy count: %w", err)
		}
		counts[name] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate copy counts: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.CardPoolEntry, error) {
	var entry models.CardPoolEntry
	var identity string
	var createdAt time.Time
	if err := row.Scan(&entry.ID, &entry.PoolID, &entry.Name, &identity,
		&entry.Cost, &entry.Rating, &entry.Drafted, &createdAt); err != nil {
		return nil, err
	}
	entry.ColorIdentity = ParseColorIdentity(identity)
	entry.CreatedAt = createdAt
	return &entry, nil
}

// ParseColorIdentity decodes the compact column form ("WUB") into a
// ColorIdentity. Unknown letters are dropped.
func ParseColorIdentity(s string) models.ColorIdentity {
	var ci models.ColorIdentity
	for _, r := range s {
		c := models.Color(string(r))
		switch c {
		case models.ColorWhite, models.ColorBlue, models.ColorBlack, models.ColorRed, models.ColorGreen:
			ci = append(ci, c)
		}
	}
	return ci
}

// EncodeColorIdentity is the inverse of ParseColorIdentity.
func EncodeColorIdentity(ci models.ColorIdentity) string {
	var b strings.Builder
	for _, c := range ci {
		b.WriteString(string(c))
	}
	return b.String()
}
