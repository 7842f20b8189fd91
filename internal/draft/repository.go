package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/models"
	"github.com/manadraft/league/internal/sqlutil"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `id, league_id, status, settings, current_slot, next_deadline, started_at, completed_at, created_at, updated_at`

func (r *Repository) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.DraftSession, error) {
	settingsBytes, err := json.Marshal(req.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session settings: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO draft_sessions (id, league_id, status, settings, current_slot)
		VALUES ($1, $2, $3, $4, 1)
		RETURNING `+sessionColumns,
		req.ID, req.LeagueID, models.SessionStatusNotStarted, settingsBytes)

	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM draft_sessions WHERE id = $1`, id)

	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// UpdateSessionStatus transitions the lifecycle column and stamps
// started_at / completed_at as a side effect of the matching statuses.
func (r *Repository) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) (*models.DraftSession, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE draft_sessions
		SET status = $2,
		    started_at = CASE WHEN $2 = 'IN_PROGRESS' THEN COALESCE(started_at, now()) ELSE started_at END,
		    completed_at = CASE WHEN $2 = 'COMPLETED' THEN now() ELSE NULL END,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+sessionColumns, id, status)

	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update session status: %w", err)
	}
	return session, nil
}

// FetchNextDeadline returns the soonest pick deadline across in-progress
// sessions, or nil when nothing is on the clock.
func (r *Repository) FetchNextDeadline(ctx context.Context) (*NextDeadline, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, next_deadline
		FROM draft_sessions
		WHERE status = 'IN_PROGRESS' AND next_deadline IS NOT NULL
		ORDER BY next_deadline ASC
		LIMIT 1`)

	var nd NextDeadline
	var deadline sql.NullTime
	err := row.Scan(&nd.SessionID, &deadline)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next deadline: %w", err)
	}
	nd.Deadline = sqlutil.FromSqlTime(deadline)
	return &nd, nil
}

// FetchSessionsDueForPick returns sessions whose deadline has elapsed,
// oldest first.
func (r *Repository) FetchSessionsDueForPick(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id
		FROM draft_sessions
		WHERE status = 'IN_PROGRESS' AND next_deadline IS NOT NULL AND next_deadline <= now()
		ORDER BY next_deadline ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions due for pick: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due sessions: %w", err)
	}
	return ids, nil
}

func (r *Repository) UpdateNextDeadline(ctx context.Context, sessionID uuid.UUID, deadline *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE draft_sessions
		SET next_deadline = $2, updated_at = now()
		WHERE id = $1`, sessionID, sqlutil.ToSqlTime(deadline))
	if err != nil {
		return fmt.Errorf("failed to update next deadline: %w", err)
	}
	return nil
}

func (r *Repository) ClearNextDeadline(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE draft_sessions
		SET next_deadline = NULL, updated_at = now()
		WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear next deadline: %w", err)
	}
	return nil
}

// ListActiveSessions returns sessions that are on the clock or paused,
// most recently started first.
func (r *Repository) ListActiveSessions(ctx context.Context) ([]models.DraftSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM draft_sessions
		WHERE status IN ('IN_PROGRESS', 'PAUSED')
		ORDER BY started_at DESC NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.DraftSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// CreateSlotsBatch inserts the full generated order in one statement.
// Slots are immutable after this point apart from their pick columns.
func (r *Repository) CreateSlotsBatch(ctx context.Context, slots []models.DraftSlot) error {
	if len(slots) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO draft_slots (id, session_id, round, pick, overall_pick, team_id) VALUES `)
	args := make([]any, 0, len(slots)*6)
	for i, slot := range slots {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, slot.ID, slot.SessionID, slot.Round, slot.Pick, slot.OverallPick, slot.TeamID)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to create draft slots: %w", err)
	}
	return nil
}

const slotColumns = `id, session_id, round, pick, overall_pick, team_id, entry_id, picked_at`

func (r *Repository) GetSlotsBySession(ctx context.Context, sessionID uuid.UUID) ([]models.DraftSlot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM draft_slots
		WHERE session_id = $1
		ORDER BY overall_pick ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get slots: %w", err)
	}
	defer rows.Close()

	var slots []models.DraftSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}
	return slots, nil
}

func (r *Repository) GetSlot(ctx context.Context, slotID uuid.UUID) (*models.DraftSlot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM draft_slots WHERE id = $1`, slotID)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

func (r *Repository) GetSlotByOverallPick(ctx context.Context, sessionID uuid.UUID, overallPick int) (*models.DraftSlot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+slotColumns+`
		FROM draft_slots
		WHERE session_id = $1 AND overall_pick = $2`, sessionID, overallPick)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot by overall pick: %w", err)
	}
	return slot, nil
}

// CountOpenSlots reports how many slots still lack a pick. Zero means
// the session can be finalized.
func (r *Repository) CountOpenSlots(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM draft_slots
		WHERE session_id = $1 AND entry_id IS NULL`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open slots: %w", err)
	}
	return count, nil
}

// InsertOutbox stages a session event for the relay. Used directly for
// events that do not ride a pick transaction; commit paths use
// InsertOutboxTx so the event and the state change share a transaction.
func (r *Repository) InsertOutbox(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	return insertOutbox(ctx, r.db, sessionID, eventType, payload)
}

func (r *Repository) InsertOutboxTx(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	return insertOutbox(ctx, tx, sessionID, eventType, payload)
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertOutbox(ctx context.Context, q execQuerier, sessionID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	var id uuid.UUID
	err = q.QueryRowContext(ctx, `
		INSERT INTO draft_outbox (id, session_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		uuid.New(), sessionID, eventType, payloadBytes).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return id, nil
}

func scanSession(row rowScanner) (*models.DraftSession, error) {
	var session models.DraftSession
	var settingsBytes []byte
	var nextDeadline, startedAt, completedAt sql.NullTime
	if err := row.Scan(&session.ID, &session.LeagueID, &session.Status, &settingsBytes,
		&session.CurrentSlot, &nextDeadline, &startedAt, &completedAt,
		&session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(settingsBytes, &session.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session settings: %w", err)
	}
	session.NextDeadline = sqlutil.FromSqlTime(nextDeadline)
	session.StartedAt = sqlutil.FromSqlTime(startedAt)
	session.CompletedAt = sqlutil.FromSqlTime(completedAt)
	return &session, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*models.DraftSlot, error) {
	var slot models.DraftSlot
	var entryID uuid.NullUUID
	var pickedAt sql.NullTime
	if err := row.Scan(&slot.ID, &slot.SessionID, &slot.Round, &slot.Pick,
		&slot.OverallPick, &slot.TeamID, &entryID, &pickedAt); err != nil {
		return nil, err
	}
	slot.EntryID = sqlutil.FromNullUUID(entryID)
	slot.PickedAt = sqlutil.FromSqlTime(pickedAt)
	return &slot, nil
}
