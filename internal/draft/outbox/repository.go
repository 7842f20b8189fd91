package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/sqlutil"
)

// Repository reads and settles staged events. Writers stage rows through
// the draft package inside their own transactions; this side only ever
// fetches and marks sent.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const outboxColumns = `id, session_id, event_type, payload, created_at, sent_at`

func (r *Repository) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+outboxColumns+` FROM draft_outbox WHERE id = $1`, id)

	event, err := scanOutbox(row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	return event, nil
}

// FetchUnsentOutbox returns staged events never delivered, oldest first.
// The fallback poll path for notifications lost in transit.
func (r *Repository) FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM draft_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		event, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE draft_outbox
		SET sent_at = now()
		WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to mark outbox event sent: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutbox(row rowScanner) (*OutboxEvent, error) {
	var event OutboxEvent
	var sentAt sql.NullTime
	if err := row.Scan(&event.ID, &event.SessionID, &event.EventType,
		&event.Payload, &event.CreatedAt, &sentAt); err != nil {
		return nil, err
	}
	event.SentAt = sqlutil.FromSqlTime(sentAt)
	return &event, nil
}
