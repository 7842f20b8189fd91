package budget

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/models"
	"github.com/sqlc-dev/pqtype"
)

// Repository is the budget ledger: team Cubucks balances plus the manual
// preference queue stored alongside them. Debits are conditional so a
// balance can never go negative.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, league_id, name, budget, manual_queue, created_at
		FROM teams
		WHERE id = $1`, id)

	var team models.Team
	var queue pqtype.NullRawMessage
	if err := row.Scan(&team.ID, &team.LeagueID, &team.Name, &team.Budget, &queue, &team.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	if queue.Valid {
		if err := json.Unmarshal(queue.RawMessage, &team.ManualQueue); err != nil {
			return nil, fmt.Errorf("failed to unmarshal manual queue: %w", err)
		}
	}
	return &team, nil
}

func (r *Repository) GetBalance(ctx context.Context, teamID uuid.UUID) (int, error) {
	var balance int
	err := r.db.QueryRowContext(ctx,
		`SELECT budget FROM teams WHERE id = $1`, teamID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// DebitTx subtracts amount from a team's balance inside an open
// transaction. debited is false when the balance would go negative.
func (r *Repository) DebitTx(ctx context.Context, tx *sql.Tx, teamID uuid.UUID, amount int) (debited bool, err error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE teams
		SET budget = budget - $2
		WHERE id = $1 AND budget >= $2`, teamID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to debit team: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read debit result: %w", err)
	}
	return rows == 1, nil
}

// CreditTx returns amount to a team's balance inside an open transaction
// (undraft path).
func (r *Repository) CreditTx(ctx context.Context, tx *sql.Tx, teamID uuid.UUID, amount int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE teams
		SET budget = budget + $2
		WHERE id = $1`, teamID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit team: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read credit result: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("credit matched %d teams, want 1", rows)
	}
	return nil
}

// UpdateManualQueue replaces a team's preference queue.
func (r *Repository) UpdateManualQueue(ctx context.Context, teamID uuid.UUID, queue []models.QueueEntry) error {
	payload, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("failed to marshal manual queue: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE teams
		SET manual_queue = $2
		WHERE id = $1`, teamID, pqtype.NullRawMessage{RawMessage: payload, Valid: len(payload) > 0})
	if err != nil {
		return fmt.Errorf("failed to update manual queue: %w", err)
	}
	return nil
}
