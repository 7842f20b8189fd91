package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/budget"
	"github.com/manadraft/league/internal/cardpool"
	"github.com/manadraft/league/internal/draft/events"
	"github.com/manadraft/league/internal/models"
	"github.com/manadraft/league/internal/sqlutil"
)

// Committer runs the pick and undraft transactions. Every submission is
// a single transaction that locks the session row, so commits against
// one session serialize while other sessions proceed in parallel.
// All-or-nothing: a failed check rolls back the claim, the debit, the
// slot fill, and the staged event together.
type Committer struct {
	db    *sql.DB
	repo  *Repository
	pool  *cardpool.Repository
	teams *budget.Repository
}

func NewCommitter(db *sql.DB, repo *Repository, pool *cardpool.Repository, teams *budget.Repository) *Committer {
	return &Committer{
		db:    db,
		repo:  repo,
		pool:  pool,
		teams: teams,
	}
}

// SubmitPick validates and commits one pick. Validation order is fixed:
// session active, turn ownership, card availability, then budget. The
// first failed check decides the returned sentinel.
func (c *Committer) SubmitPick(ctx context.Context, req SubmitPickRequest) (*models.Pick, error) {
	var pick *models.Pick

	err := sqlutil.Run(ctx, c.db, func(tx *sql.Tx) error {
		status, currentSlot, totalSlots, err := c.lockSession(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		if status != models.SessionStatusInProgress {
			return ErrSessionNotActive
		}
		if currentSlot > totalSlots {
			return ErrSessionNotActive
		}

		slot, err := c.slotOnClockTx(ctx, tx, req.SessionID, currentSlot)
		if err != nil {
			return err
		}
		if slot.TeamID != req.TeamID {
			return ErrNotYourTurn
		}
		if slot.Filled() {
			return ErrSlotAlreadyFilled
		}

		cost, claimed, err := c.pool.ClaimTx(ctx, tx, req.EntryID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrCardUnavailable
		}

		debited, err := c.teams.DebitTx(ctx, tx, req.TeamID, cost)
		if err != nil {
			return err
		}
		if !debited {
			return ErrInsufficientBudget
		}

		committedAt, err := c.fillSlotTx(ctx, tx, slot.ID, req.EntryID)
		if err != nil {
			return err
		}

		if err := c.advanceCursorTx(ctx, tx, req.SessionID); err != nil {
			return err
		}

		cardName, err := entryNameTx(ctx, tx, req.EntryID)
		if err != nil {
			return err
		}

		if err := c.insertAuditTx(ctx, tx, auditRow{
			SessionID:   req.SessionID,
			SlotID:      slot.ID,
			TeamID:      req.TeamID,
			EntryID:     req.EntryID,
			Action:      "pick",
			Cost:        cost,
			AutoDrafted: req.AutoDrafted,
		}); err != nil {
			return err
		}

		if _, err := c.repo.InsertOutboxTx(ctx, tx, req.SessionID, string(events.EventTypePickMade), events.PickMadePayload{
			SlotID:      slot.ID.String(),
			TeamID:      req.TeamID.String(),
			EntryID:     req.EntryID.String(),
			CardName:    cardName,
			Round:       slot.Round,
			Pick:        slot.Pick,
			OverallPick: slot.OverallPick,
			Cost:        cost,
			AutoDrafted: req.AutoDrafted,
			MadeAt:      committedAt,
		}); err != nil {
			return err
		}

		pick = &models.Pick{
			SlotID:      slot.ID,
			SessionID:   req.SessionID,
			Round:       slot.Round,
			Pick:        slot.Pick,
			OverallPick: slot.OverallPick,
			TeamID:      req.TeamID,
			EntryID:     req.EntryID,
			Cost:        cost,
			CommittedAt: committedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.pool.InvalidatePool(poolIDForSession(ctx, c.repo, req.SessionID))
	return pick, nil
}

// UndraftPick administratively reverses a committed pick: the card
// returns to the pool, the team is refunded, and the session cursor
// rewinds to the reopened slot if it had moved past it.
func (c *Committer) UndraftPick(ctx context.Context, slotID uuid.UUID) (*models.DraftSlot, error) {
	var reopened *models.DraftSlot

	err := sqlutil.Run(ctx, c.db, func(tx *sql.Tx) error {
		var sessionID uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT session_id FROM draft_slots WHERE id = $1`, slotID).Scan(&sessionID)
		if err == sql.ErrNoRows {
			return ErrPickNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to resolve slot session: %w", err)
		}

		if _, _, _, err := c.lockSession(ctx, tx, sessionID); err != nil {
			return err
		}

		slot, err := c.slotByIDTx(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if !slot.Filled() {
			return ErrPickNotFound
		}
		entryID := *slot.EntryID

		cost, released, err := c.pool.ReleaseTx(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if !released {
			return fmt.Errorf("entry %s not marked drafted while slot %s holds it", entryID, slotID)
		}

		if err := c.teams.CreditTx(ctx, tx, slot.TeamID, cost); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE draft_slots
			SET entry_id = NULL, picked_at = NULL
			WHERE id = $1`, slotID); err != nil {
			return fmt.Errorf("failed to clear slot: %w", err)
		}

		// Rewind the cursor so the reopened slot blocks forward progress,
		// and reopen a completed session.
		if _, err := tx.ExecContext(ctx, `
			UPDATE draft_sessions
			SET current_slot = LEAST(current_slot, $2),
			    status = CASE WHEN status = 'COMPLETED' THEN 'IN_PROGRESS' ELSE status END,
			    completed_at = NULL,
			    updated_at = now()
			WHERE id = $1`, sessionID, slot.OverallPick); err != nil {
			return fmt.Errorf("failed to rewind session cursor: %w", err)
		}

		if err := c.insertAuditTx(ctx, tx, auditRow{
			SessionID: sessionID,
			SlotID:    slotID,
			TeamID:    slot.TeamID,
			EntryID:   entryID,
			Action:    "undraft",
			Cost:      cost,
		}); err != nil {
			return err
		}

		if _, err := c.repo.InsertOutboxTx(ctx, tx, sessionID, string(events.EventTypePickUndrafted), events.PickUndraftedPayload{
			SlotID:      slotID.String(),
			TeamID:      slot.TeamID.String(),
			EntryID:     entryID.String(),
			OverallPick: slot.OverallPick,
			Refund:      cost,
			UndraftedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}

		slot.EntryID = nil
		slot.PickedAt = nil
		reopened = slot
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.pool.InvalidatePool(poolIDForSession(ctx, c.repo, reopened.SessionID))
	return reopened, nil
}

// lockSession takes the per-session row lock that serializes all
// commits against one session.
func (c *Committer) lockSession(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID) (models.SessionStatus, int, int, error) {
	var status models.SessionStatus
	var currentSlot int
	var settingsBytes []byte
	err := tx.QueryRowContext(ctx, `
		SELECT status, current_slot, settings
		FROM draft_sessions
		WHERE id = $1
		FOR UPDATE`, sessionID).Scan(&status, &currentSlot, &settingsBytes)
	if err == sql.ErrNoRows {
		return "", 0, 0, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to lock session: %w", err)
	}

	var settings models.SessionSettings
	if err := json.Unmarshal(settingsBytes, &settings); err != nil {
		return "", 0, 0, fmt.Errorf("failed to unmarshal session settings: %w", err)
	}
	return status, currentSlot, settings.Rounds * len(settings.SeedOrder), nil
}

func (c *Committer) slotOnClockTx(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID, overallPick int) (*models.DraftSlot, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+slotColumns+`
		FROM draft_slots
		WHERE session_id = $1 AND overall_pick = $2`, sessionID, overallPick)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("failed to load slot on the clock: %w", err)
	}
	return slot, nil
}

func (c *Committer) slotByIDTx(ctx context.Context, tx *sql.Tx, slotID uuid.UUID) (*models.DraftSlot, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM draft_slots WHERE id = $1`, slotID)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("failed to load slot: %w", err)
	}
	return slot, nil
}

// fillSlotTx stamps the pick onto the slot. The entry_id IS NULL guard
// makes filling idempotent-safe even if an earlier check raced.
func (c *Committer) fillSlotTx(ctx context.Context, tx *sql.Tx, slotID, entryID uuid.UUID) (time.Time, error) {
	var committedAt time.Time
	err := tx.QueryRowContext(ctx, `
		UPDATE draft_slots
		SET entry_id = $2, picked_at = now()
		WHERE id = $1 AND entry_id IS NULL
		RETURNING picked_at`, slotID, entryID).Scan(&committedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, ErrSlotAlreadyFilled
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fill slot: %w", err)
	}
	return committedAt, nil
}

func (c *Committer) advanceCursorTx(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE draft_sessions
		SET current_slot = current_slot + 1, updated_at = now()
		WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to advance session cursor: %w", err)
	}
	return nil
}

type auditRow struct {
	SessionID   uuid.UUID
	SlotID      uuid.UUID
	TeamID      uuid.UUID
	EntryID     uuid.UUID
	Action      string
	Cost        int
	AutoDrafted bool
}

func (c *Committer) insertAuditTx(ctx context.Context, tx *sql.Tx, row auditRow) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pick_audits (id, session_id, slot_id, team_id, entry_id, action, cost, auto_drafted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), row.SessionID, row.SlotID, row.TeamID, row.EntryID,
		row.Action, row.Cost, row.AutoDrafted); err != nil {
		return fmt.Errorf("failed to insert pick audit: %w", err)
	}
	return nil
}

func entryNameTx(ctx context.Context, tx *sql.Tx, entryID uuid.UUID) (string, error) {
	var name string
	if err := tx.QueryRowContext(ctx,
		`SELECT name FROM card_pool_entries WHERE id = $1`, entryID).Scan(&name); err != nil {
		return "", fmt.Errorf("failed to load entry name: %w", err)
	}
	return name, nil
}

// poolIDForSession resolves the pool backing a session for cache
// invalidation. Best effort: a lookup failure leaves the cache warm and
// the next duplicate count may be briefly stale, which the cache
// contract tolerates.
func poolIDForSession(ctx context.Context, repo *Repository, sessionID uuid.UUID) uuid.UUID {
	session, err := repo.GetSession(ctx, sessionID)
	if err != nil {
		return uuid.Nil
	}
	return session.Settings.PoolID
}
