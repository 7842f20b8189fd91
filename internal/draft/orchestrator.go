package draft

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/manadraft/league/internal/draft/recommender"
	"github.com/manadraft/league/internal/models"
	"github.com/rs/zerolog/log"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// OrchestratorApp defines what the orchestrator needs from the draft app
type OrchestratorApp interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	StartSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	PauseSession(ctx context.Context, id uuid.UUID, reason string) (*models.DraftSession, error)
	ResumeSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	SubmitPick(ctx context.Context, req SubmitPickRequest) (*models.Pick, error)
	SlotOnClock(ctx context.Context, sessionID uuid.UUID) (*models.DraftSlot, error)
	EmitPickStarted(ctx context.Context, session *models.DraftSession, slot *models.DraftSlot, deadline time.Time)
	FetchNextDeadline(ctx context.Context) (*NextDeadline, error)
	FetchSessionsDueForPick(ctx context.Context, limit int32) ([]uuid.UUID, error)
	UpdateNextDeadline(ctx context.Context, sessionID uuid.UUID, deadline *time.Time) error
	ClearNextDeadline(ctx context.Context, sessionID uuid.UUID) error
}

// Orchestrator owns the pick clock: it sleeps until the soonest
// deadline across all in-progress sessions, then hands expired sessions
// to a worker pool that auto-drafts on behalf of the absent team.
type Orchestrator struct {
	app        OrchestratorApp
	batchSize  int32
	clock      Clock
	strat      AutoPickStrategy
	wakeCh     chan struct{}
	instanceID string

	numWorkers int
	workCh     chan uuid.UUID

	// Track in-flight work to prevent duplicate processing
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

func NewOrchestrator(app OrchestratorApp, strat AutoPickStrategy, batchSize int32) *Orchestrator {
	numWorkers := 10
	return &Orchestrator{
		app:        app,
		batchSize:  batchSize,
		strat:      strat,
		clock:      clockwork.NewRealClock(),
		wakeCh:     make(chan struct{}, 1),
		instanceID: uuid.New().String()[:8], // short ID for logging

		numWorkers: numWorkers,
		workCh:     make(chan uuid.UUID, numWorkers*2),
		inFlight:   make(map[uuid.UUID]bool),
	}
}

// WithClock swaps the time source. Test hook.
func (o *Orchestrator) WithClock(clock Clock) *Orchestrator {
	o.clock = clock
	return o
}

// SubmitPick handles a user-made pick, then arms the timer for the next
// slot.
func (o *Orchestrator) SubmitPick(ctx context.Context, req SubmitPickRequest) (*models.Pick, error) {
	pick, err := o.app.SubmitPick(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := o.armNextPick(ctx, req.SessionID); err != nil {
		log.Error().Err(err).Str("session_id", req.SessionID.String()).Msg("failed to arm next pick")
	}
	return pick, nil
}

// StartSession starts the session and arms the first pick timer.
func (o *Orchestrator) StartSession(ctx context.Context, sessionID uuid.UUID) (*models.DraftSession, error) {
	session, err := o.app.StartSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := o.armNextPick(ctx, sessionID); err != nil {
		return nil, err
	}
	return session, nil
}

// PauseSession pauses the session and clears its deadline so the
// scheduler ignores it until resume.
func (o *Orchestrator) PauseSession(ctx context.Context, sessionID uuid.UUID, reason string) (*models.DraftSession, error) {
	session, err := o.app.PauseSession(ctx, sessionID, reason)
	if err != nil {
		return nil, err
	}
	if err := o.app.ClearNextDeadline(ctx, sessionID); err != nil {
		return nil, err
	}
	return session, nil
}

// ResumeSession resumes a paused session and restarts the pick timer
// TODO resume from remaining time instead of a full window
func (o *Orchestrator) ResumeSession(ctx context.Context, sessionID uuid.UUID) (*models.DraftSession, error) {
	session, err := o.app.ResumeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := o.armNextPick(ctx, sessionID); err != nil {
		return nil, err
	}
	return session, nil
}

// armNextPick sets the deadline for the slot now on the clock and
// announces it. No-op when the session has nothing left to pick.
func (o *Orchestrator) armNextPick(ctx context.Context, sessionID uuid.UUID) error {
	session, err := o.app.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != models.SessionStatusInProgress {
		return nil
	}

	slot, err := o.app.SlotOnClock(ctx, sessionID)
	if err != nil {
		return err
	}
	if slot == nil {
		return nil
	}

	deadline := o.clock.Now().Add(time.Duration(session.Settings.TimePerPickSec) * time.Second)
	if err := o.app.UpdateNextDeadline(ctx, sessionID, &deadline); err != nil {
		return err
	}

	o.app.EmitPickStarted(ctx, session, slot, deadline)
	o.wake()
	return nil
}

// wake signals the scheduler that a sooner deadline may exist.
func (o *Orchestrator) wake() {
	select {
	case o.wakeCh <- struct{}{}:
	default:
	}
}

// RunScheduler loops until ctx cancels, sleeping until the next
// deadline and dispatching expired sessions to the worker pool.
func (o *Orchestrator) RunScheduler(ctx context.Context) error {
	log.Info().Str("instance", o.instanceID).Int("workers", o.numWorkers).Msg("scheduler started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < o.numWorkers; i++ {
		wg.Add(1)
		go o.worker(workerCtx, &wg, i)
	}

	defer func() {
		log.Info().Str("instance", o.instanceID).Msg("shutting down workers")
		cancelWorkers()
		close(o.workCh)
		wg.Wait()
		log.Info().Str("instance", o.instanceID).Msg("all workers shut down")
	}()

	timer := o.clock.NewTimer(0)
	defer timer.Stop()

	const idlePollDuration = 5 * time.Second
	retryCount := 0
	const maxRetries = 3

	for {
		// Drain wake channel to prevent tight loops
		select {
		case <-o.wakeCh:
			log.Debug().Str("instance", o.instanceID).Msg("drained wake channel")
		default:
		}

		nd, err := o.app.FetchNextDeadline(ctx)
		if err != nil {
			retryCount++
			if retryCount <= maxRetries {
				log.Error().
					Err(err).
					Int("retry", retryCount).
					Str("instance", o.instanceID).
					Msg("error fetching next deadline, retrying")
				timer.Reset(time.Second * time.Duration(retryCount))
				select {
				case <-timer.Chan():
					continue
				case <-ctx.Done():
					return nil
				}
			}
			log.Error().Err(err).Str("instance", o.instanceID).Msg("error fetching next deadline after retries")
			return err
		}
		retryCount = 0

		if nd == nil || nd.Deadline == nil {
			// Nothing on the clock anywhere. Idle with timer reuse.
			timer.Reset(idlePollDuration)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				log.Info().Str("instance", o.instanceID).Msg("shutdown during idle")
				return nil
			case <-o.wakeCh:
				log.Debug().Str("instance", o.instanceID).Msg("woken up from idle")
				continue
			}
		}

		wait := nd.Deadline.Sub(o.clock.Now())
		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.Chan():
				log.Info().Str("instance", o.instanceID).Msg("timer fired, fetching due sessions")
			case <-ctx.Done():
				log.Info().Str("instance", o.instanceID).Msg("shutdown during wait")
				return nil
			case <-o.wakeCh:
				log.Debug().Str("instance", o.instanceID).Msg("woken up early, new sooner deadline")
				continue
			}
		}

		due, err := o.app.FetchSessionsDueForPick(ctx, o.batchSize)
		if err != nil {
			log.Error().Err(err).Str("instance", o.instanceID).Msg("error fetching due sessions")
			timer.Reset(time.Second)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if len(due) > 0 {
			log.Info().
				Int("count_due", len(due)).
				Int32("batch_size", o.batchSize).
				Str("instance", o.instanceID).
				Msg("processing due sessions")

			for _, sessionID := range due {
				o.inFlightMu.Lock()
				if o.inFlight[sessionID] {
					log.Debug().Str("session_id", sessionID.String()).Str("instance", o.instanceID).Msg("skipping session already in flight")
					o.inFlightMu.Unlock()
					continue
				}
				o.inFlight[sessionID] = true
				o.inFlightMu.Unlock()

				select {
				case <-ctx.Done():
					o.inFlightMu.Lock()
					delete(o.inFlight, sessionID)
					o.inFlightMu.Unlock()
					log.Info().Str("instance", o.instanceID).Msg("shutdown while queueing timeouts")
					return nil
				case o.workCh <- sessionID:
					log.Debug().Str("session_id", sessionID.String()).Str("instance", o.instanceID).Msg("queued timeout for worker")
				}
			}
		}
	}
}

// handleTimeout auto-drafts for the team whose window expired. A lost
// race gets one fresh recommendation; a second loss leaves the slot
// pending for the next scheduler pass rather than spinning.
func (o *Orchestrator) handleTimeout(ctx context.Context, sessionID uuid.UUID) error {
	log.Info().Str("session_id", sessionID.String()).Msg("auto-pick timeout firing")

	req, err := o.strat.SelectClaim(ctx, sessionID)
	if err != nil {
		return o.handleSelectFailure(ctx, sessionID, err)
	}

	_, err = o.SubmitPick(ctx, req)
	if err == nil {
		return nil
	}
	if !IsContention(err) {
		return err
	}

	// Lost the race to a manual pick or another instance. Recommend
	// again against fresh state, once.
	log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("auto-pick lost claim race, retrying once")

	req, err = o.strat.SelectClaim(ctx, sessionID)
	if err != nil {
		return o.handleSelectFailure(ctx, sessionID, err)
	}

	if _, err := o.SubmitPick(ctx, req); err != nil {
		if IsContention(err) {
			log.Error().Err(err).Str("session_id", sessionID.String()).Msg("auto-pick retry lost again, leaving slot pending")
			return o.app.ClearNextDeadline(ctx, sessionID)
		}
		return err
	}
	return nil
}

func (o *Orchestrator) handleSelectFailure(ctx context.Context, sessionID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, errNoSlotOnClock):
		// Session completed or paused between the deadline and now.
		return nil
	case errors.Is(err, recommender.ErrNoEligibleCard):
		log.Error().Str("session_id", sessionID.String()).Msg("no eligible card for auto-pick, leaving slot pending")
		return o.app.ClearNextDeadline(ctx, sessionID)
	default:
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("auto-pick strategy failed")
		return nil
	}
}

// worker processes session timeouts from the work channel
func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	log.Info().
		Str("instance", o.instanceID).
		Int("worker_id", workerID).
		Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case sessionID, ok := <-o.workCh:
			if !ok {
				log.Info().
					Str("instance", o.instanceID).
					Int("worker_id", workerID).
					Msg("work channel closed, worker shutting down")
				return
			}

			log.Info().
				Str("session_id", sessionID.String()).
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker handling timeout")

			if err := o.handleTimeout(ctx, sessionID); err != nil {
				log.Error().
					Err(err).
					Str("session_id", sessionID.String()).
					Str("instance", o.instanceID).
					Int("worker_id", workerID).
					Msg("worker timeout handling failed")
			}

			o.inFlightMu.Lock()
			delete(o.inFlight, sessionID)
			o.inFlightMu.Unlock()
		}
	}
}
