package draft

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manadraft/league/internal/draft/events"
	"github.com/manadraft/league/internal/draft/recommender"
	"github.com/manadraft/league/internal/models"
)

// In-memory doubles for the app layer's dependencies.

type fakeSessionRepo struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*models.DraftSession
	slots     map[uuid.UUID][]models.DraftSlot
	deadlines map[uuid.UUID]*time.Time
	staged    []string // event types, in order
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions:  make(map[uuid.UUID]*models.DraftSession),
		slots:     make(map[uuid.UUID][]models.DraftSlot),
		deadlines: make(map[uuid.UUID]*time.Time),
	}
}

func (r *fakeSessionRepo) CreateSession(_ context.Context, req CreateSessionRequest) (*models.DraftSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session := &models.DraftSession{
		ID:          req.ID,
		LeagueID:    req.LeagueID,
		Status:      models.SessionStatusNotStarted,
		Settings:    req.Settings,
		CurrentSlot: 1,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.sessions[req.ID] = session
	return session, nil
}

func (r *fakeSessionRepo) GetSession(_ context.Context, id uuid.UUID) (*models.DraftSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no session %s", id)
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) UpdateSessionStatus(_ context.Context, id uuid.UUID, status models.SessionStatus) (*models.DraftSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no session %s", id)
	}
	session.Status = status
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) FetchNextDeadline(_ context.Context) (*NextDeadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var next *NextDeadline
	for id, deadline := range r.deadlines {
		if deadline == nil {
			continue
		}
		if next == nil || deadline.Before(*next.Deadline) {
			next = &NextDeadline{SessionID: id, Deadline: deadline}
		}
	}
	return next, nil
}

func (r *fakeSessionRepo) FetchSessionsDueForPick(_ context.Context, limit int32) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []uuid.UUID
	now := time.Now()
	for id, deadline := range r.deadlines {
		if deadline != nil && !deadline.After(now) {
			due = append(due, id)
		}
		if int32(len(due)) >= limit {
			break
		}
	}
	return due, nil
}

func (r *fakeSessionRepo) UpdateNextDeadline(_ context.Context, sessionID uuid.UUID, deadline *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadlines[sessionID] = deadline
	return nil
}

func (r *fakeSessionRepo) ClearNextDeadline(_ context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.deadlines, sessionID)
	return nil
}

func (r *fakeSessionRepo) CreateSlotsBatch(_ context.Context, slots []models.DraftSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range slots {
		r.slots[s.SessionID] = append(r.slots[s.SessionID], s)
	}
	return nil
}

func (r *fakeSessionRepo) ListActiveSessions(_ context.Context) ([]models.DraftSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []models.DraftSession
	for _, s := range r.sessions {
		if s.Status == models.SessionStatusInProgress || s.Status == models.SessionStatusPaused {
			active = append(active, *s)
		}
	}
	return active, nil
}

func (r *fakeSessionRepo) GetSlotsBySession(_ context.Context, sessionID uuid.UUID) ([]models.DraftSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.DraftSlot(nil), r.slots[sessionID]...), nil
}

func (r *fakeSessionRepo) GetSlot(_ context.Context, slotID uuid.UUID) (*models.DraftSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, slots := range r.slots {
		for i := range slots {
			if slots[i].ID == slotID {
				copied := slots[i]
				return &copied, nil
			}
		}
	}
	return nil, fmt.Errorf("no slot %s", slotID)
}

func (r *fakeSessionRepo) GetSlotByOverallPick(_ context.Context, sessionID uuid.UUID, overallPick int) (*models.DraftSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots[sessionID] {
		if r.slots[sessionID][i].OverallPick == overallPick {
			copied := r.slots[sessionID][i]
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no slot at pick %d", overallPick)
}

func (r *fakeSessionRepo) CountOpenSlots(_ context.Context, sessionID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	open := 0
	for i := range r.slots[sessionID] {
		if !r.slots[sessionID][i].Filled() {
			open++
		}
	}
	return open, nil
}

func (r *fakeSessionRepo) InsertOutbox(_ context.Context, _ uuid.UUID, eventType string, _ any) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged = append(r.staged, eventType)
	return uuid.New(), nil
}

func (r *fakeSessionRepo) stagedTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.staged...)
}

// fillSlots marks the first n slots of a session as picked.
func (r *fakeSessionRepo) fillSlots(sessionID uuid.UUID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for i := 0; i < n && i < len(r.slots[sessionID]); i++ {
		entryID := uuid.New()
		r.slots[sessionID][i].EntryID = &entryID
		r.slots[sessionID][i].PickedAt = &now
	}
}

type fakeCommitter struct {
	pick        *models.Pick
	err         error
	undraftSlot *models.DraftSlot
	undraftErr  error
	submitted   []SubmitPickRequest
}

func (c *fakeCommitter) SubmitPick(_ context.Context, req SubmitPickRequest) (*models.Pick, error) {
	c.submitted = append(c.submitted, req)
	if c.err != nil {
		return nil, c.err
	}
	return c.pick, nil
}

func (c *fakeCommitter) UndraftPick(_ context.Context, _ uuid.UUID) (*models.DraftSlot, error) {
	if c.undraftErr != nil {
		return nil, c.undraftErr
	}
	return c.undraftSlot, nil
}

type fakePoolRepo struct {
	available []models.CardPoolEntry
	teamPicks []models.CardPoolEntry
}

func (p *fakePoolRepo) ListAvailableByPool(_ context.Context, _ uuid.UUID) ([]models.CardPoolEntry, error) {
	return p.available, nil
}

func (p *fakePoolRepo) ListEntriesByTeamPicks(_ context.Context, _, _ uuid.UUID) ([]models.CardPoolEntry, error) {
	return p.teamPicks, nil
}

type fakeTeamRepo struct {
	teams map[uuid.UUID]*models.Team
}

func (t *fakeTeamRepo) GetTeam(_ context.Context, id uuid.UUID) (*models.Team, error) {
	team, ok := t.teams[id]
	if !ok {
		return nil, fmt.Errorf("no team %s", id)
	}
	return team, nil
}

func (t *fakeTeamRepo) GetBalance(_ context.Context, id uuid.UUID) (int, error) {
	team, ok := t.teams[id]
	if !ok {
		return 0, fmt.Errorf("no team %s", id)
	}
	return team.Budget, nil
}

type fakeHub struct {
	mu     sync.Mutex
	events []events.SessionEvent
}

func (h *fakeHub) Publish(event events.SessionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *fakeHub) published() []events.SessionEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.SessionEvent(nil), h.events...)
}

func (h *fakeHub) types() []events.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]events.EventType, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

type appFixture struct {
	app       *App
	repo      *fakeSessionRepo
	committer *fakeCommitter
	pool      *fakePoolRepo
	teams     *fakeTeamRepo
	hub       *fakeHub
}

func newAppFixture() *appFixture {
	repo := newFakeSessionRepo()
	committer := &fakeCommitter{}
	pool := &fakePoolRepo{}
	teams := &fakeTeamRepo{teams: make(map[uuid.UUID]*models.Team)}
	hub := &fakeHub{}
	return &appFixture{
		app:       NewApp(repo, committer, pool, teams, hub),
		repo:      repo,
		committer: committer,
		pool:      pool,
		teams:     teams,
		hub:       hub,
	}
}

func validCreateRequest() CreateSessionRequest {
	return CreateSessionRequest{
		LeagueID: uuid.New(),
		Settings: models.SessionSettings{
			Rounds:         2,
			TimePerPickSec: 60,
			SeedOrder:      seedTeams(3),
			PoolID:         uuid.New(),
		},
	}
}

func TestCreateSession_PrepopulatesSerpentineSlots(t *testing.T) {
	f := newAppFixture()

	session, err := f.app.CreateSession(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, session.ID)
	assert.Equal(t, models.SessionStatusNotStarted, session.Status)

	slots, err := f.repo.GetSlotsBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, slots, 6)

	// Round 2 opens with the last round-1 team.
	assert.Equal(t, slots[2].TeamID, slots[3].TeamID)
}

func TestCreateSession_Validation(t *testing.T) {
	f := newAppFixture()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateSessionRequest)
	}{
		{"missing league", func(r *CreateSessionRequest) { r.LeagueID = uuid.Nil }},
		{"zero rounds", func(r *CreateSessionRequest) { r.Settings.Rounds = 0 }},
		{"zero pick window", func(r *CreateSessionRequest) { r.Settings.TimePerPickSec = 0 }},
		{"one team", func(r *CreateSessionRequest) { r.Settings.SeedOrder = seedTeams(1) }},
		{"missing pool", func(r *CreateSessionRequest) { r.Settings.PoolID = uuid.Nil }},
		{"duplicate team", func(r *CreateSessionRequest) {
			r.Settings.SeedOrder = append(r.Settings.SeedOrder, r.Settings.SeedOrder[0])
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(&req)
			_, err := f.app.CreateSession(ctx, req)
			assert.Error(t, err)
		})
	}
}

func TestSessionLifecycle_Transitions(t *testing.T) {
	f := newAppFixture()
	ctx := context.Background()

	session, err := f.app.CreateSession(ctx, validCreateRequest())
	require.NoError(t, err)

	// NOT_STARTED cannot pause or resume.
	_, err = f.app.PauseSession(ctx, session.ID, "too early")
	assert.Error(t, err)
	_, err = f.app.ResumeSession(ctx, session.ID)
	assert.Error(t, err)

	started, err := f.app.StartSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, started.Status)

	paused, err := f.app.PauseSession(ctx, session.ID, "dinner break")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPaused, paused.Status)

	resumed, err := f.app.ResumeSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, resumed.Status)

	cancelled, err := f.app.CancelSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCancelled, cancelled.Status)

	// Cancelled is terminal.
	_, err = f.app.StartSession(ctx, session.ID)
	assert.Error(t, err)

	assert.Equal(t, []events.EventType{
		events.EventTypeDraftStarted,
		events.EventTypeDraftPaused,
		events.EventTypeDraftResumed,
	}, f.hub.types())
}

func TestSubmitPick_PublishesPickMade(t *testing.T) {
	f := newAppFixture()
	ctx := context.Background()

	session, err := f.app.CreateSession(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = f.app.StartSession(ctx, session.ID)
	require.NoError(t, err)

	slot, err := f.repo.GetSlotByOverallPick(ctx, session.ID, 1)
	require.NoError(t, err)

	entryID := uuid.New()
	f.committer.pick = &models.Pick{
		SlotID:      slot.ID,
		SessionID:   session.ID,
		Round:       1,
		Pick:        1,
		OverallPick: 1,
		TeamID:      slot.TeamID,
		EntryID:     entryID,
		Cost:        4,
		CommittedAt: time.Now(),
	}

	pick, err := f.app.SubmitPick(ctx, SubmitPickRequest{
		SessionID: session.ID,
		TeamID:    slot.TeamID,
		EntryID:   entryID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, pick.OverallPick)

	published := f.hub.published()
	require.NotEmpty(t, published)
	last := published[len(published)-1]
	assert.Equal(t, events.EventTypePickMade, last.Type)
	assert.Equal(t, session.ID, last.SessionID)

	// Slots remain open, so the session stays in progress.
	got, err := f.app.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, got.Status)
}

func TestSubmitPick_CommitErrorSuppressesEvents(t *testing.T) {
	f := newAppFixture()
	ctx := context.Background()

	session, err := f.app.CreateSession(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = f.app.StartSession(ctx, session.ID)
	require.NoError(t, err)
	before := len(f.hub.published())

	f.committer.err = ErrNotYourTurn
	_, err = f.app.SubmitPick(ctx, SubmitPickRequest{SessionID: session.ID})
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Len(t, f.hub.published(), before)
}

func TestSubmitPick_FinalizesWhenLastSlotFills(t *testing.T) {
	f := newAppFixture()
	ctx := context.Background()

	session, err := f.app.CreateSession(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = f.app.StartSession(ctx, session.ID)
	require.NoError(t, err)

	// All six slots picked, deadline still armed from the last window.
	f.repo.fillSlots(session.ID, 6)
	deadline := time.Now().Add(time.Minute)
	require.NoError(t, f.repo.UpdateNextDeadline(ctx, session.ID, &deadline))

	slot, err := f.repo.GetSlotByOverallPick(ctx, session.ID, 6)
	require.NoError(t, err)
	f.committer.pick = &models.Pick{
		SlotID:      slot.ID,
		SessionID:   session.ID,
		Round:       2,
		Pick:        3,
		OverallPick: 6,
		TeamID:      slot.TeamID,
		EntryID:     uuid.New(),
		CommittedAt: time.Now(),
	}

	_, err = f.app.SubmitPick(ctx, SubmitPickRequest{SessionID: session.ID, TeamID: slot.TeamID})
	require.NoError(t, err)

	got, err := f.app.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)

	nd, err := f.repo.FetchNextDeadline(ctx)
	require.NoError(t, err)
	assert.Nil(t, nd)

	hubTypes := f.hub.types()
	assert.Equal(t, events.EventTypeDraftComplete, hubTypes[len(hubTypes)-1])
	staged := f.repo.stagedTypes()
	assert.Contains(t, staged, string(events.EventTypeDraftComplete))
}

func TestUndraftPick_PublishesPickUndrafted(t *testing.T) {
	f := newAppFixture()
	ctx := context.Background()

	sessionID := uuid.New()
	entryID := uuid.New()
	now := time.Now()
	f.committer.undraftSlot = &models.DraftSlot{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Round:       1,
		Pick:        2,
		OverallPick: 2,
		TeamID:      uuid.New(),
		EntryID:     &entryID,
		PickedAt:    &now,
	}

	slot, err := f.app.UndraftPick(ctx, f.committer.undraftSlot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, slot.OverallPick)

	published := f.hub.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTypePickUndrafted, published[0].Type)
	assert.Equal(t, sessionID, published[0].SessionID)
}

func TestSlotOnClock(t *testing.T) {
	f := newAppFixture()
	ctx := context.Background()

	session, err := f.app.CreateSession(ctx, validCreateRequest())
	require.NoError(t, err)

	// Not in progress yet.
	slot, err := f.app.SlotOnClock(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, slot)

	_, err = f.app.StartSession(ctx, session.ID)
	require.NoError(t, err)

	slot, err = f.app.SlotOnClock(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, 1, slot.OverallPick)

	// Cursor past the last slot means nothing is on the clock.
	f.repo.mu.Lock()
	f.repo.sessions[session.ID].CurrentSlot = 7
	f.repo.mu.Unlock()

	slot, err = f.app.SlotOnClock(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestGetSessionState_Snapshot(t *testing.T) {
	f := newAppFixture()
	ctx := context.Background()

	req := validCreateRequest()
	session, err := f.app.CreateSession(ctx, req)
	require.NoError(t, err)
	_, err = f.app.StartSession(ctx, session.ID)
	require.NoError(t, err)

	for i, teamID := range req.Settings.SeedOrder {
		f.teams.teams[teamID] = &models.Team{ID: teamID, Budget: 100 - i*10}
	}

	state, err := f.app.GetSessionState(ctx, session.ID)
	require.NoError(t, err)

	assert.Equal(t, session.ID, state.Session.ID)
	assert.Len(t, state.Slots, 6)
	require.NotNil(t, state.OnTheClock)
	assert.Equal(t, 1, state.OnTheClock.OverallPick)
	require.Len(t, state.Budgets, 3)
	assert.Equal(t, 100, state.Budgets[req.Settings.SeedOrder[0]])
	assert.Equal(t, 80, state.Budgets[req.Settings.SeedOrder[2]])
}

func TestPreviewAutoDraft_UsesTeamStateAndPool(t *testing.T) {
	f := newAppFixture()
	ctx := context.Background()

	req := validCreateRequest()
	session, err := f.app.CreateSession(ctx, req)
	require.NoError(t, err)

	teamID := req.Settings.SeedOrder[0]
	queued := models.CardPoolEntry{ID: uuid.New(), Name: "Queued Card", Cost: 3, Rating: 10}
	f.teams.teams[teamID] = &models.Team{
		ID:          teamID,
		Budget:      20,
		ManualQueue: []models.QueueEntry{{EntryID: queued.ID, Rank: 1}},
	}
	f.pool.available = []models.CardPoolEntry{
		{ID: uuid.New(), Name: "Bomb", ColorIdentity: models.ColorIdentity{models.ColorBlack}, Cost: 5, Rating: 99},
		queued,
	}

	rec, err := f.app.PreviewAutoDraft(ctx, session.ID, teamID)
	require.NoError(t, err)
	assert.Equal(t, recommender.SourceManualQueue, rec.Source)
	assert.Equal(t, queued.ID, rec.Entry.ID)
}
