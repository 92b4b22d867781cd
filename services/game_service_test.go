package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"game-session-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionDefaults(t *testing.T) {
	e := newTestEngine(t)

	session, err := e.game.Create(SessionConfig{
		Name:        "Friday Night Bingo",
		Dimension:   5,
		PatternType: models.PatternTypeLine,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusDraft, session.Status)
	assert.Equal(t, models.AccessModeOpen, session.AccessMode)
	assert.Equal(t, 0, session.Capacity)
	assert.Nil(t, session.WinnerID)
	assert.Empty(t, session.Admitted())

	// Join code: slugified prefix + random suffix, stored normalized.
	assert.Equal(t, NormalizeCode(session.Code), session.Code)
	assert.True(t, strings.HasPrefix(session.Code, "FRIDAY-"), "code %q", session.Code)
}

func TestCreateSessionValidation(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.game.Create(SessionConfig{Name: "bad", Dimension: 2, PatternType: models.PatternTypeLine})
	assert.Error(t, err)

	_, err = e.game.Create(SessionConfig{Name: "bad", Dimension: 5, PatternType: "nope"})
	assert.Error(t, err)

	// Cross needs an odd grid.
	_, err = e.game.Create(SessionConfig{Name: "bad", Dimension: 4, PatternType: models.PatternTypeCross})
	assert.Error(t, err)

	_, err = e.game.Create(SessionConfig{Name: "bad", Dimension: 5, PatternType: models.PatternTypeLine, Capacity: -1})
	assert.Error(t, err)
}

func TestCreateScheduledSession(t *testing.T) {
	e := newTestEngine(t)

	at := time.Now().Add(time.Hour)
	session, err := e.game.Create(SessionConfig{
		Name:        "later",
		Dimension:   5,
		PatternType: models.PatternTypeLine,
		StartTime:   &at,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScheduled, session.Status)
}

func TestStartGeneratesOneCardPerAdmittedPlayer(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "kickoff", Capacity: 3})

	e.join(t, session, "player-1")
	e.join(t, session, "player-2")
	e.join(t, session, "player-3")

	started, err := e.game.Start(session.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, started.Status)

	var count int64
	require.NoError(t, e.db.Model(&models.Card{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	assert.Contains(t, e.eventTypes(t, session.ID), models.EventStarted)
}

func TestStartTwiceFails(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "once"})
	e.join(t, session, "player-1")

	_, err := e.game.Start(session.ID, false)
	require.NoError(t, err)

	_, err = e.game.Start(session.ID, false)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStartWithZeroPlayers(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "empty"})

	_, err := e.game.Start(session.ID, false)
	assert.ErrorIs(t, err, ErrInvalidState)

	// The admin override is the only recognized bypass.
	started, err := e.game.Start(session.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, started.Status)
}

func TestStartWaitlistFreezes(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "frozen", Capacity: 1})

	e.join(t, session, "player-1")
	e.join(t, session, "player-2") // waitlisted

	_, err := e.game.Start(session.ID, false)
	require.NoError(t, err)

	// Waitlisted players get no card and no promotion after start.
	require.NoError(t, e.admission.Leave(session.ID, "player-1"))

	got := e.reload(t, session.ID)
	assert.Empty(t, got.Admitted())
	assert.Equal(t, []string{"player-2"}, got.Waitlist())

	var count int64
	require.NoError(t, e.db.Model(&models.Card{}).
		Where("session_id = ? AND player_id = ?", session.ID, "player-2").
		Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestRecordClaimBeforeStart(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "early"})
	e.join(t, session, "player-1")

	_, err := e.game.RecordClaim(session.ID, "player-1", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRecordClaimNonParticipant(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "outsider"})
	e.join(t, session, "player-1")

	_, err := e.game.Start(session.ID, false)
	require.NoError(t, err)

	_, err = e.game.RecordClaim(session.ID, "player-2", 0, 0)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestRecordClaimEliminatedPlayer(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "cut"})
	e.join(t, session, "player-1")
	e.join(t, session, "player-2")

	_, err := e.game.Start(session.ID, false)
	require.NoError(t, err)

	require.NoError(t, e.admission.Eliminate(session.ID, "player-1"))

	_, err = e.game.RecordClaim(session.ID, "player-1", 0, 0)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestRecordClaimAlreadyClaimedIsSoft(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "repeat"})
	e.join(t, session, "player-1")

	_, err := e.game.Start(session.ID, false)
	require.NoError(t, err)

	first, err := e.game.RecordClaim(session.ID, "player-1", 0, 0)
	require.NoError(t, err)
	assert.True(t, first.Claimed)
	assert.False(t, first.AlreadyClaimed)

	second, err := e.game.RecordClaim(session.ID, "player-1", 0, 0)
	require.NoError(t, err)
	assert.True(t, second.AlreadyClaimed)
	assert.False(t, second.Won)
}

func TestRecordClaimWinCompletesSession(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "winner"})
	e.join(t, session, "player-1")
	e.join(t, session, "player-2")

	_, err := e.game.Start(session.ID, false)
	require.NoError(t, err)

	// Claim row 2 around the free center.
	for _, col := range []int{0, 1, 3} {
		result, err := e.game.RecordClaim(session.ID, "player-1", 2, col)
		require.NoError(t, err)
		assert.False(t, result.Won)
	}

	result, err := e.game.RecordClaim(session.ID, "player-1", 2, 4)
	require.NoError(t, err)
	assert.True(t, result.Won)

	got := e.reload(t, session.ID)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, "player-1", *got.WinnerID)
	require.NotNil(t, got.CompletedAt)

	types := e.eventTypes(t, session.ID)
	assert.Contains(t, types, models.EventWon)
	assert.Contains(t, types, models.EventCompleted)

	// Completed is terminal: nobody can claim anymore.
	_, err = e.game.RecordClaim(session.ID, "player-2", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExactlyOneWinnerUnderConcurrentClaims(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "photo finish", Dimension: 3})
	e.join(t, session, "player-1")
	e.join(t, session, "player-2")

	_, err := e.game.Start(session.ID, false)
	require.NoError(t, err)

	// Both players get to one square short of winning row 0.
	for _, playerID := range []string{"player-1", "player-2"} {
		for _, col := range []int{0, 1} {
			result, err := e.game.RecordClaim(session.ID, playerID, 0, col)
			require.NoError(t, err)
			require.False(t, result.Won)
		}
	}

	// Both final claims race.
	results := make(map[string]*ClaimResult, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, playerID := range []string{"player-1", "player-2"} {
		wg.Add(1)
		go func(playerID string) {
			defer wg.Done()
			result, err := e.game.RecordClaim(session.ID, playerID, 0, 2)
			if err != nil {
				// The loser may observe the completed transition instead.
				assert.ErrorIs(t, err, ErrInvalidState)
				return
			}
			mu.Lock()
			results[playerID] = result
			mu.Unlock()
		}(playerID)
	}
	wg.Wait()

	winners := 0
	for _, result := range results {
		if result.Won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	got := e.reload(t, session.ID)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)
	require.NotNil(t, got.WinnerID)

	// Exactly one COMPLETED event.
	completed := 0
	for _, eventType := range e.eventTypes(t, session.ID) {
		if eventType == models.EventCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestRetryAfterBusyWinnerCommitCompletesSession(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "stuck commit", Dimension: 3})
	e.join(t, session, "player-1")

	_, err := e.game.Start(session.ID, false)
	require.NoError(t, err)

	for _, col := range []int{0, 1} {
		_, err := e.game.RecordClaim(session.ID, "player-1", 0, col)
		require.NoError(t, err)
	}

	// Hold the completion lock: the winning claim persists but the
	// winner commit times out.
	short := NewLockRegistry(50 * time.Millisecond)
	e.game.Locks = short
	e.claims.Locks = short

	held, err := short.acquireCompletion(session.ID)
	require.NoError(t, err)

	_, err = e.game.RecordClaim(session.ID, "player-1", 0, 2)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, models.SessionStatusActive, e.reload(t, session.ID).Status)

	held.Release()

	// The retry lands on the already-claimed square; win detection still
	// runs and the session completes.
	result, err := e.game.RecordClaim(session.ID, "player-1", 0, 2)
	require.NoError(t, err)
	assert.True(t, result.AlreadyClaimed)
	assert.True(t, result.Won)

	got := e.reload(t, session.ID)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, "player-1", *got.WinnerID)
}

func TestCorruptSessionHaltsClaims(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "damaged"})
	e.join(t, session, "player-1")

	_, err := e.game.Start(session.ID, false)
	require.NoError(t, err)

	require.NoError(t, e.db.Model(&models.Session{}).
		Where("id = ?", session.ID).
		Update("corrupt", true).Error)

	_, err = e.game.RecordClaim(session.ID, "player-1", 0, 0)
	assert.ErrorIs(t, err, ErrSessionCorrupt)

	_, err = e.game.Start(session.ID, false)
	assert.ErrorIs(t, err, ErrSessionCorrupt)
}

func TestCompletedSessionSurvivesRehydration(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "restart", Dimension: 3})
	e.join(t, session, "player-1")
	e.join(t, session, "player-2")

	_, err := e.game.Start(session.ID, false)
	require.NoError(t, err)

	for _, col := range []int{0, 1, 2} {
		_, err := e.game.RecordClaim(session.ID, "player-1", 0, col)
		require.NoError(t, err)
	}

	// A fresh lock registry simulates a process restart over the same
	// durable state: the completed row never takes a second winner.
	e.locks = NewLockRegistry(time.Second)
	e.game.Locks = e.locks
	e.claims.Locks = e.locks

	_, err = e.game.RecordClaim(session.ID, "player-2", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidState)

	got := e.reload(t, session.ID)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, "player-1", *got.WinnerID)
}

func TestStartDueSessions(t *testing.T) {
	e := newTestEngine(t)

	past := time.Now().Add(-time.Minute)
	due, err := e.game.Create(SessionConfig{
		Name: "due", Dimension: 5, PatternType: models.PatternTypeLine, StartTime: &past,
	})
	require.NoError(t, err)
	e.join(t, due, "player-1")

	future := time.Now().Add(time.Hour)
	notDue, err := e.game.Create(SessionConfig{
		Name: "not due", Dimension: 5, PatternType: models.PatternTypeLine, StartTime: &future,
	})
	require.NoError(t, err)

	// Zero admitted players: stays scheduled, retried next pass.
	emptyPast := time.Now().Add(-time.Minute)
	empty, err := e.game.Create(SessionConfig{
		Name: "empty due", Dimension: 5, PatternType: models.PatternTypeLine, StartTime: &emptyPast,
	})
	require.NoError(t, err)

	e.game.StartDueSessions()

	assert.Equal(t, models.SessionStatusActive, e.reload(t, due.ID).Status)
	assert.Equal(t, models.SessionStatusScheduled, e.reload(t, notDue.ID).Status)
	assert.Equal(t, models.SessionStatusScheduled, e.reload(t, empty.ID).Status)
}

func TestProjectionIsReadOnlyView(t *testing.T) {
	e := newTestEngine(t)
	session := e.createSession(t, SessionConfig{Name: "view", Capacity: 1})
	e.join(t, session, "player-1")
	e.join(t, session, "player-2")

	view, err := e.game.Projection(session.ID)
	require.NoError(t, err)

	assert.Equal(t, session.ID, view.ID)
	assert.Equal(t, session.Code, view.Code)
	assert.Equal(t, []string{"player-1"}, view.Admitted)
	assert.Equal(t, []string{"player-2"}, view.Waitlist)
	assert.Empty(t, view.Eliminated)
	assert.Nil(t, view.WinnerID)

	_, err = e.game.Projection("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
