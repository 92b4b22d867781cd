package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"game-session-engine/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Single connection keeps the shared in-memory database alive and
	// serializes sqlite access under concurrent tests.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Session{},
		&models.Card{},
		&models.Invite{},
		&models.WinningPattern{},
		&models.GameEvent{},
	))

	return db
}

type testEngine struct {
	db        *gorm.DB
	catalog   *PatternCatalog
	locks     *LockRegistry
	events    *EventService
	cards     *CardService
	claims    *ClaimService
	wins      *WinService
	admission *AdmissionService
	game      *GameService
	assets    *StaticAssetSource
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	db := newTestDB(t)
	catalog := NewPatternCatalog()
	locks := NewLockRegistry(3 * time.Second)
	events := NewEventService(db)
	cards := NewCardService(db, catalog)
	claims := NewClaimService(db, locks)
	wins := NewWinService(catalog)
	admission := NewAdmissionService(db, locks, events)

	assets := &StaticAssetSource{Pools: map[string][]string{
		"default": testPool(40),
		"tiny":    testPool(3),
	}}

	game := NewGameService(db, catalog, cards, claims, wins, admission, locks, events, assets)

	return &testEngine{
		db:        db,
		catalog:   catalog,
		locks:     locks,
		events:    events,
		cards:     cards,
		claims:    claims,
		wins:      wins,
		admission: admission,
		game:      game,
		assets:    assets,
	}
}

func testPool(n int) []string {
	pool := make([]string, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, fmt.Sprintf("asset-%02d", i))
	}
	return pool
}

func (e *testEngine) createSession(t *testing.T, cfg SessionConfig) *models.Session {
	t.Helper()

	if cfg.Dimension == 0 {
		cfg.Dimension = 5
	}
	if cfg.PatternType == "" {
		cfg.PatternType = models.PatternTypeLine
	}

	session, err := e.game.Create(cfg)
	require.NoError(t, err)
	return session
}

func (e *testEngine) join(t *testing.T, session *models.Session, playerID string) JoinOutcome {
	t.Helper()

	outcome, err := e.admission.Join(session.ID, playerID, session.Code)
	require.NoError(t, err)
	return outcome
}

func (e *testEngine) reload(t *testing.T, sessionID string) *models.Session {
	t.Helper()

	var session models.Session
	require.NoError(t, e.db.First(&session, "id = ?", sessionID).Error)
	return &session
}

func (e *testEngine) eventTypes(t *testing.T, sessionID string) []string {
	t.Helper()

	var events []models.GameEvent
	require.NoError(t, e.db.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&events).Error)

	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}
