// services/game_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"game-session-engine/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
)

// GameService owns the session state machine
// (draft → scheduled → active → completed) and orchestrates admission,
// card generation, claim processing and win detection. The completion lock
// plus a guarded UPDATE make the winner commit exclusive, including across
// restarts: a completed row is never eligible for a second commit.
type GameService struct {
	DB        *gorm.DB
	Catalog   *PatternCatalog
	Cards     *CardService
	Claims    *ClaimService
	Wins      *WinService
	Admission *AdmissionService
	Locks     *LockRegistry
	Events    *EventService
	Assets    AssetSource
}

func NewGameService(
	db *gorm.DB,
	catalog *PatternCatalog,
	cards *CardService,
	claims *ClaimService,
	wins *WinService,
	admission *AdmissionService,
	locks *LockRegistry,
	events *EventService,
	assets AssetSource,
) *GameService {
	return &GameService{
		DB:        db,
		Catalog:   catalog,
		Cards:     cards,
		Claims:    claims,
		Wins:      wins,
		Admission: admission,
		Locks:     locks,
		Events:    events,
		Assets:    assets,
	}
}

// SessionConfig fixes a session's shape at creation time.
type SessionConfig struct {
	Name        string     `json:"name"`
	Dimension   int        `json:"dimension"`
	PatternType string     `json:"pattern_type"`
	AccessMode  string     `json:"access_mode"`
	Capacity    int        `json:"capacity"`
	AssetPool   string     `json:"asset_pool"`
	StartTime   *time.Time `json:"start_time,omitempty"`
}

// ClaimResult is the outcome of one square-claim request.
type ClaimResult struct {
	Claimed        bool `json:"claimed"`
	AlreadyClaimed bool `json:"already_claimed"`
	Won            bool `json:"won"`
}

// SessionView is the read-only projection served to collaborators.
type SessionView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	Dimension   int        `json:"dimension"`
	PatternType string     `json:"pattern_type"`
	AccessMode  string     `json:"access_mode"`
	Capacity    int        `json:"capacity"`
	Status      string     `json:"status"`
	Admitted    []string   `json:"admitted"`
	Waitlist    []string   `json:"waitlist"`
	Eliminated  []string   `json:"eliminated"`
	WinnerID    *string    `json:"winner_id,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Create persists a new session in draft (or scheduled when a start time
// is supplied) with its configuration fixed.
func (s *GameService) Create(cfg SessionConfig) (*models.Session, error) {
	if cfg.Dimension < MinDimension || cfg.Dimension > MaxDimension {
		return nil, fmt.Errorf("dimension must be between %d and %d", MinDimension, MaxDimension)
	}
	if !s.Catalog.Supports(cfg.PatternType, cfg.Dimension) {
		return nil, fmt.Errorf("unsupported pattern type %q for dimension %d", cfg.PatternType, cfg.Dimension)
	}

	accessMode := cfg.AccessMode
	if accessMode == "" {
		accessMode = models.AccessModeOpen
	}
	if accessMode != models.AccessModeOpen && accessMode != models.AccessModeClosed {
		return nil, fmt.Errorf("access_mode must be %q or %q", models.AccessModeOpen, models.AccessModeClosed)
	}
	if cfg.Capacity < 0 {
		return nil, fmt.Errorf("capacity must be >= 0 (0 = unbounded)")
	}

	assetPool := cfg.AssetPool
	if assetPool == "" {
		assetPool = "default"
	}

	status := models.SessionStatusDraft
	if cfg.StartTime != nil {
		status = models.SessionStatusScheduled
	}

	session := models.Session{
		ID:          uuid.NewString(),
		Name:        cfg.Name,
		Dimension:   cfg.Dimension,
		PatternType: cfg.PatternType,
		AccessMode:  accessMode,
		Capacity:    cfg.Capacity,
		AssetPool:   assetPool,
		Status:      status,
		StartTime:   cfg.StartTime,
	}
	session.SetAdmitted(nil)
	session.SetWaitlist(nil)
	session.SetEliminated(nil)

	// The join code carries a unique index; regenerate on collision.
	for attempt := 0; attempt < 5; attempt++ {
		session.Code = generateJoinCode(cfg.Name)

		var count int64
		if err := s.DB.Model(&models.Session{}).Where("code = ?", session.Code).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			continue
		}

		if err := s.DB.Create(&session).Error; err != nil {
			return nil, err
		}
		return &session, nil
	}

	return nil, fmt.Errorf("could not generate a unique join code")
}

// Start transitions the session to active: admission closes, the waitlist
// freezes and every currently-admitted player gets a card. adminOverride
// is the single recognized bypass; it permits starting with zero players.
func (s *GameService) Start(sessionID string, adminOverride bool) (*models.Session, error) {
	lock, err := s.Locks.acquireAdmission(sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if session.Corrupt {
		return nil, ErrSessionCorrupt
	}
	if session.Status != models.SessionStatusDraft && session.Status != models.SessionStatusScheduled {
		return nil, ErrInvalidState
	}

	admitted := session.Admitted()
	if len(admitted) == 0 && !adminOverride {
		return nil, fmt.Errorf("%w: cannot start with zero admitted players", ErrInvalidState)
	}

	if len(admitted) > 0 {
		pool, err := s.Assets.Assets(session.AssetPool)
		if err != nil {
			return nil, fmt.Errorf("asset pool %q: %w", session.AssetPool, err)
		}

		for _, playerID := range admitted {
			if _, err := s.Cards.Generate(&session, playerID, pool); err != nil {
				return nil, err
			}
		}
	}

	session.Status = models.SessionStatusActive
	if err := s.DB.Save(&session).Error; err != nil {
		return nil, err
	}

	s.Events.Emit(sessionID, models.EventStarted, map[string]interface{}{
		"players": len(admitted),
	})

	return &session, nil
}

// RecordClaim processes one square claim: legality, mutation, win check
// and — when the card satisfies a shape — the exclusive winner commit.
// When two winning claims race, the loser's square stays claimed but no
// second winner is ever set.
func (s *GameService) RecordClaim(sessionID, playerID string, row, col int) (*ClaimResult, error) {
	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if session.Corrupt {
		return nil, ErrSessionCorrupt
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrInvalidState
	}
	if session.IsEliminated(playerID) {
		return nil, ErrNotParticipant
	}

	var card models.Card
	err := s.DB.Where("session_id = ? AND player_id = ?", sessionID, playerID).
		First(&card).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotParticipant
		}
		return nil, err
	}

	claimed, err := s.Claims.Claim(sessionID, card.ID, row, col)
	alreadyClaimed := errors.Is(err, ErrAlreadyClaimed)
	if err != nil && !alreadyClaimed {
		return nil, err
	}

	if !alreadyClaimed {
		s.Events.Emit(sessionID, models.EventClaimed, map[string]interface{}{
			"player_id": playerID,
			"row":       row,
			"col":       col,
		})
	}

	// Win detection runs on already-claimed squares too: a winning claim
	// whose commit failed (lock timeout, crash before commit) leaves a
	// persisted winning card behind, and the retry must still complete
	// the session.
	won, err := s.Wins.Evaluate(claimed, session.PatternType)
	if err != nil {
		return nil, err
	}
	if !won {
		return &ClaimResult{Claimed: true, AlreadyClaimed: alreadyClaimed}, nil
	}

	result, err := s.commitWinner(sessionID, playerID)
	if err != nil {
		return nil, err
	}
	result.AlreadyClaimed = alreadyClaimed
	return result, nil
}

// commitWinner holds the completion lock for the minimal check-then-commit
// section. The guarded UPDATE is the durable arbiter: it only fires on an
// active row with no winner, so a rehydrated completed session can never
// take a second winner.
func (s *GameService) commitWinner(sessionID, playerID string) (*ClaimResult, error) {
	lock, err := s.Locks.acquireCompletion(sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	if session.Corrupt {
		return nil, ErrSessionCorrupt
	}
	if session.Status == models.SessionStatusCompleted {
		// Lost the race; the claim itself stays persisted.
		return &ClaimResult{Claimed: true}, nil
	}

	now := time.Now()
	res := s.DB.Model(&models.Session{}).
		Where("id = ? AND status = ? AND winner_id IS NULL", sessionID, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":       models.SessionStatusCompleted,
			"winner_id":    playerID,
			"completed_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &ClaimResult{Claimed: true}, nil
	}

	s.Events.Emit(sessionID, models.EventWon, map[string]interface{}{"player_id": playerID})
	s.Events.Emit(sessionID, models.EventCompleted, map[string]interface{}{
		"winner_id":    playerID,
		"completed_at": now,
	})

	return &ClaimResult{Claimed: true, Won: true}, nil
}

// Projection is the pure read of a session for collaborators.
func (s *GameService) Projection(sessionID string) (*SessionView, error) {
	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	view := SessionView{
		ID:          session.ID,
		Name:        session.Name,
		Code:        session.Code,
		Dimension:   session.Dimension,
		PatternType: session.PatternType,
		AccessMode:  session.AccessMode,
		Capacity:    session.Capacity,
		Status:      session.Status,
		Admitted:    session.Admitted(),
		Waitlist:    session.Waitlist(),
		Eliminated:  session.Eliminated(),
		WinnerID:    session.WinnerID,
		StartTime:   session.StartTime,
		CompletedAt: session.CompletedAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
	return &view, nil
}

// Join codes avoid ambiguous characters (0/O, 1/I/L) so they survive being
// read out loud.
const joinCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func generateJoinCode(name string) string {
	prefix := strings.ToUpper(strings.ReplaceAll(slug.Make(unidecode.Unidecode(name)), "-", ""))
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	if prefix == "" {
		return randomCode(6)
	}
	return prefix + "-" + randomCode(4)
}

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = joinCodeCharset[rand.Intn(len(joinCodeCharset))]
	}
	return string(b)
}

// --- HTTP handlers ---

func (s *GameService) CreateSession(c *fiber.Ctx) error {
	var cfg SessionConfig
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if cfg.Dimension == 0 || cfg.PatternType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "dimension and pattern_type are required"})
	}

	session, err := s.Create(cfg)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("[SESSIONS] created session %s (code %s, %dx%d %s)",
		session.ID, session.Code, session.Dimension, session.Dimension, session.PatternType)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session_id": session.ID, "code": session.Code})
}

func (s *GameService) StartSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req struct {
		AdminOverride bool `json:"admin_override"`
	}
	// Empty body means no override.
	_ = c.BodyParser(&req)

	session, err := s.Start(sessionID, req.AdminOverride)
	if err != nil {
		log.Printf("[SESSIONS] start failed for %s: %v", sessionID, err)
		return writeError(c, err)
	}

	view, err := s.Projection(session.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

func (s *GameService) ClaimSquare(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	playerID, _ := c.Locals("user_id").(string)
	if playerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	var req struct {
		Row int `json:"row"`
		Col int `json:"col"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	result, err := s.RecordClaim(sessionID, playerID, req.Row, req.Col)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}

func (s *GameService) GetSession(c *fiber.Ctx) error {
	view, err := s.Projection(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}
