// services/admission_service.go
package services

import (
	"log"
	"strings"

	"game-session-engine/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

type JoinOutcome string

const (
	JoinOutcomeJoined     JoinOutcome = "joined"
	JoinOutcomeWaitlisted JoinOutcome = "waitlisted"
)

var codeUpper = cases.Upper(language.Und)

// NormalizeCode folds a join code for case-insensitive comparison; codes
// are stored in this form.
func NormalizeCode(code string) string {
	return codeUpper.String(strings.TrimSpace(code))
}

// AdmissionService mediates player entry: open/closed access, capacity,
// FIFO waitlist promotion and invite validation. All list mutation runs
// under the per-session admission lock, separate from the completion lock
// so join/leave traffic never blocks claims.
type AdmissionService struct {
	DB     *gorm.DB
	Locks  *LockRegistry
	Events *EventService
}

func NewAdmissionService(db *gorm.DB, locks *LockRegistry, events *EventService) *AdmissionService {
	return &AdmissionService{DB: db, Locks: locks, Events: events}
}

// Join admits the player or appends them to the waitlist. Waitlisting is a
// first-class success outcome, not an error.
func (s *AdmissionService) Join(sessionID, playerID, code string) (JoinOutcome, error) {
	lock, err := s.Locks.acquireAdmission(sessionID)
	if err != nil {
		return "", err
	}
	defer lock.Release()

	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", ErrSessionNotFound
		}
		return "", err
	}

	if session.Status != models.SessionStatusDraft && session.Status != models.SessionStatusScheduled {
		return "", ErrInvalidState
	}

	if NormalizeCode(code) != session.Code {
		return "", ErrInvalidCode
	}

	if session.HasPlayer(playerID) {
		return "", ErrAlreadyJoined
	}

	if session.AccessMode == models.AccessModeClosed {
		var invite models.Invite
		err := s.DB.Where(
			"session_id = ? AND player_id = ? AND status = ?",
			sessionID, playerID, models.InviteStatusAccepted,
		).First(&invite).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return "", ErrNotInvited
			}
			return "", err
		}
	}

	admitted := session.Admitted()
	if session.Capacity > 0 && len(admitted) >= session.Capacity {
		session.SetWaitlist(append(session.Waitlist(), playerID))
		if err := s.DB.Save(&session).Error; err != nil {
			return "", err
		}
		s.Events.Emit(sessionID, models.EventWaitlisted, map[string]interface{}{"player_id": playerID})
		return JoinOutcomeWaitlisted, nil
	}

	session.SetAdmitted(append(admitted, playerID))
	if err := s.DB.Save(&session).Error; err != nil {
		return "", err
	}
	s.Events.Emit(sessionID, models.EventJoined, map[string]interface{}{"player_id": playerID})
	return JoinOutcomeJoined, nil
}

// Leave removes the player from whichever list holds them. Freeing an
// admitted seat before the session starts promotes the waitlist head in
// the same critical section, so no window exists where two promotions race
// for one seat or capacity is exceeded.
func (s *AdmissionService) Leave(sessionID, playerID string) error {
	lock, err := s.Locks.acquireAdmission(sessionID)
	if err != nil {
		return err
	}
	defer lock.Release()

	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrSessionNotFound
		}
		return err
	}

	if session.Status == models.SessionStatusCompleted {
		return ErrInvalidState
	}

	admitted := session.Admitted()
	waitlist := session.Waitlist()

	if idx := indexOf(admitted, playerID); idx >= 0 {
		admitted = append(admitted[:idx], admitted[idx+1:]...)

		// Leaving mid-game forfeits: the card stays persisted but stops
		// being eligible for win detection, same as elimination.
		if session.Status == models.SessionStatusActive {
			session.SetEliminated(append(session.Eliminated(), playerID))
		}

		// Promotion only while admission is open; the waitlist freezes
		// once the session goes active.
		var promoted string
		openForAdmission := session.Status == models.SessionStatusDraft ||
			session.Status == models.SessionStatusScheduled
		if openForAdmission && len(waitlist) > 0 &&
			(session.Capacity == 0 || len(admitted) < session.Capacity) {
			promoted = waitlist[0]
			waitlist = waitlist[1:]
			admitted = append(admitted, promoted)
		}

		session.SetAdmitted(admitted)
		session.SetWaitlist(waitlist)
		if err := s.DB.Save(&session).Error; err != nil {
			return err
		}
		if promoted != "" {
			s.Events.Emit(sessionID, models.EventPromoted, map[string]interface{}{"player_id": promoted})
		}
		return nil
	}

	if idx := indexOf(waitlist, playerID); idx >= 0 {
		session.SetWaitlist(append(waitlist[:idx], waitlist[idx+1:]...))
		return s.DB.Save(&session).Error
	}

	return ErrNotParticipant
}

// Eliminate moves the player from admitted to eliminated. The player's
// card stays persisted but stops being eligible for win detection.
func (s *AdmissionService) Eliminate(sessionID, playerID string) error {
	lock, err := s.Locks.acquireAdmission(sessionID)
	if err != nil {
		return err
	}
	defer lock.Release()

	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrSessionNotFound
		}
		return err
	}

	if session.Status == models.SessionStatusCompleted {
		return ErrInvalidState
	}

	admitted := session.Admitted()
	idx := indexOf(admitted, playerID)
	if idx < 0 {
		return ErrNotParticipant
	}

	session.SetAdmitted(append(admitted[:idx], admitted[idx+1:]...))
	session.SetEliminated(append(session.Eliminated(), playerID))
	return s.DB.Save(&session).Error
}

// CreateInvite issues (or revives) a pending invite for a closed session.
func (s *AdmissionService) CreateInvite(sessionID, playerID, inviterID string) (*models.Invite, error) {
	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if session.Status == models.SessionStatusCompleted {
		return nil, ErrInvalidState
	}

	invite := models.Invite{
		SessionID: sessionID,
		PlayerID:  playerID,
		InviterID: inviterID,
		Status:    models.InviteStatusPending,
	}

	var existing models.Invite
	err := s.DB.Where("session_id = ? AND player_id = ?", sessionID, playerID).
		First(&existing).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		if err := s.DB.Create(&invite).Error; err != nil {
			return nil, err
		}
		return &invite, nil
	case err != nil:
		return nil, err
	default:
		// Re-inviting a revoked player resets the invite to pending.
		existing.InviterID = inviterID
		existing.Status = models.InviteStatusPending
		if err := s.DB.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
}

// AcceptInvite flips a pending invite to accepted.
func (s *AdmissionService) AcceptInvite(sessionID, playerID string) error {
	var invite models.Invite
	err := s.DB.Where("session_id = ? AND player_id = ?", sessionID, playerID).
		First(&invite).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrNotInvited
		}
		return err
	}

	if invite.Status != models.InviteStatusPending {
		return ErrInvalidState
	}

	invite.Status = models.InviteStatusAccepted
	return s.DB.Save(&invite).Error
}

// RevokeInvite withdraws an invite; a revoked invite no longer admits.
func (s *AdmissionService) RevokeInvite(sessionID, playerID string) error {
	var invite models.Invite
	err := s.DB.Where("session_id = ? AND player_id = ?", sessionID, playerID).
		First(&invite).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrNotInvited
		}
		return err
	}

	invite.Status = models.InviteStatusRevoked
	return s.DB.Save(&invite).Error
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// --- HTTP handlers (user context set by gateway middleware) ---

func (s *AdmissionService) JoinSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	playerID, _ := c.Locals("user_id").(string)
	if playerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	outcome, err := s.Join(sessionID, playerID, req.Code)
	if err != nil {
		log.Printf("[ADMISSION] join failed for player %s on session %s: %v", playerID, sessionID, err)
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"outcome": outcome})
}

func (s *AdmissionService) LeaveSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	playerID, _ := c.Locals("user_id").(string)
	if playerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	if err := s.Leave(sessionID, playerID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"left": true})
}

func (s *AdmissionService) EliminatePlayer(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PlayerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "player_id is required"})
	}

	if err := s.Eliminate(sessionID, req.PlayerID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"eliminated": true})
}

func (s *AdmissionService) CreateSessionInvite(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	inviterID, _ := c.Locals("user_id").(string)
	if inviterID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PlayerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "player_id is required"})
	}

	invite, err := s.CreateInvite(sessionID, req.PlayerID, inviterID)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invite)
}

func (s *AdmissionService) AcceptSessionInvite(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	playerID, _ := c.Locals("user_id").(string)
	if playerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	if err := s.AcceptInvite(sessionID, playerID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"accepted": true})
}

func (s *AdmissionService) RevokeSessionInvite(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	playerID := c.Params("player")
	if playerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "player is required"})
	}

	if err := s.RevokeInvite(sessionID, playerID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"revoked": true})
}
