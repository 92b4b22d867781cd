package workers

import (
	"context"
	"log"
	"time"

	"game-session-engine/models"

	"gorm.io/gorm"
)

// SessionSweepClient runs the periodic consistency audit over persisted
// session state and retires invites that can no longer admit anyone.
type SessionSweepClient struct {
	DB *gorm.DB
}

func NewSessionSweepClient(db *gorm.DB) *SessionSweepClient {
	return &SessionSweepClient{DB: db}
}

// Audit quarantines sessions whose persisted state violates the
// single-winner invariant. A quarantined session rejects all further claim
// processing rather than silently picking a winner.
func (c *SessionSweepClient) Audit() error {
	// A winner on a non-completed row means a commit raced or a restore
	// went wrong; either way the row can no longer be trusted.
	res := c.DB.Model(&models.Session{}).
		Where("status <> ? AND winner_id IS NOT NULL AND corrupt = ?", models.SessionStatusCompleted, false).
		Update("corrupt", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[SWEEP] quarantined %d session(s) with a winner outside completed state", res.RowsAffected)
	}

	// Completed without a winner is the mirror corruption.
	res = c.DB.Model(&models.Session{}).
		Where("status = ? AND winner_id IS NULL AND corrupt = ?", models.SessionStatusCompleted, false).
		Update("corrupt", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[SWEEP] quarantined %d completed session(s) with no winner recorded", res.RowsAffected)
	}

	return nil
}

// ExpireInvites revokes pending invites on sessions that already started
// or finished; admission is closed, so they can never be used.
func (c *SessionSweepClient) ExpireInvites() error {
	sub := c.DB.Model(&models.Session{}).
		Select("id").
		Where("status IN ?", []string{models.SessionStatusActive, models.SessionStatusCompleted})

	res := c.DB.Model(&models.Invite{}).
		Where("status = ? AND session_id IN (?)", models.InviteStatusPending, sub).
		Update("status", models.InviteStatusRevoked)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[SWEEP] revoked %d stale pending invite(s)", res.RowsAffected)
	}

	return nil
}

// PollSessions runs the sweep until ctx is cancelled.
func PollSessions(ctx context.Context, client *SessionSweepClient, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[SWEEP] session sweep running (every %s)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("[SWEEP] stopping session sweep")
			return
		case <-ticker.C:
			if err := client.Audit(); err != nil {
				log.Printf("[SWEEP] audit error: %v", err)
			}
			if err := client.ExpireInvites(); err != nil {
				log.Printf("[SWEEP] invite expiry error: %v", err)
			}
		}
	}
}
