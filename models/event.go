// models/event.go
package models

import "time"

const (
	EventJoined     = "JOINED"
	EventWaitlisted = "WAITLISTED"
	EventPromoted   = "PROMOTED"
	EventStarted    = "STARTED"
	EventClaimed    = "CLAIMED"
	EventWon        = "WON"
	EventCompleted  = "COMPLETED"
)

// GameEvent is one row of the per-session notification feed. Emission is
// fire-and-forget; the SSE stream polls these by created_at cursor.
type GameEvent struct {
	ID        string `json:"id" gorm:"primaryKey"`
	SessionID string `json:"session_id" gorm:"index;not null"`
	Type      string `json:"type" gorm:"not null"`

	PayloadJSON string `json:"payload" gorm:"column:payload;type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
